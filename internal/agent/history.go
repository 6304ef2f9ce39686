package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/llm"
	"github.com/chris/dayplan/internal/prompt"
	"github.com/chris/dayplan/internal/tools"
)

const (
	// maxToolUseChars bounds each persisted tool call or result.
	maxToolUseChars = 500
	maxTitleChars   = 60
)

// replay turns stored messages back into model input. Earlier tool
// exchanges are not resent; the assistant message instead starts with a
// short "[tools: ...]" note naming them.
func replay(conv *db.Conversation) []llm.Message {
	if conv == nil {
		return nil
	}
	out := make([]llm.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		content := m.Content
		if m.Role == "assistant" {
			if names := calledTools(m.ToolsUsed); len(names) > 0 {
				content = "[tools: " + strings.Join(names, ", ") + "]\n" + content
			}
		}
		out = append(out, llm.Message{Role: m.Role, Content: content})
	}
	return out
}

func calledTools(used []db.ToolUse) []string {
	var names []string
	seen := map[string]bool{}
	for _, u := range used {
		if u.Type != "tool_call" {
			continue
		}
		name, _, _ := strings.Cut(u.Content, " ")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func toolCallUse(call llm.ToolCall) db.ToolUse {
	input := strings.TrimSpace(string(call.Input))
	if input == "" {
		input = "{}"
	}
	return db.ToolUse{Type: "tool_call", ToolCallID: call.ID, Content: truncate(call.Name+" "+input, maxToolUseChars)}
}

func toolResultUse(callID string, res tools.Result) db.ToolUse {
	summary := map[string]any{"success": res.Success}
	if res.ErrorMessage != "" {
		summary["errorMessage"] = res.ErrorMessage
	}
	if res.ConfirmationRequired {
		summary["confirmationRequired"] = true
	}
	if res.Data != nil {
		summary["data"] = res.Data
	}
	b, err := json.Marshal(summary)
	if err != nil {
		b = []byte(`{"success":false}`)
	}
	return db.ToolUse{Type: "tool_result", ToolCallID: callID, Content: truncate(string(b), maxToolUseChars)}
}

// summarize describes an existing conversation for the prompt.
func summarize(conv *db.Conversation, language string) string {
	if conv == nil || len(conv.Messages) == 0 {
		return ""
	}
	title := conv.Title
	if title == "" {
		title = "untitled"
	}
	if prompt.IsEnglish(language) {
		return fmt.Sprintf("%q, %d earlier messages", title, len(conv.Messages))
	}
	return fmt.Sprintf("%q, %d mensajes anteriores", title, len(conv.Messages))
}

// titleFrom derives a conversation title from its first message.
func titleFrom(utterance string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(utterance), "\n")
	return truncate(strings.TrimSpace(line), maxTitleChars)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
