package llm

// MinMessageBudget is the floor TrimToBudget never goes below, so the
// current utterance always fits.
const MinMessageBudget = 1000

// TrimToBudget trims messages to what is left of maxContextTokens after the
// system prompt and tool catalog.
func TrimToBudget(systemPrompt string, tools []Tool, messages []Message, maxContextTokens int) []Message {
	budget := maxContextTokens - EstimateTokens(systemPrompt) - EstimateToolsTokens(tools)
	if budget < MinMessageBudget {
		budget = MinMessageBudget
	}
	return TrimMessages(messages, budget)
}

// TrimMessages drops the oldest messages until the rest fit in maxTokens.
//
// Messages are grouped first: a plain message is its own group, and an
// assistant message with tool calls forms one group with the tool results
// that answer it. Groups are dropped whole and oldest first; the newest
// group is always kept even when it alone exceeds the budget. A plain
// assistant reply left at the front after trimming is dropped too.
func TrimMessages(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	groups := groupMessages(messages)

	total := 0
	for _, g := range groups {
		total += g.tokens
	}

	if total <= maxTokens {
		return messages
	}

	kept := total
	dropUntil := 0
	for dropUntil < len(groups)-1 && kept > maxTokens {
		kept -= groups[dropUntil].tokens
		dropUntil++
	}
	// The kept history has to open with the user.
	for dropUntil < len(groups)-1 && openingAssistant(groups[dropUntil]) {
		dropUntil++
	}

	var trimmed []Message
	for _, g := range groups[dropUntil:] {
		trimmed = append(trimmed, g.messages...)
	}
	return trimmed
}

type messageGroup struct {
	messages []Message
	tokens   int
}

func openingAssistant(g messageGroup) bool {
	m := g.messages[0]
	return m.Role == "assistant" && len(m.ToolCalls) == 0
}

func groupMessages(messages []Message) []messageGroup {
	var groups []messageGroup
	i := 0
	for i < len(messages) {
		msg := messages[i]

		if msg.Role == "assistant" && len(msg.ToolCalls) > 0 {
			group := messageGroup{}
			group.messages = append(group.messages, msg)
			group.tokens += EstimateMessageTokens(msg)
			i++
			for i < len(messages) && messages[i].ToolCallID != "" {
				group.messages = append(group.messages, messages[i])
				group.tokens += EstimateMessageTokens(messages[i])
				i++
			}
			groups = append(groups, group)
			continue
		}

		groups = append(groups, messageGroup{
			messages: []Message{msg},
			tokens:   EstimateMessageTokens(msg),
		})
		i++
	}
	return groups
}
