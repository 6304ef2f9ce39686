package discord

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/prompt"
	"github.com/chris/dayplan/internal/telemetry"
)

const maxDiscordMessage = 2000

const (
	notLinkedMessage = "I don't know who you are yet. Ask the admin to link your Discord account with `dayplan user add --discord <your id>`."
	busyMessageEN    = "I'm still working on your previous message. Give me a moment."
	busyMessageES    = "Todavía estoy con tu mensaje anterior. Dame un momento."
	failedMessageEN  = "Something went wrong. Try again?"
	failedMessageES  = "Algo ha fallado. ¿Lo intentas de nuevo?"
)

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	// Only respond to DMs or when mentioned
	isDM := m.GuildID == ""
	isMentioned := false
	for _, u := range m.Mentions {
		if u.ID == s.State.User.ID {
			isMentioned = true
			break
		}
	}
	if !isDM && !isMentioned {
		return
	}

	content := strings.TrimSpace(stripMention(m.Content, s.State.User.ID))
	if content == "" {
		return
	}

	s.ChannelTyping(m.ChannelID)
	for _, chunk := range b.respond(context.Background(), m.Author.ID, m.ChannelID, content) {
		if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
			b.log.Warn(context.Background(), "discord: sending reply failed", telemetry.Fields{"channelId": m.ChannelID, "error": err.Error()})
		}
	}
}

// respond runs a turn for a Discord author and returns the reply split into
// Discord-sized chunks.
func (b *Bot) respond(ctx context.Context, authorID, channelID, content string) []string {
	p, err := b.resolver.ResolveDiscord(ctx, authorID)
	if errors.Is(err, auth.ErrUnauthenticated) {
		return []string{notLinkedMessage}
	}
	if err != nil {
		b.log.Error(ctx, "discord: resolving user failed", telemetry.Fields{"discordId": authorID, "error": err.Error()})
		return []string{failedMessageEN}
	}
	ctx = auth.WithPrincipal(ctx, p)
	english := prompt.IsEnglish(p.Language)

	conversationID := b.conversationFor(authorID, channelID)
	reply, err := b.agent.SendMessage(ctx, content, conversationID)
	if errors.Is(err, agent.ErrConversationGone) {
		b.setConversation(authorID, channelID, "")
		reply, err = b.agent.SendMessage(ctx, content, "")
	}

	switch {
	case err == nil, errors.Is(err, agent.ErrTurnTimeout) && reply != nil:
		if err == nil {
			b.setConversation(authorID, channelID, reply.ConversationID)
		}
		return splitMessage(reply.Message, maxDiscordMessage)
	case errors.Is(err, agent.ErrTurnInProgress):
		return []string{pick(english, busyMessageEN, busyMessageES)}
	}
	b.log.Error(ctx, "discord: turn failed", telemetry.Fields{"userId": p.ID, "error": err.Error()})
	return []string{pick(english, failedMessageEN, failedMessageES)}
}

func pick(english bool, en, es string) string {
	if english {
		return en
	}
	return es
}

func stripMention(s, userID string) string {
	s = strings.ReplaceAll(s, "<@"+userID+">", "")
	s = strings.ReplaceAll(s, "<@!"+userID+">", "")
	return s
}

// splitMessage cuts s into chunks of at most maxLen bytes, preferring to
// break after a newline and never inside a UTF-8 sequence.
func splitMessage(s string, maxLen int) []string {
	if len(s) <= maxLen {
		return []string{s}
	}
	var chunks []string
	for len(s) > 0 {
		end := min(maxLen, len(s))
		for end < len(s) && end > 0 && !utf8.RuneStart(s[end]) {
			end--
		}
		if end == 0 {
			_, end = utf8.DecodeRuneInString(s)
		}
		if end < len(s) {
			if idx := strings.LastIndex(s[:end], "\n"); idx > 0 {
				end = idx + 1
			}
		}
		chunks = append(chunks, s[:end])
		s = s[end:]
	}
	return chunks
}
