package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/telemetry"
)

// Messenger runs one assistant turn for the principal in ctx.
type Messenger interface {
	SendMessage(ctx context.Context, utterance, conversationID string) (*agent.Reply, error)
}

type DiscordResolver interface {
	ResolveDiscord(ctx context.Context, discordID string) (auth.Principal, error)
}

type Bot struct {
	session  *discordgo.Session
	agent    Messenger
	resolver DiscordResolver
	log      *telemetry.Logger

	// conversations maps a Discord author and channel to the conversation
	// the bot continues there.
	mu            sync.Mutex
	conversations map[string]string
}

func newBot(ag Messenger, resolver DiscordResolver, log *telemetry.Logger) *Bot {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Bot{agent: ag, resolver: resolver, log: log, conversations: make(map[string]string)}
}

func NewBot(token string, ag Messenger, resolver DiscordResolver, log *telemetry.Logger) (*Bot, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	bot := newBot(ag, resolver, log)
	bot.session = s
	s.AddHandler(bot.onMessage)
	s.Identify.Intents = discordgo.IntentsDirectMessages | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("opening Discord connection: %w", err)
	}

	bot.log.Info(context.Background(), "discord: bot connected", telemetry.Fields{"username": s.State.User.Username})
	return bot, nil
}

func (b *Bot) Close() {
	b.session.Close()
}

func conversationKey(authorID, channelID string) string {
	return authorID + "/" + channelID
}

func (b *Bot) conversationFor(authorID, channelID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[conversationKey(authorID, channelID)]
}

func (b *Bot) setConversation(authorID, channelID, conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if conversationID == "" {
		delete(b.conversations, conversationKey(authorID, channelID))
		return
	}
	b.conversations[conversationKey(authorID, channelID)] = conversationID
}
