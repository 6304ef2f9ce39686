package discord

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/chris/dayplan/internal/agent"
	"github.com/chris/dayplan/internal/auth"
)

// --- stripMention ---

func TestStripMention_Standard(t *testing.T) {
	got := stripMention("<@123456> hello", "123456")
	want := " hello"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripMention_Nickname(t *testing.T) {
	got := stripMention("<@!123456> hello", "123456")
	want := " hello"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripMention_Both(t *testing.T) {
	got := stripMention("<@123> and <@!123>", "123")
	want := " and "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripMention_NoMention(t *testing.T) {
	got := stripMention("just text", "123")
	if got != "just text" {
		t.Errorf("got %q, want %q", got, "just text")
	}
}

func TestStripMention_WrongUser(t *testing.T) {
	input := "<@999> hello"
	got := stripMention(input, "123")
	if got != input {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestStripMention_Empty(t *testing.T) {
	got := stripMention("", "123")
	if got != "" {
		t.Errorf("got %q, want %q", got, "")
	}
}

// --- splitMessage ---

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 2000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("expected single chunk 'hello', got %v", chunks)
	}
}

func TestSplitMessage_ExactLimit(t *testing.T) {
	s := strings.Repeat("a", 2000)
	chunks := splitMessage(s, 2000)
	if len(chunks) != 1 {
		t.Errorf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitMessage_SplitsAtNewline(t *testing.T) {
	// 15 chars of "a", then newline, then 15 chars of "b" = 31 chars total
	s := strings.Repeat("a", 15) + "\n" + strings.Repeat("b", 15)
	chunks := splitMessage(s, 20)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	// First chunk should split at the newline (16 chars: 15 a's + newline)
	if chunks[0] != strings.Repeat("a", 15)+"\n" {
		t.Errorf("chunk[0] = %q", chunks[0])
	}
	if chunks[1] != strings.Repeat("b", 15) {
		t.Errorf("chunk[1] = %q", chunks[1])
	}
}

func TestSplitMessage_NoNewlineFallback(t *testing.T) {
	// No newlines, so it should hard-split at maxLen
	s := strings.Repeat("x", 50)
	chunks := splitMessage(s, 20)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != strings.Repeat("x", 20) {
		t.Errorf("chunk[0] length = %d, want 20", len(chunks[0]))
	}
	if chunks[1] != strings.Repeat("x", 20) {
		t.Errorf("chunk[1] length = %d, want 20", len(chunks[1]))
	}
	if chunks[2] != strings.Repeat("x", 10) {
		t.Errorf("chunk[2] length = %d, want 10", len(chunks[2]))
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	chunks := splitMessage("", 2000)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Errorf("expected single empty chunk, got %v", chunks)
	}
}

func TestSplitMessage_MultipleNewlines(t *testing.T) {
	// Should prefer the LAST newline before the limit
	s := "line1\nline2\nline3\nline4"
	chunks := splitMessage(s, 12)

	// "line1\nline2\n" is 12 chars, so it should split right there
	if chunks[0] != "line1\nline2\n" {
		t.Errorf("chunk[0] = %q, want %q", chunks[0], "line1\nline2\n")
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("ñ", 15) // 30 bytes
	chunks := splitMessage(s, 7)
	if strings.Join(chunks, "") != s {
		t.Fatalf("chunks do not reassemble the input")
	}
	for i, c := range chunks {
		if !utf8.ValidString(c) || len(c) > 7 {
			t.Errorf("chunk[%d] = %q is not a valid chunk", i, c)
		}
	}
}

// --- respond ---

type fakeResolver struct {
	principals map[string]auth.Principal
	err        error
}

func (f fakeResolver) ResolveDiscord(_ context.Context, discordID string) (auth.Principal, error) {
	if f.err != nil {
		return auth.Principal{}, f.err
	}
	p, ok := f.principals[discordID]
	if !ok {
		return auth.Principal{}, auth.ErrUnauthenticated
	}
	return p, nil
}

type call struct {
	userID         string
	utterance      string
	conversationID string
}

type fakeMessenger struct {
	calls   []call
	replies []*agent.Reply
	errs    []error
}

func (f *fakeMessenger) SendMessage(ctx context.Context, utterance, conversationID string) (*agent.Reply, error) {
	p, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	i := len(f.calls)
	f.calls = append(f.calls, call{p.ID, utterance, conversationID})
	var reply *agent.Reply
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return reply, f.errs[i]
	}
	return reply, nil
}

var ana = fakeResolver{principals: map[string]auth.Principal{
	"d-ana": {ID: "u-ana", DisplayName: "Ana", Language: "es", Timezone: "Europe/Madrid"},
}}

func TestRespond_ContinuesConversationPerChannel(t *testing.T) {
	m := &fakeMessenger{replies: []*agent.Reply{
		{ConversationID: "c-1", Message: "hola"},
		{ConversationID: "c-1", Message: "de nada"},
		{ConversationID: "c-2", Message: "otra"},
	}}
	b := newBot(m, ana, nil)

	assert.Equal(t, []string{"hola"}, b.respond(context.Background(), "d-ana", "chan-1", "hola"))
	assert.Equal(t, []string{"de nada"}, b.respond(context.Background(), "d-ana", "chan-1", "gracias"))
	assert.Equal(t, []string{"otra"}, b.respond(context.Background(), "d-ana", "chan-2", "nuevo"))

	assert.Equal(t, []call{
		{"u-ana", "hola", ""},
		{"u-ana", "gracias", "c-1"},
		{"u-ana", "nuevo", ""},
	}, m.calls)
}

func TestRespond_UnlinkedAccount(t *testing.T) {
	m := &fakeMessenger{}
	b := newBot(m, ana, nil)

	got := b.respond(context.Background(), "d-stranger", "chan-1", "hi")
	assert.Equal(t, []string{notLinkedMessage}, got)
	assert.Empty(t, m.calls)
}

func TestRespond_StartsOverWhenConversationIsGone(t *testing.T) {
	m := &fakeMessenger{
		replies: []*agent.Reply{{ConversationID: "c-1", Message: "uno"}, nil, {ConversationID: "c-2", Message: "dos"}},
		errs:    []error{nil, agent.ErrConversationGone, nil},
	}
	b := newBot(m, ana, nil)

	b.respond(context.Background(), "d-ana", "chan-1", "uno")
	got := b.respond(context.Background(), "d-ana", "chan-1", "dos")
	assert.Equal(t, []string{"dos"}, got)
	assert.Equal(t, "c-1", m.calls[1].conversationID)
	assert.Equal(t, "", m.calls[2].conversationID)
	assert.Equal(t, "c-2", b.conversationFor("d-ana", "chan-1"))
}

func TestRespond_Failures(t *testing.T) {
	m := &fakeMessenger{
		replies: []*agent.Reply{nil, nil, {ConversationID: "c-1", Message: "Estoy mirando..."}},
		errs:    []error{agent.ErrTurnInProgress, errors.New("boom"), agent.ErrTurnTimeout},
	}
	b := newBot(m, ana, nil)

	assert.Equal(t, []string{busyMessageES}, b.respond(context.Background(), "d-ana", "chan-1", "a"))
	assert.Equal(t, []string{failedMessageES}, b.respond(context.Background(), "d-ana", "chan-1", "b"))
	assert.Equal(t, []string{"Estoy mirando..."}, b.respond(context.Background(), "d-ana", "chan-1", "c"))
	assert.Equal(t, "", b.conversationFor("d-ana", "chan-1"), "a timed-out turn is not persisted")
}

func TestRespond_ResolverError(t *testing.T) {
	b := newBot(&fakeMessenger{}, fakeResolver{err: errors.New("db down")}, nil)
	assert.Equal(t, []string{failedMessageEN}, b.respond(context.Background(), "d-ana", "chan-1", "hi"))
}
