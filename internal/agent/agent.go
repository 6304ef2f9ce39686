// Package agent runs one assistant turn: it builds the prompt, drives the
// model's tool-calling loop and persists the finished exchange.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chris/dayplan/internal/auth"
	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/llm"
	"github.com/chris/dayplan/internal/metrics"
	"github.com/chris/dayplan/internal/prompt"
	"github.com/chris/dayplan/internal/telemetry"
	"github.com/chris/dayplan/internal/tools"
)

var (
	// ErrProvider means the model provider or the data store failed. The
	// turn was not persisted.
	ErrProvider = errors.New("provider error")
	// ErrTurnTimeout means the turn ran out of time. The reply carries
	// whatever partial answer existed; nothing was persisted.
	ErrTurnTimeout = errors.New("turn timed out")

	ErrTurnInProgress   = errors.New("another message in this conversation is still being processed")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrConversationGone = errors.New("conversation not found")
)

// ConversationStore is the slice of the repository the agent persists to.
type ConversationStore interface {
	GetConversation(ctx context.Context, userID, id string) (*db.Conversation, error)
	AppendTurn(ctx context.Context, userID, conversationID, title string, msgs []db.Message) error
}

type Options struct {
	MaxToolRounds    int
	TurnTimeout      time.Duration
	MaxContextTokens int
	IncludeExamples  bool
	Pricing          llm.Pricing
	Temporal         prompt.TemporalProvider
}

// Reply is the outcome of one turn.
type Reply struct {
	ConversationID string
	Message        string
	Usage          llm.Usage
	CostCents      float64
	ToolsUsed      []db.ToolUse
	Rounds         int
	// Fallback is set when the iteration ceiling forced a canned answer.
	Fallback bool
}

func (r *Reply) TokensUsed() int64 { return r.Usage.Total() }

type Agent struct {
	client   llm.Client
	executor *tools.Executor
	store    ConversationStore
	stats    tools.StatsSource
	log      *telemetry.Logger
	metrics  *metrics.Metrics
	opts     Options

	mu     sync.Mutex
	active map[string]struct{}
}

// New builds an agent. log and m may be nil.
func New(client llm.Client, executor *tools.Executor, store ConversationStore, stats tools.StatsSource, log *telemetry.Logger, m *metrics.Metrics, opts Options) *Agent {
	if log == nil {
		log = telemetry.Nop()
	}
	if opts.MaxToolRounds < 1 {
		opts.MaxToolRounds = 5
	}
	if opts.TurnTimeout <= 0 {
		opts.TurnTimeout = 90 * time.Second
	}
	if opts.MaxContextTokens <= 0 {
		opts.MaxContextTokens = 100000
	}
	return &Agent{
		client:   client,
		executor: executor,
		store:    store,
		stats:    stats,
		log:      log,
		metrics:  m,
		opts:     opts,
		active:   make(map[string]struct{}),
	}
}

// SendMessage runs one turn for the principal in ctx. An empty
// conversationID starts a new conversation.
func (a *Agent) SendMessage(ctx context.Context, utterance, conversationID string) (*Reply, error) {
	p, err := auth.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyMessage
	}
	isNew := conversationID == ""
	if isNew {
		conversationID = uuid.NewString()
	}
	if !a.acquire(conversationID) {
		return nil, ErrTurnInProgress
	}
	defer a.release(conversationID)

	if a.metrics != nil {
		a.metrics.TurnsInFlight.Inc()
		defer a.metrics.TurnsInFlight.Dec()
	}

	t := &turn{
		agent:          a,
		principal:      p,
		conversationID: conversationID,
		isNew:          isNew,
		utterance:      utterance,
		scope:          telemetry.Scope{UserID: p.ID, ConversationID: conversationID},
		started:        time.Now(),
	}
	reply, outcome, err := t.run(ctx)
	if a.metrics != nil {
		var usage llm.Usage
		var cost float64
		if reply != nil {
			usage, cost = reply.Usage, reply.CostCents
		}
		a.metrics.RecordTurn(outcome, time.Since(t.started), usage.InputTokens, usage.OutputTokens, cost)
	}
	return reply, err
}

func (a *Agent) acquire(conversationID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.active[conversationID]; busy {
		return false
	}
	a.active[conversationID] = struct{}{}
	return true
}

func (a *Agent) release(conversationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, conversationID)
}

// turn is the state of one SendMessage call.
type turn struct {
	agent          *Agent
	principal      auth.Principal
	conversationID string
	isNew          bool
	utterance      string
	scope          telemetry.Scope
	started        time.Time

	text     text
	usage    llm.Usage
	used     []db.ToolUse
	partial  string
	rounds   int
	fallback bool
}

func (t *turn) run(ctx context.Context) (*Reply, string, error) {
	a := t.agent
	turnCtx, cancel := context.WithTimeout(ctx, a.opts.TurnTimeout)
	defer cancel()

	var conv *db.Conversation
	if !t.isNew {
		var err error
		conv, err = a.store.GetConversation(turnCtx, t.principal.ID, t.conversationID)
		switch {
		case db.IsNotFound(err):
			return nil, "not_found", ErrConversationGone
		case err != nil:
			a.log.With(ctx, t.scope, telemetry.LevelError, "loading conversation failed", telemetry.Fields{"error": err.Error()})
			return nil, "provider_error", fmt.Errorf("%w: loading conversation: %v", ErrProvider, err)
		}
	}

	temporal := a.opts.Temporal.Create(t.principal.Timezone, t.principal.Language)
	t.text = textFor(t.principal.Language)
	history := replay(conv)
	system := prompt.Build(t.promptContext(turnCtx, temporal, conv), prompt.Options{IncludeExamples: a.opts.IncludeExamples})
	catalog := a.executor.Registry().LLMTools()

	env := tools.Env{
		UserID:        t.principal.ID,
		UserConfirmed: len(history) > 0 && tools.IsConfirmation(t.utterance),
		Now:           temporal.Now,
		Location:      temporal.Location(),
	}

	messages := append(slices.Clip(history), llm.Message{Role: "user", Content: t.utterance})
	var final string
	outcome := "ok"

loop:
	for {
		if t.rounds >= a.opts.MaxToolRounds {
			a.log.With(ctx, t.scope, telemetry.LevelWarning, "tool round limit reached", telemetry.Fields{"rounds": t.rounds})
			final = t.text.fallback
			t.fallback = true
			outcome = "fallback"
			break
		}

		trimmed := llm.TrimToBudget(system, catalog, messages, a.opts.MaxContextTokens)
		if len(trimmed) < len(messages) {
			a.log.With(ctx, t.scope, telemetry.LevelDebug, "context trimmed", telemetry.Fields{"from": len(messages), "to": len(trimmed)})
		}
		resp, err := t.callModel(turnCtx, ctx, system, trimmed, catalog)
		if err != nil {
			if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
				return t.timedOut(ctx)
			}
			a.log.With(ctx, t.scope, telemetry.LevelError, "model call failed", telemetry.Fields{"error": err.Error(), "round": t.rounds})
			return nil, "provider_error", fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if strings.TrimSpace(resp.Content) != "" {
			t.partial = resp.Content
		}
		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			break
		}

		t.rounds++
		messages = append(slices.Clip(messages), llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		results := t.runTools(turnCtx, ctx, env, resp.ToolCalls)
		for i, res := range results {
			call := resp.ToolCalls[i]
			t.used = append(t.used, toolCallUse(call), toolResultUse(call.ID, res))
			messages = append(messages, llm.Message{Role: "user", Content: res.JSON(), ToolCallID: call.ID, IsError: !res.Success})
		}
		// A tool cut short by the deadline reports the context error as a
		// fault; that is a timeout, not a data store failure.
		if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			return t.timedOut(ctx)
		}

		for i, res := range results {
			if res.Fault == nil {
				continue
			}
			if errors.Is(res.Fault, tools.ErrOwnership) {
				a.log.With(ctx, t.scope, telemetry.LevelError, "ownership violation, turn aborted", telemetry.Fields{
					"toolName": resp.ToolCalls[i].Name, "error": res.Fault.Error(),
				})
				final = t.text.refusal
				outcome = "refused"
				break loop
			}
			a.log.With(ctx, t.scope, telemetry.LevelError, "tool failed against the data store", telemetry.Fields{
				"toolName": resp.ToolCalls[i].Name, "error": res.Fault.Error(),
			})
			return nil, "provider_error", fmt.Errorf("%w: %s: %v", ErrProvider, resp.ToolCalls[i].Name, res.Fault)
		}
	}

	if strings.TrimSpace(final) == "" {
		final = t.text.empty
	}
	reply := t.reply(final)
	if err := t.persist(ctx, conv, final); err != nil {
		a.log.With(ctx, t.scope, telemetry.LevelError, "persisting turn failed", telemetry.Fields{"error": err.Error()})
		return nil, "provider_error", fmt.Errorf("%w: persisting turn: %v", ErrProvider, err)
	}

	a.log.With(ctx, t.scope, telemetry.LevelInfo, "turn completed", telemetry.Fields{
		"outcome":      outcome,
		"rounds":       t.rounds,
		"inputTokens":  t.usage.InputTokens,
		"outputTokens": t.usage.OutputTokens,
		"costCents":    reply.CostCents,
		"durationMs":   time.Since(t.started).Milliseconds(),
	})
	return reply, outcome, nil
}

func (t *turn) promptContext(ctx context.Context, temporal prompt.TemporalContext, conv *db.Conversation) prompt.Context {
	a := t.agent
	pc := prompt.Context{
		User: prompt.User{
			ID:          t.principal.ID,
			DisplayName: t.principal.DisplayName,
			Preferences: prompt.Preferences{Language: t.principal.Language, Timezone: t.principal.Timezone},
		},
		Temporal:            temporal,
		ConversationSummary: summarize(conv, t.principal.Language),
	}
	for _, tool := range a.executor.Registry().Tools() {
		pc.Tools = append(pc.Tools, prompt.ToolSummary{Name: tool.ToolName(), Description: tool.ToolDescription(), Class: string(tool.ToolClass())})
	}
	if a.stats != nil {
		s, err := a.stats.Get(ctx, t.principal.ID, temporal.Now, temporal.Location())
		if err != nil {
			a.log.With(ctx, t.scope, telemetry.LevelWarning, "stats unavailable", telemetry.Fields{"error": err.Error()})
			pc.StatsUnavailable = true
		} else {
			pc.Stats = s
		}
	}
	return pc
}

// callModel sends one request. turnCtx bounds the call; logCtx outlives it
// so the failure can still be logged.
func (t *turn) callModel(turnCtx, logCtx context.Context, system string, messages []llm.Message, catalog []llm.Tool) (*llm.Response, error) {
	a := t.agent
	a.log.LogModelRequest(logCtx, t.scope, len(messages), len(catalog) > 0, map[string]any{"system": system, "messages": messages})
	start := time.Now()
	resp, err := a.client.Chat(turnCtx, system, messages, catalog)
	if a.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.metrics.RecordModelCall(status, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	t.usage = t.usage.Add(resp.Usage)
	a.log.LogModelResponse(logCtx, t.scope, resp.FinishReason, len(resp.ToolCalls), resp.Usage.InputTokens, resp.Usage.OutputTokens, resp)
	return resp, nil
}

func (t *turn) timedOut(ctx context.Context) (*Reply, string, error) {
	t.agent.log.With(ctx, t.scope, telemetry.LevelError, "turn timed out", telemetry.Fields{
		"rounds":  t.rounds,
		"timeout": t.agent.opts.TurnTimeout.String(),
	})
	msg := t.partial
	if strings.TrimSpace(msg) == "" {
		msg = t.text.timeout
	}
	return t.reply(msg), "timeout", ErrTurnTimeout
}

func (t *turn) reply(msg string) *Reply {
	return &Reply{
		ConversationID: t.conversationID,
		Message:        msg,
		Usage:          t.usage,
		CostCents:      t.agent.opts.Pricing.CostCents(t.usage),
		ToolsUsed:      t.used,
		Rounds:         t.rounds,
		Fallback:       t.fallback,
	}
}

func (t *turn) persist(ctx context.Context, conv *db.Conversation, final string) error {
	title := ""
	if conv == nil {
		title = titleFrom(t.utterance)
	}
	return t.agent.store.AppendTurn(ctx, t.principal.ID, t.conversationID, title, []db.Message{
		{Role: "user", Content: t.utterance},
		{Role: "assistant", Content: final, ToolsUsed: t.used},
	})
}
