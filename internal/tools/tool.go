// Package tools is the registry of operations the model may invoke. Every
// tool has a typed input, a declared mutation class and a handler that only
// ever reaches the repository scoped to the authenticated user.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/llm"
	"github.com/chris/dayplan/internal/stats"
)

// Class is a tool's mutation class.
type Class string

const (
	ClassRead        Class = "read"
	ClassWrite       Class = "write-nondestructive"
	ClassDestructive Class = "write-destructive"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	// ErrOwnership means a record owned by someone else reached a tool.
	ErrOwnership = errors.New("ownership violation")

	errConfirmationRequired = errors.New("confirmation required")
)

// Repository is the slice of the entity store the tools use. Every method
// takes the owning user's id.
type Repository interface {
	ListEntities(ctx context.Context, userID string, kind db.Kind, f db.Filter) ([]db.Entity, error)
	GetEntity(ctx context.Context, userID string, kind db.Kind, id int64, includeDeleted bool) (*db.Entity, error)
	CreateEntity(ctx context.Context, userID string, kind db.Kind, fields map[string]any) (int64, error)
	UpdateEntity(ctx context.Context, userID string, kind db.Kind, id int64, fields map[string]any) error
	DeleteEntity(ctx context.Context, userID string, kind db.Kind, id int64) error
	CompleteTask(ctx context.Context, userID string, id int64, at time.Time) error
}

// StatsSource backs get_overview.
type StatsSource interface {
	Get(ctx context.Context, userID string, now time.Time, loc *time.Location) (*stats.UserStats, error)
}

// Env is what a handler knows about the caller. UserID always comes from
// the authenticated principal, never from tool input.
type Env struct {
	UserID string
	// UserConfirmed is set by the orchestrator when the latest user message
	// is an explicit confirmation.
	UserConfirmed bool
	Now           time.Time
	Location      *time.Location
}

func (e Env) location() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

type Deps struct {
	Repo  Repository
	Stats StatsSource
}

// Input is implemented by every tool input struct.
type Input interface {
	Validate() error
}

// Definition is one tool with a strongly typed input.
type Definition[In Input] struct {
	Name        string
	Description string
	Class       Class
	Handle      func(ctx context.Context, env Env, deps Deps, in In) (any, error)
}

// Tool is the type-erased view of a Definition held by the registry.
type Tool interface {
	ToolName() string
	ToolDescription() string
	ToolClass() Class
	Schema() map[string]any
	invoke(ctx context.Context, env Env, deps Deps, raw json.RawMessage) (any, error)
}

func (d *Definition[In]) ToolName() string        { return d.Name }
func (d *Definition[In]) ToolDescription() string { return d.Description }
func (d *Definition[In]) ToolClass() Class        { return d.Class }

func (d *Definition[In]) Schema() map[string]any {
	return schemaFor[In]()
}

func (d *Definition[In]) invoke(ctx context.Context, env Env, deps Deps, raw json.RawMessage) (any, error) {
	in, err := decodeInput[In](raw)
	if err != nil {
		return nil, err
	}
	return d.Handle(ctx, env, deps, in)
}

// InputError is a malformed or invalid tool input. It becomes a
// success=false result and never reaches the repository.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

func invalidf(format string, args ...any) error {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

func decodeInput[In Input](raw json.RawMessage) (In, error) {
	var in In
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return in, invalidf("input must be a JSON object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, invalidf("invalid input: %v", err)
	}
	if err := in.Validate(); err != nil {
		var ie *InputError
		if errors.As(err, &ie) {
			return in, err
		}
		return in, invalidf("%v", err)
	}
	return in, nil
}

func schemaFor[In any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v In
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	if _, ok := m["properties"]; !ok {
		m["properties"] = map[string]any{}
	}
	return m
}

// Registry maps tool names to tools, in registration order.
type Registry struct {
	order  []string
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool. Registering a name twice panics.
func (r *Registry) Register(t Tool) {
	if _, dup := r.byName[t.ToolName()]; dup {
		panic("tools: duplicate tool " + t.ToolName())
	}
	r.order = append(r.order, t.ToolName())
	r.byName[t.ToolName()] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// LLMTools returns the catalog in the shape the model clients take.
func (r *Registry) LLMTools() []llm.Tool {
	out := make([]llm.Tool, 0, len(r.order))
	for _, t := range r.Tools() {
		out = append(out, llm.Tool{Name: t.ToolName(), Description: t.ToolDescription(), Parameters: t.Schema()})
	}
	return out
}

// Footprint is the entity a call touches, used to decide which calls in a
// round may run concurrently. ID is zero when the call names no single
// entity.
type Footprint struct {
	Kind   db.Kind
	ID     int64
	Writes bool
}

func (r *Registry) Footprint(name string, raw json.RawMessage) Footprint {
	t, ok := r.byName[name]
	if !ok {
		return Footprint{}
	}
	fp := Footprint{Writes: t.ToolClass() != ClassRead}
	if !gjson.ValidBytes(raw) {
		return fp
	}
	parsed := gjson.ParseBytes(raw)
	fp.Kind = db.Kind(parsed.Get("entityType").String())
	if name == "complete_task" {
		fp.Kind = db.KindTask
	}
	fp.ID = parsed.Get("id").Int()
	return fp
}

// Conflicts reports whether two calls must not run in the same wave.
func (f Footprint) Conflicts(o Footprint) bool {
	if f.ID == 0 || o.ID == 0 || f.Kind != o.Kind || f.ID != o.ID {
		return false
	}
	return f.Writes || o.Writes
}
