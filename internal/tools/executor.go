package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/chris/dayplan/internal/db"
	"github.com/chris/dayplan/internal/telemetry"
)

// Result is what the model sees for one tool call.
type Result struct {
	ToolName             string `json:"toolName"`
	Success              bool   `json:"success"`
	Data                 any    `json:"data,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
	ConfirmationRequired bool   `json:"confirmationRequired,omitempty"`
	ExecutionTimeMs      int64  `json:"executionTimeMs"`

	// Fault is set when the call failed for a reason the conversation
	// cannot absorb: a repository failure or an ownership violation.
	Fault error `json:"-"`
}

// JSON is the result as sent back to the model.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"toolName":%q,"success":false,"errorMessage":"result could not be encoded"}`, r.ToolName)
	}
	return string(b)
}

type Executor struct {
	registry *Registry
	deps     Deps
	log      *telemetry.Logger
}

func NewExecutor(registry *Registry, deps Deps, log *telemetry.Logger) *Executor {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Executor{registry: registry, deps: deps, log: log}
}

func (e *Executor) Registry() *Registry { return e.registry }

// Execute runs one tool call. It never panics and never returns an error:
// every outcome is a Result.
func (e *Executor) Execute(ctx context.Context, env Env, name string, raw json.RawMessage) (res Result) {
	start := time.Now()
	res.ToolName = name
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(ctx, "tool panicked", telemetry.Fields{
				"userId":   env.UserID,
				"toolName": name,
				"panic":    fmt.Sprint(r),
				"stack":    string(debug.Stack()),
			})
			res = Result{ToolName: name, ErrorMessage: "internal error while running the tool"}
		}
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
	}()

	if env.UserID == "" {
		res.ErrorMessage = "no authenticated user"
		res.Fault = ErrOwnership
		return res
	}
	if env.Now.IsZero() {
		env.Now = time.Now()
	}
	tool, ok := e.registry.Lookup(name)
	if !ok {
		res.ErrorMessage = fmt.Sprintf("unknown tool %q", name)
		return res
	}

	data, err := tool.invoke(ctx, env, e.deps, raw)
	if err == nil {
		res.Success = true
		res.Data = data
		return res
	}

	var inputErr *InputError
	switch {
	case errors.As(err, &inputErr):
		res.ErrorMessage = inputErr.Error()
	case errors.Is(err, errConfirmationRequired):
		res.ConfirmationRequired = true
		res.ErrorMessage = "this action needs explicit confirmation from the user before it can run"
	case db.IsNotFound(err):
		res.ErrorMessage = err.Error()
	case errors.Is(err, ErrOwnership):
		e.log.Error(ctx, "ownership violation in tool", telemetry.Fields{
			"userId": env.UserID, "toolName": name, "error": err.Error(),
		})
		res.ErrorMessage = "access denied"
		res.Fault = err
	default:
		res.ErrorMessage = "the data store failed to complete the request"
		res.Fault = err
	}
	return res
}

// checkOwned verifies records returned by the repository belong to the
// caller and honour the visibility flags.
func checkOwned(env Env, entities []db.Entity, includeArchived, includeDeleted bool) ([]db.Entity, error) {
	out := entities[:0]
	for _, ent := range entities {
		if ent.UserID != env.UserID {
			return nil, fmt.Errorf("%s %d: %w", ent.Kind, ent.ID, ErrOwnership)
		}
		if (ent.Archived && !includeArchived) || (ent.Deleted && !includeDeleted) {
			continue
		}
		out = append(out, ent)
	}
	return out, nil
}

func checkOwnedOne(env Env, ent *db.Entity) error {
	if ent.UserID != env.UserID {
		return fmt.Errorf("%s %d: %w", ent.Kind, ent.ID, ErrOwnership)
	}
	return nil
}
