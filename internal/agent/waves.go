package agent

import (
	"context"
	"sync"
	"time"

	"github.com/chris/dayplan/internal/llm"
	"github.com/chris/dayplan/internal/tools"
)

// planWaves groups a round's tool calls into waves that may run
// concurrently. Order is preserved: a call that conflicts with anything in
// the current wave starts the next one.
func planWaves(reg *tools.Registry, calls []llm.ToolCall) [][]int {
	var waves [][]int
	var current []int
	var prints []tools.Footprint
	for i, c := range calls {
		fp := reg.Footprint(c.Name, c.Input)
		for _, j := range current {
			if fp.Conflicts(prints[j]) {
				waves = append(waves, current)
				current = nil
				break
			}
		}
		prints = append(prints, fp)
		current = append(current, i)
	}
	if len(current) > 0 {
		waves = append(waves, current)
	}
	return waves
}

// runTools executes every call and returns results in call order.
func (t *turn) runTools(ctx, logCtx context.Context, env tools.Env, calls []llm.ToolCall) []tools.Result {
	a := t.agent
	results := make([]tools.Result, len(calls))
	for _, wave := range planWaves(a.executor.Registry(), calls) {
		var wg sync.WaitGroup
		for _, i := range wave {
			call := calls[i]
			wg.Go(func() {
				a.log.LogToolCall(logCtx, t.scope, call.Name, call.ID, string(call.Input))
				start := time.Now()
				res := a.executor.Execute(ctx, env, call.Name, call.Input)
				a.log.LogToolResult(logCtx, t.scope, call.Name, call.ID, res.Success, res.ExecutionTimeMs, res)
				if a.metrics != nil {
					a.metrics.RecordToolCall(call.Name, toolStatus(res), time.Since(start))
				}
				results[i] = res
			})
		}
		wg.Wait()
	}
	return results
}

func toolStatus(res tools.Result) string {
	switch {
	case res.Success:
		return "ok"
	case res.ConfirmationRequired:
		return "confirmation_required"
	case res.Fault != nil:
		return "fault"
	}
	return "error"
}
