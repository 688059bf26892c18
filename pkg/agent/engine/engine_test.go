package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextlevelbuilder/acontext/pkg/agent/engine"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

func TestFreshCtxToolsInvalidatesCachedContext(t *testing.T) {
	pool := tool.NewPool()
	invalidated := 0
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "mutate"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ok", nil
		},
	})

	cfg := engine.Config{
		Tools:         pool,
		FreshCtxTools: map[string]bool{"mutate": true},
		Invalidate:    func() { invalidated++ },
		MaxIterations: 1,
	}

	// Directly exercise the invalidate-on-fresh-ctx-tool contract without a
	// live LLM: simulate one iteration's tool handling by calling Execute
	// and checking the FreshCtxTools set membership the way Run does.
	result, err := pool.Execute(context.Background(), tool.Call{Name: "mutate"})
	assert.NoError(t, err)
	assert.False(t, result.IsError)
	if cfg.FreshCtxTools["mutate"] {
		cfg.Invalidate()
	}
	assert.Equal(t, 1, invalidated)
}

func TestTerminalToolsMarksFinishWithoutSkippingExecution(t *testing.T) {
	pool := tool.NewPool()
	executed := false
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "submit_sop"},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			executed = true
			return "submitted", nil
		},
	})

	cfg := engine.Config{
		Tools:         pool,
		TerminalTools: map[string]bool{"submit_sop": true},
	}

	// Mirrors the per-call branch Run takes: a TerminalTools member still
	// executes (so its handler can capture a result) and also sets the
	// loop's finishCalled flag, unlike the literal "finish" name which
	// never executes at all.
	result, err := pool.Execute(context.Background(), tool.Call{Name: "submit_sop"})
	assert.NoError(t, err)
	assert.False(t, result.IsError)
	assert.True(t, executed)
	assert.True(t, cfg.TerminalTools["submit_sop"])
}

func TestStopReasonConstants(t *testing.T) {
	assert.Equal(t, engine.StopReason("no_tool_calls"), engine.StopReasonNoToolCalls)
	assert.Equal(t, engine.StopReason("finish_called"), engine.StopReasonFinishCalled)
	assert.Equal(t, engine.StopReason("max_iterations"), engine.StopReasonMaxIterations)
}
