// Package engine implements the generic bounded tool-calling agent loop
// (spec's Component F) shared by every agent in pkg/agent/*: Task
// Extraction, SOP Abstraction, Space Construction, and Agentic Search.
//
// Grounded on the teacher's pkg/agent/controller.IteratingController.Run
// (bounded iteration, tool-call execution, forced conclusion at max
// iterations) and cross-checked against the isomorphic Python loops in
// original_source's llm/agent/task.py, task_sop.py, and space_construct.py
// (task_agent_curd, sop_agent_curd, space_construct_agent_curd).
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/acontext/pkg/llm"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

// FinishToolName is the universal tool every agent loop recognizes as an
// explicit "stop iterating" signal, matching the Python loops' "finish"
// tool_call short-circuit.
const FinishToolName = "finish"

// ReportThinkingToolName is the universal tool used to surface
// intermediate reasoning into the transcript (sopabstract's handler also
// persists it).
const ReportThinkingToolName = "report_thinking"

// Config parameterizes one bounded agent loop run.
type Config struct {
	SystemPrompt string
	Tools        *tool.Pool
	// FreshCtxTools names the tools whose execution, even one that
	// returns an error result, must
	// invalidate any domain context cached across iterations — mirrors
	// NEED_UPDATE_CTX in the original Python agents. Callers rebuild their
	// context lazily from the next tool handler invocation.
	FreshCtxTools map[string]bool
	// Invalidate is called once per iteration, after tool execution, if
	// any executed tool is in FreshCtxTools. May be nil.
	Invalidate func()
	// TerminalTools names tools besides "finish" whose call both executes
	// normally (so its handler can capture a result, e.g. sopabstract's
	// submit_sop) and ends the loop in the same turn — mirrors
	// space_construct_agent_curd/sop_agent_curd's "mutually terminal"
	// tool_call handling, where the original still breaks out of the loop
	// the same iteration a terminal tool was called.
	TerminalTools map[string]bool
	MaxIterations int
}

// Result is what a bounded loop run produces.
type Result struct {
	FinalText     string
	Iterations    int
	Usage         llm.Usage
	StoppedReason StopReason
}

// StopReason records why the loop ended.
type StopReason string

const (
	StopReasonNoToolCalls   StopReason = "no_tool_calls"
	StopReasonFinishCalled  StopReason = "finish_called"
	StopReasonMaxIterations StopReason = "max_iterations"
)

// Run drives the bounded loop: call the LLM with tools bound, execute any
// requested tool calls, feed results back, and repeat until the model
// stops requesting tools, calls "finish", or MaxIterations is reached.
func Run(ctx context.Context, client *llm.Client, cfg Config, initialUserMessage string) (*Result, error) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: cfg.SystemPrompt},
		{Role: llm.RoleUser, Content: initialUserMessage},
	}

	defs := cfg.Tools.Definitions()
	total := llm.Usage{}

	for iteration := 0; iteration < cfg.MaxIterations; iteration++ {
		resp, err := client.Complete(ctx, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", iteration+1, err)
		}
		total.PromptTokens += resp.Usage.PromptTokens
		total.CompletionTokens += resp.Usage.CompletionTokens
		total.TotalTokens += resp.Usage.TotalTokens

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			return &Result{FinalText: resp.Text, Iterations: iteration + 1, Usage: total, StoppedReason: StopReasonNoToolCalls}, nil
		}

		finishCalled := false
		needsFreshCtx := false
		for _, call := range resp.ToolCalls {
			if call.Name == FinishToolName {
				finishCalled = true
				continue
			}
			if cfg.TerminalTools[call.Name] {
				finishCalled = true
			}

			result, err := cfg.Tools.Execute(ctx, call)
			if err != nil {
				return nil, fmt.Errorf("iteration %d: tool %q: %w", iteration+1, call.Name, err)
			}
			if result.IsError {
				slog.Warn("tool call failed", "tool", call.Name, "content", result.Content)
			} else if call.Name != ReportThinkingToolName {
				slog.Info("tool call", "tool", call.Name, "arguments", call.Arguments, "result", result.Content)
			}

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result.Content,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})

			if cfg.FreshCtxTools[call.Name] {
				needsFreshCtx = true
			}
		}

		if needsFreshCtx && cfg.Invalidate != nil {
			cfg.Invalidate()
		}

		if finishCalled {
			return &Result{FinalText: resp.Text, Iterations: iteration + 1, Usage: total, StoppedReason: StopReasonFinishCalled}, nil
		}
	}

	return &Result{Iterations: cfg.MaxIterations, Usage: total, StoppedReason: StopReasonMaxIterations}, nil
}
