// Package sopabstract implements the SOP Abstraction Agent (spec's
// Component H): reviews one completed task's progress and decides
// whether it's worth distilling into a reusable preference/procedure
// (SOPData) for the Space Construction Agent to file away. Trivial tasks
// are skipped — the agent calls submit_sop with is_easy_task=true, and
// nothing is published for them.
//
// Grounded on original_source's llm/agent/task_sop.py (pack_task_data,
// pack_one_task_progress_context, pack_previous_task_context,
// sop_agent_curd's already_submit-then-break shape).
package sopabstract

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/acontext/pkg/agent/engine"
	"github.com/nextlevelbuilder/acontext/pkg/llm"
	"github.com/nextlevelbuilder/acontext/pkg/store"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

// Agent runs the SOP Abstraction loop for one task.
type Agent struct {
	llm     *llm.Client
	tasks   *store.TaskStore
	maxIter int
}

// New builds a sopabstract.Agent.
func New(llmClient *llm.Client, tasks *store.TaskStore, maxIterations int) *Agent {
	return &Agent{llm: llmClient, tasks: tasks, maxIter: maxIterations}
}

// Run reviews currentTask (plus its preceding tasks for context) and
// returns the distilled SOPData, or nil if the agent judged the task too
// trivial to warrant one.
func (a *Agent) Run(ctx context.Context, currentTask *store.Task, precedingTasks []*store.Task, messages []*store.Message) (*store.SOPData, error) {
	taskDesc := currentTask.Data.TaskDescription
	userPreferences := strings.Join(prefixLines(currentTask.Data.UserPreferences, "- "), "\n")
	rawMessages := packRawMessages(messages)
	previousContext := packPreviousTaskContext(precedingTasks, currentTask)

	var submitted *store.SOPData
	pool := tool.NewPool()

	type submitArgs struct {
		IsEasyTask  bool            `json:"is_easy_task"`
		UseWhen     string          `json:"use_when"`
		Preferences string          `json:"preferences"`
		ToolSOPs    []store.SOPStep `json:"tool_sops"`
	}
	submitSchema, _ := tool.SchemaFor(&submitArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "submit_sop", Description: "Submit the distilled SOP for this task, or mark it an easy task with no reusable SOP.", ParametersSchema: submitSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args submitArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			if args.IsEasyTask {
				return "accepted: no SOP committed for an easy task", nil
			}
			data := store.SOPData{UseWhen: args.UseWhen, Preferences: args.Preferences, ToolSOPs: args.ToolSOPs}
			if !data.Valid() {
				return "rejected: needs non-blank preferences or at least one tool_sop", nil
			}
			submitted = &data
			return "submitted", nil
		},
	})
	type reportThinkingArgs struct {
		Thinking string `json:"thinking"`
	}
	thinkingSchema, _ := tool.SchemaFor(&reportThinkingArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "report_thinking", Description: "Report brief reasoning before acting.", ParametersSchema: thinkingSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args reportThinkingArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			if args.Thinking == "" {
				return "ack", nil
			}
			if err := a.tasks.AppendSOPThinking(ctx, currentTask.ID, args.Thinking); err != nil {
				return "", err
			}
			return "ack", nil
		},
	})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "finish", Description: "Signal that no further action is needed."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "done", nil
		},
	})

	cfg := engine.Config{
		SystemPrompt:  systemPrompt,
		Tools:         pool,
		TerminalTools: map[string]bool{"submit_sop": true},
		MaxIterations: a.maxIter,
	}

	input := packInput(previousContext, taskDesc, userPreferences, rawMessages)
	if _, err := engine.Run(ctx, a.llm, cfg, input); err != nil {
		return nil, fmt.Errorf("sop abstraction run: %w", err)
	}
	return submitted, nil
}

func prefixLines(lines []string, prefix string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = prefix + l
	}
	return out
}

func packRawMessages(messages []*store.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		content := string(m.Parts)
		if len(content) > 1024 {
			content = content[:1024]
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", m.Role, content))
	}
	return strings.Join(lines, "\n")
}

func packOneTaskProgressContext(t *store.Task) string {
	progress := strings.Join(prefixLines(t.Data.Progresses, "- "), "\n")
	return fmt.Sprintf("<task id=%d>\nDescription: %s\nProgresses:\n%s\n</task>\n", t.Order, t.Data.TaskDescription, progress)
}

func packPreviousTaskContext(previousTasks []*store.Task, currentTask *store.Task) string {
	lines := make([]string, 0, len(previousTasks))
	for _, t := range previousTasks {
		lines = append(lines, packOneTaskProgressContext(t))
	}
	return fmt.Sprintf("%s\nYou're looking at task %d.\n", strings.Join(lines, "\n"), currentTask.Order)
}

func packInput(previousTaskContext, taskDesc, userPreferences, rawMessages string) string {
	return fmt.Sprintf(`## Previous Task Context:
%s

## Current Task:
%s

## User Preferences:
%s

## Messages:
%s`, previousTaskContext, taskDesc, userPreferences, rawMessages)
}

const systemPrompt = `You are an SOP Abstraction Agent. Review one completed task's progress and decide whether it contains a reusable preference or procedure worth recording for future tasks of the same kind.

## Rules
- Skip trivial tasks: if nothing generalizes (no explicit user preference, no reusable tool procedure), call submit_sop with is_easy_task=true; no SOP is committed.
- Otherwise submit_sop needs either a non-blank preferences string or at least one tool_sops entry; a call with neither is rejected.
- tool_sops entries name a concrete tool_name and the action/sequence that worked.
- Report your thinking briefly with report_thinking before acting.`
