// Package taskextract implements the Task Extraction Agent (spec's
// Component G): reads a batch of conversation messages and decides how
// to create, update, or append to the session's task list.
//
// Grounded on original_source's llm/agent/task.py (pack_task_section,
// pack_previous_progress_section, pack_current_message_with_ids,
// task_agent_curd) and llm/prompt/task.py (TaskPrompt's system prompt and
// NEED_UPDATE_CTX tool set), translated onto pkg/agent/engine.
package taskextract

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/agent/engine"
	"github.com/nextlevelbuilder/acontext/pkg/llm"
	"github.com/nextlevelbuilder/acontext/pkg/store"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

// Agent runs the Task Extraction loop against one session's tasks and
// message batch.
type Agent struct {
	llm    *llm.Client
	tasks  *store.TaskStore
	maxIter int
}

// New builds a taskextract.Agent.
func New(llmClient *llm.Client, tasks *store.TaskStore, maxIterations int) *Agent {
	return &Agent{llm: llmClient, tasks: tasks, maxIter: maxIterations}
}

// Run analyzes messages newly appended to sessionID and mutates the task
// list accordingly. messages must already be persisted; Run only reads
// their ids/roles/content for prompting and task-linkage writes.
func (a *Agent) Run(ctx context.Context, sessionID uuid.UUID, messages []*store.Message) error {
	current, err := a.tasks.ListCurrentTasks(ctx, sessionID, nil)
	if err != nil {
		return fmt.Errorf("list current tasks: %w", err)
	}

	taskSection := packTaskSection(current)
	progressSection := packPreviousProgressSection(current, 6)
	messageSection := packCurrentMessageWithIDs(messages)

	pool, invalidate := a.buildToolPool(sessionID, messages)

	cfg := engine.Config{
		SystemPrompt: systemPrompt,
		Tools:        pool,
		FreshCtxTools: map[string]bool{
			"insert_task":               true,
			"update_task":               true,
			"append_messages_to_task":   true,
		},
		Invalidate:    invalidate,
		MaxIterations: a.maxIter,
	}

	input := packInput(progressSection, messageSection, taskSection)
	_, err = engine.Run(ctx, a.llm, cfg, input)
	return err
}

func packTaskSection(tasks []*store.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("- task_%d [%s] %s", t.Order, t.Status, t.Data.TaskDescription))
	}
	return strings.Join(lines, "\n")
}

func packPreviousProgressSection(tasks []*store.Task, limit int) string {
	var lines []string
	for i := len(tasks) - 1; i >= 0 && len(lines) < limit; i-- {
		t := tasks[i]
		maxTaken := limit - len(lines)
		progresses := t.Data.Progresses
		if len(progresses) > maxTaken {
			progresses = progresses[len(progresses)-maxTaken:]
		}
		for j := len(progresses) - 1; j >= 0; j-- {
			lines = append(lines, fmt.Sprintf("Task %d: %s", t.Order, progresses[j]))
		}
	}
	// reverse to chronological order
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

func packCurrentMessageWithIDs(messages []*store.Message) string {
	lines := make([]string, 0, len(messages))
	for i, m := range messages {
		content := string(m.Parts)
		if len(content) > 1024 {
			content = content[:1024]
		}
		lines = append(lines, fmt.Sprintf("<message id=%d> [%s] %s </message>", i, m.Role, content))
	}
	return strings.Join(lines, "\n")
}

func packInput(previousProgress, currentMessages, currentTasks string) string {
	return fmt.Sprintf(`## Current Existing Tasks:
%s

## Previous Progress:
%s

## Current Message with IDs:
%s

Please analyze the above information and determine the actions.`, currentTasks, previousProgress, currentMessages)
}

const systemPrompt = `You are a Task Management Agent that analyzes user/agent conversations to manage task statuses.

## Core Responsibilities
1. Task Tracking: collect planned tasks/steps from conversations.
2. Message Matching: match messages to existing tasks based on context and content.
3. Status Updating: update task statuses based on progress and completion signals.

## Rules
- If a task's status is 'success', you can't append messages to it or change its status.
- If a task's status is 'failed' and work resumes, update it to 'running' first, then append progress.
- Keep task granularity aligned with top-level planning steps (often 3-10 tasks); don't invent tasks the conversation never confirmed.
- Messages that are planning/requirements discussion, not execution, go to the planning section via append_messages_to_planning_section.
- Report your thinking briefly with report_thinking before acting, and again before calling finish.`

// buildToolPool wires insert_task/update_task/append_messages_to_task/
// append_messages_to_planning_section/report_thinking/finish against this
// run's session and message batch. invalidate resets nothing by itself —
// the tool handlers read directly from the store on every call — but the
// hook is kept so the engine's generic NEED_UPDATE_CTX wiring has
// somewhere to call into; it is the only agent that sets Invalidate.
func (a *Agent) buildToolPool(sessionID uuid.UUID, messages []*store.Message) (*tool.Pool, func()) {
	pool := tool.NewPool()

	type insertTaskArgs struct {
		AfterOrder      int    `json:"after_order"`
		TaskDescription string `json:"task_description"`
	}
	insertSchema, _ := tool.SchemaFor(&insertTaskArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "insert_task", Description: "Insert a new task after the given order.", ParametersSchema: insertSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args insertTaskArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			t, err := a.tasks.InsertTask(ctx, sessionID, args.AfterOrder, store.TaskData{TaskDescription: args.TaskDescription}, store.TaskStatusPending)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("created task_%d", t.Order), nil
		},
	})

	type updateTaskArgs struct {
		TaskOrder int    `json:"task_order"`
		Status    string `json:"status,omitempty"`
	}
	updateSchema, _ := tool.SchemaFor(&updateTaskArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "update_task", Description: "Update an existing task's status.", ParametersSchema: updateSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args updateTaskArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			task, err := findTaskByOrder(ctx, a.tasks, sessionID, args.TaskOrder)
			if err != nil {
				return "", err
			}
			params := store.UpdateTaskParams{}
			if args.Status != "" {
				status := store.TaskStatus(args.Status)
				params.Status = &status
			}
			if err := a.tasks.UpdateTask(ctx, task.ID, params); err != nil {
				return "", err
			}
			return fmt.Sprintf("updated task_%d", args.TaskOrder), nil
		},
	})

	type appendMessagesArgs struct {
		TaskOrder      int    `json:"task_order"`
		MessageIndices []int  `json:"message_indices"`
		Progress       string `json:"progress"`
		UserPreference string `json:"user_preference_and_infos,omitempty"`
	}
	appendSchema, _ := tool.SchemaFor(&appendMessagesArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "append_messages_to_task", Description: "Record progress and link the named messages (by index) to a task.", ParametersSchema: appendSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args appendMessagesArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			task, err := findTaskByOrder(ctx, a.tasks, sessionID, args.TaskOrder)
			if err != nil {
				return "", err
			}
			ids, err := selectMessageIDs(messages, args.MessageIndices)
			if err != nil {
				return "", err
			}
			var pref *string
			if args.UserPreference != "" {
				pref = &args.UserPreference
			}
			if err := a.tasks.AppendProgressToTask(ctx, task.ID, args.Progress, pref); err != nil {
				return "", err
			}
			if err := a.tasks.AppendMessagesToTask(ctx, ids, task.ID); err != nil {
				return "", err
			}
			return fmt.Sprintf("appended to task_%d", args.TaskOrder), nil
		},
	})

	type appendPlanningArgs struct {
		MessageIndices []int `json:"message_indices"`
	}
	appendPlanningSchema, _ := tool.SchemaFor(&appendPlanningArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "append_messages_to_planning_section", Description: "Attribute the named messages (by index) to the planning task.", ParametersSchema: appendPlanningSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args appendPlanningArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			ids, err := selectMessageIDs(messages, args.MessageIndices)
			if err != nil {
				return "", err
			}
			if err := a.tasks.AppendMessagesToPlanningSection(ctx, sessionID, ids); err != nil {
				return "", err
			}
			return "appended to planning section", nil
		},
	})

	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "report_thinking", Description: "Report brief reasoning before acting."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ack", nil
		},
	})

	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "finish", Description: "Signal that all necessary actions have been taken."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "done", nil
		},
	})

	return pool, func() {}
}

func findTaskByOrder(ctx context.Context, tasks *store.TaskStore, sessionID uuid.UUID, order int) (*store.Task, error) {
	current, err := tasks.ListCurrentTasks(ctx, sessionID, nil)
	if err != nil {
		return nil, err
	}
	for _, t := range current {
		if t.Order == order {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: no task at order %d", store.ErrValidation, order)
}

// selectMessageIDs resolves message_indices[] (spec §4.G: only the named
// messages get linked, not the whole flush batch) against the current
// message batch, rejecting any index out of bounds so the LLM can retry
// with corrected arguments.
func selectMessageIDs(messages []*store.Message, indices []int) ([]uuid.UUID, error) {
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: message_indices must name at least one message", store.ErrValidation)
	}
	ids := make([]uuid.UUID, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(messages) {
			return nil, fmt.Errorf("%w: message_indices contains out-of-range index %d", store.ErrValidation, idx)
		}
		ids = append(ids, messages[idx].ID)
	}
	return ids, nil
}
