// Package spaceconstruct implements the Space-Construction Agent (spec's
// Component I): given one or more distilled SOPData candidates from the
// SOP Abstraction Agent, files each into the right page of a space's
// folder/page tree, marking the originating task's space_digested flag
// once inserted.
//
// Grounded on original_source's llm/agent/space_construct.py
// (build_space_ctx's path_2_block_ids seed, pack_candidate_data_list,
// space_construct_agent_curd's loop and post-hook) and
// llm/tool/space_lib/{ls.py,insert_candidate_data_as_content.py} for the
// two tools' schemas and validation shape. ls.py's handler body in the
// original is a stub that always returns the literal string "fool"; we
// implement the documented intended behavior instead (spec §9 design
// notes): render list_paths_under as an indented tree.
package spaceconstruct

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/agent/engine"
	"github.com/nextlevelbuilder/acontext/pkg/llm"
	"github.com/nextlevelbuilder/acontext/pkg/retrieval"
	"github.com/nextlevelbuilder/acontext/pkg/store"
	"github.com/nextlevelbuilder/acontext/pkg/tool"
)

// Candidate is one SOPData awaiting placement, paired with the task it
// was distilled from so the post-hook can mark that task digested once
// (and only once) the candidate is actually inserted.
type Candidate struct {
	TaskID uuid.UUID
	SOP    store.SOPData
}

// Agent runs the Space Construction loop for one batch of candidates
// against one space.
type Agent struct {
	llm     *llm.Client
	blocks  *store.BlockStore
	tasks   *store.TaskStore
	index   *retrieval.Searcher // may be nil: indexing is best-effort
	maxIter int
}

// New builds a spaceconstruct.Agent. index may be nil if newly inserted
// blocks don't need to become searchable immediately.
func New(llmClient *llm.Client, blocks *store.BlockStore, tasks *store.TaskStore, index *retrieval.Searcher, maxIterations int) *Agent {
	return &Agent{llm: llmClient, blocks: blocks, tasks: tasks, index: index, maxIter: maxIterations}
}

// Run places each candidate's SOP into spaceID's tree, then marks every
// task whose candidate was actually inserted as space_digested. A
// candidate the agent never inserts leaves its task not-digested, so a
// future run can retry it; no bookkeeping is corrupted by a partial run.
func (a *Agent) Run(ctx context.Context, projectID, spaceID uuid.UUID, candidates []Candidate) error {
	// A redelivered event for a task that is already space_digested is a
	// no-op: such candidates are dropped before the agent runs.
	pending := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		task, err := a.tasks.FetchTask(ctx, c.TaskID)
		if err != nil {
			return fmt.Errorf("fetch task %s: %w", c.TaskID, err)
		}
		if !task.SpaceDigested {
			pending = append(pending, c)
		}
	}
	candidates = pending
	if len(candidates) == 0 {
		return nil
	}

	alreadyInserted := make(map[int]bool)
	candidateSection := packCandidateDataList(candidates)

	pool := a.buildToolPool(projectID, spaceID, candidates, alreadyInserted)

	cfg := engine.Config{
		SystemPrompt:  systemPrompt,
		Tools:         pool,
		MaxIterations: a.maxIter,
	}

	input := packInput(candidateSection)
	if _, err := engine.Run(ctx, a.llm, cfg, input); err != nil {
		return fmt.Errorf("space construction run: %w", err)
	}

	for i, digested := range alreadyInserted {
		if !digested {
			continue
		}
		if err := a.tasks.SetTaskSpaceDigested(ctx, candidates[i].TaskID); err != nil {
			return fmt.Errorf("mark task %s digested: %w", candidates[i].TaskID, err)
		}
	}
	return nil
}

func packCandidateDataList(candidates []Candidate) string {
	lines := make([]string, len(candidates))
	for i, c := range candidates {
		lines[i] = fmt.Sprintf("<candidate_data id=%d>use_when=%q preferences=%q tool_sops=%v</candidate_data>",
			i, c.SOP.UseWhen, c.SOP.Preferences, c.SOP.ToolSOPs)
	}
	return strings.Join(lines, "\n")
}

func packInput(candidateSection string) string {
	return fmt.Sprintf(`## Candidate Data:
%s

Place each candidate into the right page of the space, creating folders and pages as needed.`, candidateSection)
}

const systemPrompt = `You are a Space Construction Agent. You file distilled task procedures (SOPs) into the correct page of a knowledge space's folder/page tree.

## Rules
- Use ls to explore the existing tree before deciding where a candidate belongs. Prefer an existing page whose topic matches; create a new folder/page only when nothing fits.
- insert_candidate_data_as_content may only be called once per candidate_index; a repeat call is rejected.
- A candidate must land in a page, never a folder.
- Report your thinking briefly with report_thinking before acting, then call finish once every candidate has been placed or judged unplaceable.`

// buildToolPool wires ls/create_path_block/
// insert_candidate_data_as_content against this run's space and candidate
// list, plus report_thinking/finish.
func (a *Agent) buildToolPool(projectID, spaceID uuid.UUID, candidates []Candidate, alreadyInserted map[int]bool) *tool.Pool {
	pool := tool.NewPool()

	type lsArgs struct {
		FolderPath string `json:"folder_path"`
		Depth      int    `json:"depth,omitempty"`
	}
	lsSchema, _ := tool.SchemaFor(&lsArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "ls", Description: "List pages and folders under a folder path.", ParametersSchema: lsSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args lsArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			if args.FolderPath == "" {
				args.FolderPath = "/"
			}
			if args.Depth <= 0 {
				args.Depth = 3
			}
			parentID, parentType, err := a.blocks.ResolvePath(ctx, spaceID, args.FolderPath)
			if err != nil {
				return "", err
			}
			if parentID != nil && parentType != store.BlockTypeFolder {
				return fmt.Sprintf("bad_request: %s is a %s, not a folder", args.FolderPath, parentType), nil
			}
			entries, err := a.blocks.ListPathsUnder(ctx, spaceID, parentID, args.Depth)
			if err != nil {
				return "", err
			}
			return renderTree(args.FolderPath, entries), nil
		},
	})

	type createPathArgs struct {
		ParentPath string `json:"parent_path"`
		Title      string `json:"title"`
		Type       string `json:"type"`
	}
	createSchema, _ := tool.SchemaFor(&createPathArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "create_path_block", Description: "Create a new folder or page under parent_path.", ParametersSchema: createSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args createPathArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			parentID, _, err := a.blocks.ResolvePath(ctx, spaceID, args.ParentPath)
			if err != nil {
				return "", err
			}
			if _, err := a.blocks.CreatePathBlock(ctx, spaceID, parentID, store.BlockType(args.Type), args.Title); err != nil {
				return "", err
			}
			return fmt.Sprintf("created %s %q at %s", args.Type, args.Title, joinPath(args.ParentPath, args.Title)), nil
		},
	})

	type insertArgs struct {
		PagePath        string `json:"page_path"`
		AfterBlockIndex int    `json:"after_block_index"`
		CandidateIndex  int    `json:"candidate_index"`
	}
	insertSchema, _ := tool.SchemaFor(&insertArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "insert_candidate_data_as_content", Description: "Insert candidate data to a page as a block.", ParametersSchema: insertSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args insertArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			if args.CandidateIndex < 0 || args.CandidateIndex >= len(candidates) {
				return fmt.Sprintf("invalid candidate_index: %d", args.CandidateIndex), nil
			}
			if alreadyInserted[args.CandidateIndex] {
				return fmt.Sprintf("candidate data %d already inserted", args.CandidateIndex), nil
			}

			pageID, pageType, err := a.blocks.ResolvePath(ctx, spaceID, args.PagePath)
			if err != nil {
				return fmt.Sprintf("page %s not found: %v", args.PagePath, err), nil
			}
			if pageID == nil || pageType != store.BlockTypePage {
				return fmt.Sprintf("path %s is not a page", args.PagePath), nil
			}

			// The SOP block is appended after the page's existing
			// children; after_block_index does not affect its placement.
			candidate := candidates[args.CandidateIndex]
			block, err := a.blocks.WriteSOPToParent(ctx, spaceID, *pageID, projectID, candidate.SOP.UseWhen, candidate.SOP)
			if err != nil {
				return "", err
			}

			if a.index != nil {
				_ = a.index.IndexBlock(ctx, block.ID, candidate.SOP.UseWhen+" "+candidate.SOP.Preferences)
			}

			alreadyInserted[args.CandidateIndex] = true
			return fmt.Sprintf("inserted candidate data %d at the end of page %s", args.CandidateIndex, args.PagePath), nil
		},
	})

	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "report_thinking", Description: "Report brief reasoning before acting."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ack", nil
		},
	})

	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "finish", Description: "Signal that every placeable candidate has been placed."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "done", nil
		},
	})

	return pool
}

func joinPath(parent, title string) string {
	if parent == "/" || parent == "" {
		return "/" + title
	}
	return strings.TrimRight(parent, "/") + "/" + title
}

func renderTree(rootPath string, entries []*store.PathEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rootPath)
	renderEntries(&b, entries, 1)
	return b.String()
}

func renderEntries(b *strings.Builder, entries []*store.PathEntry, depth int) {
	for _, e := range entries {
		fmt.Fprintf(b, "%s- %s (%s)\n", strings.Repeat("  ", depth), e.Block.Title, e.Block.Type)
		renderEntries(b, e.Children, depth+1)
	}
}
