// Package search implements the Experience-Search Agent (spec's
// Component J): a Fast mode, a thin pass-through over pkg/retrieval's
// pure vector search, and an Agentic mode that runs a bounded tool loop
// (semantic_glob/semantic_grep/open_page/answer) to iteratively refine
// results before citing a final answer.
//
// space_search.py (the Python agent this mirrors) did not survive the
// retrieval pack's filtering — original_source/_INDEX.md lists no
// llm/agent/space_search.py — so this package is grounded directly on
// spec §4.J's tool list and termination contract, on api.py's
// experience_search endpoint (mode dispatch, SearchResultBlockItem
// shape, semantic_grep_search_func's block-id/title/type/props/distance
// fields) and on block_search.py (search ranking, reused via
// pkg/retrieval), following the same engine.Run shape as the other three
// agents for consistency.
package search

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

// Mode selects between pure vector search and the LLM-iterative agent.
type Mode string

const (
	ModeFast    Mode = "fast"
	ModeAgentic Mode = "agentic"
)

// ResultItem is one cited block, rendered for the caller. Distance is
// nil for agentic-mode citations, which aren't ranked by a single score.
type ResultItem struct {
	BlockID  uuid.UUID
	Title    string
	Type     store.BlockType
	Props    map[string]any
	Distance *float64
}

// Result is what either search mode returns.
type Result struct {
	CitedBlocks []ResultItem
	FinalAnswer *string
}

// Service answers experience_search requests in either mode.
type Service struct {
	searcher *retrieval.Searcher
	blocks   *store.BlockStore
	llm      *llm.Client
}

// New builds a Service.
func New(searcher *retrieval.Searcher, blocks *store.BlockStore, llmClient *llm.Client) *Service {
	return &Service{searcher: searcher, blocks: blocks, llm: llmClient}
}

// Options configures one search call; zero values take the documented
// API defaults (limit 10, max_iterations 16 clamped to [1,100]).
type Options struct {
	Limit         int
	Threshold     float64
	MaxIterations int
}

func (o Options) resolve() (int, int) {
	limit := o.Limit
	if limit <= 0 {
		limit = 10
	}
	maxIter := o.MaxIterations
	if maxIter <= 0 {
		maxIter = 16
	}
	if maxIter > 100 {
		maxIter = 100
	}
	return limit, maxIter
}

// Search runs query against spaceID in the given mode.
func (s *Service) Search(ctx context.Context, spaceID uuid.UUID, query string, mode Mode, opts Options) (*Result, error) {
	limit, maxIter := opts.resolve()
	switch mode {
	case ModeFast:
		return s.searchFast(ctx, spaceID, query, limit, opts.Threshold)
	case ModeAgentic:
		return s.searchAgentic(ctx, spaceID, query, limit, opts.Threshold, maxIter)
	default:
		return nil, fmt.Errorf("%w: unknown search mode %q", store.ErrBadRequest, mode)
	}
}

func (s *Service) searchFast(ctx context.Context, spaceID uuid.UUID, query string, limit int, threshold float64) (*Result, error) {
	hits, err := s.searcher.SearchContentBlocks(ctx, spaceID, query, retrieval.SearchOptions{TopK: limit, Threshold: threshold})
	if err != nil {
		return nil, fmt.Errorf("fast search: %w", err)
	}
	items, err := s.renderHits(ctx, hits)
	if err != nil {
		return nil, err
	}
	return &Result{CitedBlocks: items}, nil
}

func (s *Service) renderHits(ctx context.Context, hits []retrieval.Hit) ([]ResultItem, error) {
	items := make([]ResultItem, 0, len(hits))
	for _, h := range hits {
		props, err := s.blocks.RenderBlockProps(ctx, h.Block)
		if err != nil {
			return nil, fmt.Errorf("render block %s: %w", h.Block.ID, err)
		}
		distance := h.Distance
		items = append(items, ResultItem{
			BlockID:  h.Block.ID,
			Title:    h.Block.Title,
			Type:     h.Block.Type,
			Props:    props,
			Distance: &distance,
		})
	}
	return items, nil
}

func (s *Service) searchAgentic(ctx context.Context, spaceID uuid.UUID, query string, limit int, threshold float64, maxIter int) (*Result, error) {
	var finalAnswer *string
	citedIDs := make([]uuid.UUID, 0)

	pool := s.buildToolPool(spaceID, limit, threshold, &citedIDs, &finalAnswer)

	cfg := engine.Config{
		SystemPrompt:  systemPrompt,
		Tools:         pool,
		TerminalTools: map[string]bool{"answer": true},
		MaxIterations: maxIter,
	}

	input := fmt.Sprintf("## Query:\n%s\n\nUse the available tools to find the answer, then call answer with a concise final_answer and every block id you cited.", query)
	if _, err := engine.Run(ctx, s.llm, cfg, input); err != nil {
		return nil, fmt.Errorf("agentic search run: %w", err)
	}

	citedBlocks := make([]ResultItem, 0, len(citedIDs))
	for _, id := range citedIDs {
		block, err := s.blocks.FetchBlock(ctx, id)
		if err != nil {
			continue // a citation pointing at a deleted/invalid block is dropped, not fatal
		}
		props, err := s.blocks.RenderBlockProps(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("render cited block %s: %w", id, err)
		}
		citedBlocks = append(citedBlocks, ResultItem{BlockID: block.ID, Title: block.Title, Type: block.Type, Props: props})
	}

	return &Result{CitedBlocks: citedBlocks, FinalAnswer: finalAnswer}, nil
}

const systemPrompt = `You are an Experience Search Agent. You answer a query by finding relevant knowledge within a space and citing exactly the blocks that back your answer.

## Tools
- semantic_glob(query, limit, threshold): search page/folder titles and paths.
- semantic_grep(query, limit, threshold): search sop/text content blocks.
- open_page(path): render the sop/text blocks directly under a page.
- answer(final_answer, cited_block_ids): terminal. Call this once you have enough evidence.

## Rules
- Prefer semantic_grep for content questions, semantic_glob to orient yourself in the tree first.
- Only cite block ids you actually retrieved via a tool call this run.
- If nothing relevant is found, still call answer with your best honest answer and an empty cited_block_ids list.`

func (s *Service) buildToolPool(spaceID uuid.UUID, defaultLimit int, defaultThreshold float64, citedIDs *[]uuid.UUID, finalAnswer **string) *tool.Pool {
	pool := tool.NewPool()

	type globArgs struct {
		Query     string  `json:"query"`
		Limit     int     `json:"limit,omitempty"`
		Threshold float64 `json:"threshold,omitempty"`
	}
	globSchema, _ := tool.SchemaFor(&globArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "semantic_glob", Description: "Search page/folder titles and paths by meaning.", ParametersSchema: globSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args globArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			opts := resolveToolOpts(args.Limit, args.Threshold, defaultLimit, defaultThreshold)
			hits, err := s.searcher.SearchPathBlocks(ctx, spaceID, args.Query, opts)
			if err != nil {
				return "", err
			}
			return renderHitsAsText(hits), nil
		},
	})

	type grepArgs struct {
		Query     string  `json:"query"`
		Limit     int     `json:"limit,omitempty"`
		Threshold float64 `json:"threshold,omitempty"`
	}
	grepSchema, _ := tool.SchemaFor(&grepArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "semantic_grep", Description: "Search sop/text content blocks by meaning.", ParametersSchema: grepSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args grepArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			opts := resolveToolOpts(args.Limit, args.Threshold, defaultLimit, defaultThreshold)
			hits, err := s.searcher.SearchContentBlocks(ctx, spaceID, args.Query, opts)
			if err != nil {
				return "", err
			}
			return renderHitsAsText(hits), nil
		},
	})

	type openPageArgs struct {
		Path string `json:"path"`
	}
	openSchema, _ := tool.SchemaFor(&openPageArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "open_page", Description: "Render the sop/text blocks directly under a page.", ParametersSchema: openSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args openPageArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			pageID, pageType, err := s.blocks.ResolvePath(ctx, spaceID, args.Path)
			if err != nil {
				return "", err
			}
			if pageID == nil || pageType != store.BlockTypePage {
				return fmt.Sprintf("path %s is not a page", args.Path), nil
			}
			children, err := s.blocks.FetchChildrenByTypes(ctx, spaceID, pageID, store.ContentBlockTypes)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "page %s:\n", args.Path)
			for _, child := range children {
				props, err := s.blocks.RenderBlockProps(ctx, child)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(&b, "<block id=%s type=%s>%v</block>\n", child.ID, child.Type, props)
			}
			return b.String(), nil
		},
	})

	type answerArgs struct {
		FinalAnswer   string      `json:"final_answer"`
		CitedBlockIDs []uuid.UUID `json:"cited_block_ids"`
	}
	answerSchema, _ := tool.SchemaFor(&answerArgs{})
	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "answer", Description: "Submit the final answer and the block ids that back it.", ParametersSchema: answerSchema},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			var args answerArgs
			if err := tool.DecodeArguments(argumentsJSON, &args); err != nil {
				return "", err
			}
			*finalAnswer = &args.FinalAnswer
			*citedIDs = args.CitedBlockIDs
			return "recorded", nil
		},
	})

	pool.Register(tool.Tool{
		Definition: tool.Definition{Name: "report_thinking", Description: "Report brief reasoning before acting."},
		Handler: func(ctx context.Context, argumentsJSON string) (string, error) {
			return "ack", nil
		},
	})

	return pool
}

func resolveToolOpts(limit int, threshold float64, defaultLimit int, defaultThreshold float64) retrieval.SearchOptions {
	if limit <= 0 {
		limit = defaultLimit
	}
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return retrieval.SearchOptions{TopK: limit, Threshold: threshold}
}

func renderHitsAsText(hits []retrieval.Hit) string {
	if len(hits) == 0 {
		return "no matches"
	}
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "<block id=%s type=%s title=%q distance=%.3f>\n", h.Block.ID, h.Block.Type, h.Block.Title, h.Distance)
	}
	return b.String()
}
