// Package retrieval implements the Fast (pure vector) search path and the
// shared ranking primitives the Agentic search agent's tools build on
// (spec's Component L). Grounded verbatim on original_source's
// service/data/block_search.py: embed the query, over-fetch by
// fetchRatio, keep the lowest distance per block, clamp to topK.
package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/config"
	"github.com/nextlevelbuilder/acontext/pkg/embed"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// Hit pairs a resolved block with the distance it matched at.
type Hit struct {
	Block    *store.Block
	Distance float64
}

// Searcher composes the embedding client with block storage to answer
// Fast-mode semantic queries.
type Searcher struct {
	embed      *embed.Client
	embeddings *store.EmbeddingStore
	blocks     *store.BlockStore
	cfg        *config.RetrievalConfig
}

// NewSearcher builds a Searcher.
func NewSearcher(embedClient *embed.Client, embeddings *store.EmbeddingStore, blocks *store.BlockStore, cfg *config.RetrievalConfig) *Searcher {
	return &Searcher{embed: embedClient, embeddings: embeddings, blocks: blocks, cfg: cfg}
}

// SearchOptions overrides the retrieval config's defaults per call.
type SearchOptions struct {
	TopK      int
	Threshold float64
}

func (o SearchOptions) resolve(cfg *config.RetrievalConfig) (int, float64) {
	topK := o.TopK
	if topK <= 0 {
		topK = cfg.DefaultTopK
	}
	threshold := o.Threshold
	if threshold <= 0 {
		threshold = cfg.DefaultThreshold
	}
	return topK, threshold
}

// SearchPathBlocks finds folders/pages matching queryText (semantic_glob).
func (s *Searcher) SearchPathBlocks(ctx context.Context, spaceID uuid.UUID, queryText string, opts SearchOptions) ([]Hit, error) {
	return s.search(ctx, spaceID, store.PathBlockTypes, queryText, opts)
}

// SearchContentBlocks finds sop/text blocks matching queryText (semantic_grep).
func (s *Searcher) SearchContentBlocks(ctx context.Context, spaceID uuid.UUID, queryText string, opts SearchOptions) ([]Hit, error) {
	return s.search(ctx, spaceID, store.ContentBlockTypes, queryText, opts)
}

func (s *Searcher) search(ctx context.Context, spaceID uuid.UUID, blockTypes []store.BlockType, queryText string, opts SearchOptions) ([]Hit, error) {
	topK, threshold := opts.resolve(s.cfg)

	queryVector, err := s.embed.Embed(ctx, store.EmbeddingPhaseQuery, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := s.embeddings.SearchByVector(ctx, spaceID, blockTypes, queryVector, topK, threshold, s.cfg.FetchRatio)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sc := range scored {
		block, err := s.blocks.FetchBlock(ctx, sc.BlockID)
		if err != nil {
			continue // a block deleted between search and fetch is skipped, not fatal
		}
		hits = append(hits, Hit{Block: block, Distance: sc.Distance})
	}
	return hits, nil
}

// IndexBlock (re)computes and stores a block's document embedding from the
// text the caller passes. The Space-Construction agent calls it after
// WriteSOPToParent so the new SOP block becomes searchable immediately.
func (s *Searcher) IndexBlock(ctx context.Context, blockID uuid.UUID, text string) error {
	vector, err := s.embed.Embed(ctx, store.EmbeddingPhaseDocument, text)
	if err != nil {
		return fmt.Errorf("embed block %s: %w", blockID, err)
	}
	return s.embeddings.Upsert(ctx, blockID, store.EmbeddingPhaseDocument, vector)
}
