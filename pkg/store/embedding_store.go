package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// vectorLiteral renders a float32 slice as the pgvector text input format
// ("[v1,v2,...]"); no pgvector Go client exists anywhere in the example
// pack, so the literal is built by hand and passed through pgx as text,
// cast to vector on the SQL side.
func vectorLiteral(vector []float32) string {
	parts := make([]string, len(vector))
	for i, v := range vector {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// EmbeddingStore manages the vectors attached to blocks (spec §4.D).
type EmbeddingStore struct {
	pool *pgxpool.Pool
}

// NewEmbeddingStore builds an EmbeddingStore over an open pool.
func NewEmbeddingStore(pool *pgxpool.Pool) *EmbeddingStore {
	return &EmbeddingStore{pool: pool}
}

// Upsert replaces every vector of the given phase attached to blockID with
// vector. A block may carry one document embedding and reuses the same
// row across re-indexing.
func (s *EmbeddingStore) Upsert(ctx context.Context, blockID uuid.UUID, phase EmbeddingPhase, vector []float32) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO block_embeddings (block_id, phase, vector) VALUES ($1, $2, $3::vector)
		 ON CONFLICT (block_id, phase) DO UPDATE SET vector = excluded.vector`,
		blockID, phase, vectorLiteral(vector))
	return err
}

// DeleteByBlock removes every embedding attached to blockID, e.g. when a
// block is archived.
func (s *EmbeddingStore) DeleteByBlock(ctx context.Context, blockID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM block_embeddings WHERE block_id = $1`, blockID)
	return err
}

// Scored is one search hit: a block id at a cosine distance in [0, 2].
type Scored struct {
	BlockID  uuid.UUID
	Distance float64
}

// SearchByVector runs the cosine-distance nearest-neighbor query used by
// both Fast and Agentic search modes, over-fetching by fetchRatio and
// deduplicating to the lowest distance per block (pkg/retrieval composes
// this; kept here since it's the one place <=> appears). Mirrors
// search_blocks in original_source's service/data/block_search.py.
func (s *EmbeddingStore) SearchByVector(ctx context.Context, spaceID uuid.UUID, blockTypes []BlockType, queryVector []float32, topK int, threshold float64, fetchRatio float64) ([]Scored, error) {
	limit := int(float64(topK) * fetchRatio)
	if limit < topK {
		limit = topK
	}

	query := `SELECT e.block_id, e.vector <=> $1::vector AS distance
	          FROM block_embeddings e
	          JOIN blocks b ON b.id = e.block_id
	          WHERE b.space_id = $2 AND b.is_archived = false AND e.vector <=> $1::vector <= $3`
	args := []any{vectorLiteral(queryVector), spaceID, threshold}
	if len(blockTypes) > 0 {
		args = append(args, blockTypes)
		query += fmt.Sprintf(" AND b.type = ANY($%d)", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY distance ASC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	best := make(map[uuid.UUID]float64)
	order := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var blockID uuid.UUID
		var distance float64
		if err := rows.Scan(&blockID, &distance); err != nil {
			return nil, err
		}
		if prev, ok := best[blockID]; !ok || distance < prev {
			if !ok {
				order = append(order, blockID)
			}
			best[blockID] = distance
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]Scored, 0, len(order))
	for _, id := range order {
		results = append(results, Scored{BlockID: id, Distance: best[id]})
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
