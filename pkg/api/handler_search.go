package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/acontext/pkg/agent/search"
	"github.com/nextlevelbuilder/acontext/pkg/retrieval"
)

// semanticGlobHandler handles GET .../space/{sid}/semantic_glob (spec
// §6): vector search over folder/page blocks.
func (s *Server) semanticGlobHandler(c *gin.Context) {
	s.runBlockSearch(c, s.searcher.SearchPathBlocks)
}

// semanticGrepHandler handles GET .../space/{sid}/semantic_grep (spec
// §6): vector search over sop/text content blocks.
func (s *Server) semanticGrepHandler(c *gin.Context) {
	s.runBlockSearch(c, s.searcher.SearchContentBlocks)
}

func (s *Server) runBlockSearch(c *gin.Context, search func(ctx context.Context, spaceID uuid.UUID, query string, opts retrieval.SearchOptions) ([]retrieval.Hit, error)) {
	spaceID, ok := parseUUIDParam(c, "sid")
	if !ok {
		return
	}

	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	opts := retrieval.SearchOptions{
		TopK:      parseIntQuery(c, "limit", 0, 1, 50),
		Threshold: parseFloatQuery(c, "threshold", 0, 0, 2),
	}

	ctx := c.Request.Context()
	hits, err := search(ctx, spaceID, query, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]searchResultBlockItem, 0, len(hits))
	for _, h := range hits {
		props, err := s.blocks.RenderBlockProps(ctx, h.Block)
		if err != nil {
			writeError(c, err)
			return
		}
		distance := h.Distance
		items = append(items, searchResultBlockItem{
			BlockID:  h.Block.ID.String(),
			Title:    h.Block.Title,
			Type:     string(h.Block.Type),
			Props:    props,
			Distance: &distance,
		})
	}
	c.JSON(http.StatusOK, items)
}

// experienceSearchHandler handles GET .../space/{sid}/experience_search
// (spec §6): dispatches to the Experience-Search Agent in fast or
// agentic mode.
func (s *Server) experienceSearchHandler(c *gin.Context) {
	spaceID, ok := parseUUIDParam(c, "sid")
	if !ok {
		return
	}
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	mode := search.Mode(c.DefaultQuery("mode", string(search.ModeFast)))
	opts := search.Options{
		Limit:         parseIntQuery(c, "limit", 0, 1, 50),
		Threshold:     parseFloatQuery(c, "semantic_threshold", 0, 0, 2),
		MaxIterations: parseIntQuery(c, "max_iterations", 0, 1, 100),
	}

	result, err := s.search.Search(c.Request.Context(), spaceID, query, mode, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	cited := make([]searchResultBlockItem, 0, len(result.CitedBlocks))
	for _, item := range result.CitedBlocks {
		cited = append(cited, searchResultBlockItem{
			BlockID:  item.BlockID.String(),
			Title:    item.Title,
			Type:     string(item.Type),
			Props:    item.Props,
			Distance: item.Distance,
		})
	}
	c.JSON(http.StatusOK, experienceSearchResponse{CitedBlocks: cited, FinalAnswer: result.FinalAnswer})
}

func parseIntQuery(c *gin.Context, name string, def, min, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func parseFloatQuery(c *gin.Context, name string, def, min, max float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
