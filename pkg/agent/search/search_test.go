package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextlevelbuilder/acontext/pkg/retrieval"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestRenderHitsAsTextReportsNoMatches(t *testing.T) {
	assert.Equal(t, "no matches", renderHitsAsText(nil))
}

func TestRenderHitsAsTextIncludesBlockFields(t *testing.T) {
	hits := []retrieval.Hit{
		{Block: &store.Block{Title: "JWT", Type: store.BlockTypeSOP}, Distance: 0.42},
	}
	out := renderHitsAsText(hits)
	assert.Contains(t, out, "title=\"JWT\"")
	assert.Contains(t, out, "type=sop")
	assert.Contains(t, out, "distance=0.420")
}

func TestResolveToolOptsFallsBackToDefaults(t *testing.T) {
	opts := resolveToolOpts(0, 0, 10, 0.6)
	assert.Equal(t, 10, opts.TopK)
	assert.Equal(t, 0.6, opts.Threshold)

	opts = resolveToolOpts(5, 0.3, 10, 0.6)
	assert.Equal(t, 5, opts.TopK)
	assert.Equal(t, 0.3, opts.Threshold)
}

func TestOptionsResolveAppliesDefaultsAndClamp(t *testing.T) {
	limit, maxIter := Options{}.resolve()
	assert.Equal(t, 10, limit)
	assert.Equal(t, 16, maxIter)

	limit, maxIter = Options{Limit: 3, MaxIterations: 500}.resolve()
	assert.Equal(t, 3, limit)
	assert.Equal(t, 100, maxIter)
}
