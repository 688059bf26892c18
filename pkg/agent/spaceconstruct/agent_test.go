package spaceconstruct

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestPackCandidateDataListIncludesIDAndUseWhen(t *testing.T) {
	candidates := []Candidate{
		{TaskID: uuid.New(), SOP: store.SOPData{UseWhen: "star a repo on github.com", Preferences: "click the star button"}},
	}
	section := packCandidateDataList(candidates)
	assert.Contains(t, section, "<candidate_data id=0>")
	assert.Contains(t, section, "star a repo on github.com")
	assert.Contains(t, section, "</candidate_data>")
}

func TestJoinPathHandlesRootAndNestedParents(t *testing.T) {
	assert.Equal(t, "/Github", joinPath("/", "Github"))
	assert.Equal(t, "/Projects/Github", joinPath("/Projects", "Github"))
	assert.Equal(t, "/Projects/Github", joinPath("/Projects/", "Github"))
}

func TestRenderTreeIndentsByDepth(t *testing.T) {
	child := &store.PathEntry{Block: &store.Block{Title: "Github", Type: store.BlockTypePage}}
	root := &store.PathEntry{Block: &store.Block{Title: "Projects", Type: store.BlockTypeFolder}, Children: []*store.PathEntry{child}}
	out := renderTree("/", []*store.PathEntry{root})
	assert.Contains(t, out, "- Projects (folder)")
	assert.Contains(t, out, "- Github (page)")
}
