package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestCreatePathBlockAssignsDenseSiblingSort(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	folder, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root-folder")
	require.NoError(t, err)
	assert.Equal(t, 0, folder.Sort)

	page, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page-one")
	require.NoError(t, err)
	assert.Equal(t, 0, page.Sort)

	page2, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page-two")
	require.NoError(t, err)
	assert.Equal(t, 1, page2.Sort)
}

func TestCreatePathBlockRejectsNonPathParent(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	folder, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root")
	require.NoError(t, err)
	page, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page")
	require.NoError(t, err)
	text, err := blocks.InsertBlockToPage(ctx, spaceID, page.ID, -1, "note", nil)
	require.NoError(t, err)

	_, err = blocks.CreatePathBlock(ctx, spaceID, &text.ID, store.BlockTypeFolder, "bad")
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestInsertBlockToPageShiftsSiblingsWithoutGaps(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	folder, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root")
	require.NoError(t, err)
	page, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page")
	require.NoError(t, err)

	first, err := blocks.InsertBlockToPage(ctx, spaceID, page.ID, -1, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Sort)

	second, err := blocks.InsertBlockToPage(ctx, spaceID, page.ID, 0, "second", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Sort)

	middle, err := blocks.InsertBlockToPage(ctx, spaceID, page.ID, 0, "middle", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, middle.Sort)

	children, err := blocks.FetchChildrenByTypes(ctx, spaceID, &page.ID, store.ContentBlockTypes)
	require.NoError(t, err)
	require.Len(t, children, 3)
	sorts := []int{children[0].Sort, children[1].Sort, children[2].Sort}
	assert.Equal(t, []int{0, 1, 2}, sorts)
	assert.Equal(t, "first", children[0].Title)
	assert.Equal(t, "middle", children[1].Title)
	assert.Equal(t, "second", children[2].Title)
}

func TestWriteSOPToParentRejectsBlankData(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	projectID, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	folder, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root")
	require.NoError(t, err)
	page, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page")
	require.NoError(t, err)

	_, err = blocks.WriteSOPToParent(ctx, spaceID, page.ID, projectID, "empty-sop", store.SOPData{})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestWriteSOPToParentCreatesToolReferences(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	projectID, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	folder, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root")
	require.NoError(t, err)
	page, err := blocks.CreatePathBlock(ctx, spaceID, &folder.ID, store.BlockTypePage, "page")
	require.NoError(t, err)

	data := store.SOPData{
		UseWhen:     "when deploying",
		Preferences: "always confirm before prod",
		ToolSOPs: []store.SOPStep{
			{ToolName: "Deploy", Action: "run staged rollout"},
		},
	}
	sop, err := blocks.WriteSOPToParent(ctx, spaceID, page.ID, projectID, "deploy-sop", data)
	require.NoError(t, err)
	assert.Equal(t, store.BlockTypeSOP, sop.Type)

	err = blocks.RenameTool(ctx, projectID, "deploy", "deploy-v2")
	require.NoError(t, err)
}

func TestListPathsUnderBuildsNestedTree(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, spaceID, _ := seedSession(t, pool)
	blocks := store.NewBlockStore(pool)

	root, err := blocks.CreatePathBlock(ctx, spaceID, nil, store.BlockTypeFolder, "root")
	require.NoError(t, err)
	_, err = blocks.CreatePathBlock(ctx, spaceID, &root.ID, store.BlockTypePage, "child")
	require.NoError(t, err)

	tree, err := blocks.ListPathsUnder(ctx, spaceID, nil, 0)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "child", tree[0].Children[0].Block.Title)
}
