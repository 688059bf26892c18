package taskextract

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestPackTaskSectionIncludesOrderStatusAndDescription(t *testing.T) {
	tasks := []*store.Task{
		{Order: 0, Status: store.TaskStatusPending, Data: store.TaskData{TaskDescription: "set up repo"}},
		{Order: 1, Status: store.TaskStatusSuccess, Data: store.TaskData{TaskDescription: "write tests"}},
	}
	section := packTaskSection(tasks)
	assert.Contains(t, section, "task_0")
	assert.Contains(t, section, "pending")
	assert.Contains(t, section, "set up repo")
	assert.Contains(t, section, "task_1")
	assert.Contains(t, section, "write tests")
}

func TestPackPreviousProgressSectionIsChronologicalAndBounded(t *testing.T) {
	tasks := []*store.Task{
		{Order: 0, Data: store.TaskData{Progresses: []string{"a1", "a2"}}},
		{Order: 1, Data: store.TaskData{Progresses: []string{"b1", "b2", "b3"}}},
	}
	section := packPreviousProgressSection(tasks, 3)

	lines := []string{"Task 1: b1", "Task 1: b2", "Task 1: b3"}
	for _, l := range lines[1:] {
		assert.Contains(t, section, l)
	}
	// most recent task's progresses dominate the bounded window and stay
	// in chronological (not reverse) order
	idxB2 := indexOf(section, "Task 1: b2")
	idxB3 := indexOf(section, "Task 1: b3")
	assert.Less(t, idxB2, idxB3)
}

func TestPackCurrentMessageWithIDsTruncatesLongContent(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	messages := []*store.Message{
		{Role: store.MessageRoleUser, Parts: long},
	}
	section := packCurrentMessageWithIDs(messages)
	assert.Contains(t, section, "<message id=0>")
	assert.Less(t, len(section), 2000)
}

func TestSelectMessageIDsResolvesOnlyNamedIndices(t *testing.T) {
	idA, idB, idC := uuid.New(), uuid.New(), uuid.New()
	messages := []*store.Message{{ID: idA}, {ID: idB}, {ID: idC}}

	ids, err := selectMessageIDs(messages, []int{0, 2})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{idA, idC}, ids)
}

func TestSelectMessageIDsRejectsOutOfRangeIndex(t *testing.T) {
	messages := []*store.Message{{ID: uuid.New()}}

	_, err := selectMessageIDs(messages, []int{5})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestSelectMessageIDsRejectsEmptySelection(t *testing.T) {
	messages := []*store.Message{{ID: uuid.New()}}

	_, err := selectMessageIDs(messages, nil)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
