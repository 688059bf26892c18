package sopabstract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestPackOneTaskProgressContextRendersTaskTag(t *testing.T) {
	task := &store.Task{Order: 3, Data: store.TaskData{TaskDescription: "star the repo", Progresses: []string{"clicked star"}}}
	section := packOneTaskProgressContext(task)
	assert.Contains(t, section, "<task id=3>")
	assert.Contains(t, section, "star the repo")
	assert.Contains(t, section, "- clicked star")
	assert.Contains(t, section, "</task>")
}

func TestPackPreviousTaskContextNamesCurrentTask(t *testing.T) {
	preceding := []*store.Task{
		{Order: 0, Data: store.TaskData{TaskDescription: "set up repo"}},
		{Order: 1, Data: store.TaskData{TaskDescription: "write tests"}},
	}
	current := &store.Task{Order: 2, Data: store.TaskData{TaskDescription: "ship release"}}
	section := packPreviousTaskContext(preceding, current)

	assert.Contains(t, section, "<task id=0>")
	assert.Contains(t, section, "<task id=1>")
	assert.Contains(t, section, "You're looking at task 2.")
}

func TestPrefixLinesAppliesPrefixToEachLine(t *testing.T) {
	out := prefixLines([]string{"a", "b"}, "- ")
	assert.Equal(t, []string{"- a", "- b"}, out)
}

func TestPackRawMessagesTruncatesLongContent(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'y'
	}
	messages := []*store.Message{{Role: store.MessageRoleAssistant, Parts: long}}
	out := packRawMessages(messages)
	assert.Contains(t, out, "[assistant]")
	assert.Less(t, len(out), 2000)
}
