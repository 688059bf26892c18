package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

func TestInsertTaskMaintainsDenseOrder(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)

	first, err := tasks.InsertTask(ctx, sessionID, 0, store.TaskData{TaskDescription: "first"}, store.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Order)

	second, err := tasks.InsertTask(ctx, sessionID, 1, store.TaskData{TaskDescription: "second"}, store.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Order)

	// inserting after the first task shifts the second to order 3
	middle, err := tasks.InsertTask(ctx, sessionID, 1, store.TaskData{TaskDescription: "middle"}, store.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 2, middle.Order)

	current, err := tasks.ListCurrentTasks(ctx, sessionID, nil)
	require.NoError(t, err)
	require.Len(t, current, 3)

	orders := make([]int, len(current))
	for i, task := range current {
		orders[i] = task.Order
	}
	assert.Equal(t, []int{1, 2, 3}, orders)
	assert.Equal(t, "first", current[0].Data.TaskDescription)
	assert.Equal(t, "middle", current[1].Data.TaskDescription)
	assert.Equal(t, "second", current[2].Data.TaskDescription)
}

func TestUpdateTaskRejectsTransitionOutOfSuccess(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)

	task, err := tasks.InsertTask(ctx, sessionID, 0, store.TaskData{TaskDescription: "t"}, store.TaskStatusRunning)
	require.NoError(t, err)

	successStatus := store.TaskStatusSuccess
	require.NoError(t, tasks.UpdateTask(ctx, task.ID, store.UpdateTaskParams{Status: &successStatus}))

	failedStatus := store.TaskStatusFailed
	err = tasks.UpdateTask(ctx, task.ID, store.UpdateTaskParams{Status: &failedStatus})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestAppendProgressToTaskRejectsSuccess(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)

	task, err := tasks.InsertTask(ctx, sessionID, 0, store.TaskData{TaskDescription: "t"}, store.TaskStatusSuccess)
	require.NoError(t, err)

	err = tasks.AppendProgressToTask(ctx, task.ID, "did a thing", nil)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestAppendMessagesToPlanningSectionCreatesPlanningTaskOnce(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)
	messages := store.NewMessageStore(pool)

	msg, err := messages.InsertMessage(ctx, sessionID, nil, store.MessageRoleUser, []byte(`{"text":"hi"}`))
	require.NoError(t, err)

	require.NoError(t, tasks.AppendMessagesToPlanningSection(ctx, sessionID, []uuid.UUID{msg.ID}))
	require.NoError(t, tasks.AppendMessagesToPlanningSection(ctx, sessionID, []uuid.UUID{msg.ID}))

	planning, err := tasks.FetchPlanningTask(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, planning)
	assert.Equal(t, 0, planning.Order)
	assert.True(t, planning.IsPlanning)
	assert.Equal(t, []uuid.UUID{msg.ID, msg.ID}, planning.RawMessageIDs)
}

func TestAppendMessagesToTaskRecordsRawMessageIDs(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)
	messages := store.NewMessageStore(pool)

	task, err := tasks.InsertTask(ctx, sessionID, 0, store.TaskData{TaskDescription: "t"}, store.TaskStatusRunning)
	require.NoError(t, err)

	first, err := messages.InsertMessage(ctx, sessionID, nil, store.MessageRoleUser, []byte(`{"text":"one"}`))
	require.NoError(t, err)
	second, err := messages.InsertMessage(ctx, sessionID, nil, store.MessageRoleAssistant, []byte(`{"text":"two"}`))
	require.NoError(t, err)

	require.NoError(t, tasks.AppendMessagesToTask(ctx, []uuid.UUID{first.ID}, task.ID))
	require.NoError(t, tasks.AppendMessagesToTask(ctx, []uuid.UUID{second.ID}, task.ID))

	updated, err := tasks.FetchTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, updated.RawMessageIDs)

	loaded, err := messages.ListMessagesByIDs(ctx, updated.RawMessageIDs)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestListPrecedingTasksReturnsAscendingWithoutMessageIDs(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	_, _, sessionID := seedSession(t, pool)
	tasks := store.NewTaskStore(pool)

	for i := 0; i < 3; i++ {
		_, err := tasks.InsertTask(ctx, sessionID, i, store.TaskData{TaskDescription: "t"}, store.TaskStatusSuccess)
		require.NoError(t, err)
	}

	preceding, err := tasks.ListPrecedingTasks(ctx, sessionID, 3, 5)
	require.NoError(t, err)
	require.Len(t, preceding, 2)
	assert.Less(t, preceding[0].Order, preceding[1].Order)
	assert.Nil(t, preceding[0].RawMessageIDs)
}
