package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentd-ai/agentd/internal/event"
	"github.com/agentd-ai/agentd/internal/storage"
	"github.com/agentd-ai/agentd/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	event.Reset()
	return NewService(storage.New(t.TempDir()))
}

func TestCreateAndGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.Create(ctx, "/work", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New Thread", created.Title)
	assert.Equal(t, "/work", created.Directory)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestGetMissingThread(t *testing.T) {
	s := newTestService(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "/work", "first")
	require.NoError(t, err)
	second, err := s.Create(ctx, "/work", "second")
	require.NoError(t, err)

	threads, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, second.ID, threads[0].ID)
	assert.Equal(t, first.ID, threads[1].ID)
}

func TestArchiveRemovesFromActiveSet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	archived := make(chan event.ThreadArchivedData, 1)
	unsubscribe := event.Subscribe(event.ThreadArchived, func(e event.Event) {
		archived <- e.Data.(event.ThreadArchivedData)
	})
	defer unsubscribe()

	thread, err := s.Create(ctx, "/work", "t")
	require.NoError(t, err)
	require.NoError(t, s.Archive(ctx, thread.ID))

	_, err = s.Get(ctx, thread.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	threads, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)

	data := <-archived
	assert.Equal(t, thread.ID, data.Thread.ID)
	assert.True(t, data.Thread.Archived)
}

func TestSaveTurnAndTurns(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	thread, err := s.Create(ctx, "/work", "t")
	require.NoError(t, err)

	turn := &types.Turn{
		ID:       "01TURN",
		ThreadID: thread.ID,
		Status:   types.TurnCompleted,
		Items: []types.Item{
			&types.UserMessageItem{ID: "item_1", Type: "user_message", Content: []types.UserInput{types.TextInput("hello")}},
		},
	}
	require.NoError(t, s.SaveTurn(ctx, turn))

	turns, err := s.Turns(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, types.TurnCompleted, turns[0].Status)
	require.Len(t, turns[0].Items, 1)
	assert.Equal(t, "user_message", turns[0].Items[0].ItemType())
}
