package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.Hybrid) {
	t.Helper()
	docs, err := storage.NewDocumentStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	store := storage.NewHybrid(nil, docs, zap.NewNop())
	return NewRegistry(store, zap.NewNop()), store
}

func seedThread(t *testing.T, store *storage.Hybrid, specialist models.Specialist, createdAt time.Time) string {
	t.Helper()
	threadID := NewThreadID(specialist, createdAt)
	require.NoError(t, store.AppendTurn(context.Background(), specialist, &models.Turn{
		ID: threadID + "-turn", ThreadID: threadID, UserID: "u1",
		UserMessage: "hi", AssistantMessage: "hello",
		UserTimestamp: createdAt, AssistantTimestamp: createdAt.Add(time.Second),
	}))
	return threadID
}

func TestListThreadsFiltersAndSorts(t *testing.T) {
	registry, store := newTestRegistry(t)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	older := seedThread(t, store, models.SpecialistDiet, base)
	newer := seedThread(t, store, models.SpecialistDiet, base.Add(time.Hour))
	seedThread(t, store, models.SpecialistExercise, base.Add(2*time.Hour))

	all, err := registry.ListThreads(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	diet, err := registry.ListThreads(context.Background(), "u1", models.SpecialistDiet)
	require.NoError(t, err)
	require.Len(t, diet, 2)
	assert.Equal(t, older, diet[0].ID, "oldest first")
	assert.Equal(t, newer, diet[1].ID)
	assert.Equal(t, 1, diet[0].TotalTurns)
}

func TestHistoryValidatesThreadID(t *testing.T) {
	registry, store := newTestRegistry(t)
	threadID := seedThread(t, store, models.SpecialistDiet, time.Now())

	messages, err := registry.History(context.Background(), "u1", threadID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	_, err = registry.History(context.Background(), "u1", "not-a-thread-id")
	assert.ErrorIs(t, err, ErrInvalidThreadID)
}

func TestDeleteThread(t *testing.T) {
	registry, store := newTestRegistry(t)
	threadID := seedThread(t, store, models.SpecialistExercise, time.Now())

	require.NoError(t, registry.DeleteThread(context.Background(), "u1", threadID))

	remaining, err := registry.ListThreads(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	assert.ErrorIs(t, registry.DeleteThread(context.Background(), "u1", "garbage"), ErrInvalidThreadID)
	assert.ErrorIs(t, registry.DeleteThread(context.Background(), "u1", threadID), storage.ErrNotFound)
}
