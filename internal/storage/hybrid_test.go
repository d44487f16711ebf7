package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

var errStructuredDown = errors.New("structured store unavailable")

// failingStore simulates a structured backend whose every operation errors.
type failingStore struct{}

func (failingStore) CreateUser(context.Context, *models.User) error  { return errStructuredDown }
func (failingStore) GetUser(context.Context, string) (*models.User, error) {
	return nil, errStructuredDown
}
func (failingStore) GetUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errStructuredDown
}
func (failingStore) UpdateUser(context.Context, *models.User) error { return errStructuredDown }
func (failingStore) DeactivateUser(context.Context, string) error   { return errStructuredDown }
func (failingStore) LogHealthData(context.Context, *models.HealthLog) error {
	return errStructuredDown
}
func (failingStore) HealthHistory(context.Context, string, int) ([]*models.HealthLog, error) {
	return nil, errStructuredDown
}
func (failingStore) CreateSession(context.Context, *models.Thread) error { return errStructuredDown }
func (failingStore) AppendTurn(context.Context, *models.Turn) error      { return errStructuredDown }
func (failingStore) InsertEntities(context.Context, string, string, []models.StoredEntity) error {
	return errStructuredDown
}
func (failingStore) DeleteSession(context.Context, string) error { return errStructuredDown }
func (failingStore) SaveRoutinePlan(context.Context, *models.RoutinePlan) error {
	return errStructuredDown
}
func (failingStore) RoutinePlans(context.Context, string) ([]*models.RoutinePlan, error) {
	return nil, errStructuredDown
}
func (failingStore) LogProgress(context.Context, *models.ProgressLog) error {
	return errStructuredDown
}
func (failingStore) ProgressLogs(context.Context, string) ([]*models.ProgressLog, error) {
	return nil, errStructuredDown
}
func (failingStore) Close() error { return nil }

func newTestHybrid(t *testing.T, structured StructuredStore) *Hybrid {
	t.Helper()
	docs, err := NewDocumentStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewHybrid(structured, docs, zap.NewNop())
}

func sampleTurn(userID, threadID string) *models.Turn {
	now := time.Now()
	return &models.Turn{
		ID:                 "turn-1",
		ThreadID:           threadID,
		UserID:             userID,
		UserMessage:        "I feel stressed",
		AssistantMessage:   "Let's talk through it.",
		UserTimestamp:      now,
		AssistantTimestamp: now.Add(time.Second),
		Routed:             models.SpecialistMentalHealth,
	}
}

func TestHybridSurvivesStructuredOutage(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, failingStore{})

	user := &models.User{ID: "u1", FullName: "Sam", Email: "sam@example.com", Active: true}
	require.NoError(t, store.CreateUser(ctx, user), "document store alone must absorb the write")

	got, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.FullName)

	byEmail, err := store.GetUserByEmail(ctx, "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	threadID := "MENTAL_HEALTH_20260301T080000Z_abcd1234"
	require.NoError(t, store.AppendTurn(ctx, models.SpecialistMentalHealth, sampleTurn("u1", threadID)))

	messages, err := store.ThreadMessages(ctx, "u1", threadID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestHybridGetUserByEmailReportsBothFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs, err := NewDocumentStore(dir, zap.NewNop())
	require.NoError(t, err)
	store := NewHybrid(failingStore{}, docs, zap.NewNop())

	// Take the document directory away so the fallback scan fails too.
	require.NoError(t, os.RemoveAll(dir))

	_, err = store.GetUserByEmail(ctx, "sam@example.com")
	assert.ErrorIs(t, err, ErrBothStoresFailed)
}

func TestHybridWorksWithoutStructuredStore(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, nil)

	require.NoError(t, store.CreateUser(ctx, &models.User{ID: "u1", Email: "a@b.co"}))
	_, err := store.GetUser(ctx, "u1")
	assert.NoError(t, err)

	_, err = store.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHybridAppendTurnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, nil)
	threadID := "DIET_20260301T080000Z_abcd1234"

	turn := sampleTurn("u1", threadID)
	require.NoError(t, store.AppendTurn(ctx, models.SpecialistDiet, turn))
	require.NoError(t, store.AppendTurn(ctx, models.SpecialistDiet, turn), "replay of the same turn id")

	messages, err := store.ThreadMessages(ctx, "u1", threadID)
	require.NoError(t, err)
	assert.Len(t, messages, 2, "replayed turn must not duplicate messages")
}

func TestHybridMergeEntitiesReturnsOnlyAdded(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, nil)
	threadID := "DIET_20260301T080000Z_abcd1234"

	batch := []models.StoredEntity{
		{Kind: models.KindFoodItems, Fields: []byte(`{"item":"oatmeal"}`), ExtractedAt: time.Now()},
	}
	added, err := store.MergeEntities(ctx, "u1", threadID, models.SpecialistDiet, batch)
	require.NoError(t, err)
	assert.Len(t, added, 1)

	added, err = store.MergeEntities(ctx, "u1", threadID, models.SpecialistDiet, batch)
	require.NoError(t, err)
	assert.Empty(t, added, "second merge of identical content adds nothing")

	entities, err := store.ThreadEntities(ctx, "u1", threadID)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestHybridDeleteThreadRemovesEverything(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, nil)
	threadID := "EXERCISE_20260301T080000Z_abcd1234"

	require.NoError(t, store.AppendTurn(ctx, models.SpecialistExercise, sampleTurn("u1", threadID)))
	_, err := store.MergeEntities(ctx, "u1", threadID, models.SpecialistExercise,
		[]models.StoredEntity{{Kind: models.KindActivities, Fields: []byte(`{"activity":"running"}`), ExtractedAt: time.Now()}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteThread(ctx, "u1", threadID))

	_, err = store.ThreadMessages(ctx, "u1", threadID)
	assert.ErrorIs(t, err, ErrNotFound)
	threads, err := store.ListThreads(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, threads)

	assert.ErrorIs(t, store.DeleteThread(ctx, "u1", threadID), ErrNotFound)
}

func TestHybridLatestPlanVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestHybrid(t, nil)

	for v := 1; v <= 3; v++ {
		require.NoError(t, store.SaveRoutinePlan(ctx, &models.RoutinePlan{
			ID:        string(rune('a'+v)) + "-plan",
			UserID:    "u1",
			Domain:    models.SpecialistExercise,
			Version:   v,
			CreatedAt: time.Now(),
			Active:    true,
		}))
	}
	require.NoError(t, store.SaveRoutinePlan(ctx, &models.RoutinePlan{
		ID: "diet-plan", UserID: "u1", Domain: models.SpecialistDiet, Version: 7, CreatedAt: time.Now(), Active: true,
	}))

	latest, err := store.LatestPlanVersion(ctx, "u1", models.SpecialistExercise)
	require.NoError(t, err)
	assert.Equal(t, 3, latest, "versions are scoped per domain")

	latest, err = store.LatestPlanVersion(ctx, "u1", models.SpecialistMentalHealth)
	require.NoError(t, err)
	assert.Equal(t, 0, latest)
}
