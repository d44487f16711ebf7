package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wellness-coach/internal/agent"
	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/session"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

// scriptService plays the completion backend for a whole turn. It dispatches
// on the system prompt: routing answers route, safety rewrites append a
// marker, everything else is the persona draft.
type scriptService struct {
	mu          sync.Mutex
	route       string
	draft       string
	draftErr    error
	safetyErr   error
	extractJSON string
	extractErr  error

	// echo replaces draft with "re <user message>"; started and gate let a
	// test hold a responder call open while another turn queues up.
	echo    bool
	started chan string
	gate    chan struct{}
}

func (s *scriptService) Generate(_ context.Context, messages []completion.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	system := messages[0].Content
	switch {
	case strings.Contains(system, "router"):
		return s.route, nil
	case strings.Contains(system, "review"):
		if s.safetyErr != nil {
			return "", s.safetyErr
		}
		draft := strings.TrimPrefix(messages[len(messages)-1].Content, "Message: ")
		return draft + " [checked]", nil
	default:
		if s.draftErr != nil {
			return "", s.draftErr
		}
		if s.echo {
			last := messages[len(messages)-1].Content
			if s.started != nil {
				s.started <- last
			}
			if s.gate != nil {
				s.mu.Unlock()
				<-s.gate
				s.mu.Lock()
			}
			return "re " + last, nil
		}
		return s.draft, nil
	}
}

func (s *scriptService) GenerateStructured(_ context.Context, _ []completion.Message, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.extractErr != nil {
		return s.extractErr
	}
	return json.Unmarshal([]byte(s.extractJSON), out)
}

const emptyDietEntities = `{"food_items":[],"nutritional_goals":[],"eating_patterns":[],"dietary_restrictions":[]}`
const emptyMentalEntities = `{"people":[],"conditions":[],"coping_strategies":[],"emotional_states":[],"therapeutic_goals":[]}`

func newTestPipeline(t *testing.T, svc completion.Service) (*Pipeline, *storage.Hybrid) {
	t.Helper()
	logger := zap.NewNop()
	docs, err := storage.NewDocumentStore(t.TempDir(), logger)
	require.NoError(t, err)
	store := storage.NewHybrid(nil, docs, logger)

	p := New(
		agent.NewRouter(svc, logger),
		agent.NewResponder(svc, store, logger),
		agent.NewSafetyFilter(svc, logger),
		agent.NewExtractor(svc, logger),
		store,
		logger,
	)
	return p, store
}

func TestSubmitNewThreadRoutesAndPersists(t *testing.T) {
	svc := &scriptService{route: "DIET", draft: "Nice choice!", extractJSON: emptyDietEntities}
	p, store := newTestPipeline(t, svc)

	result, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "I had a salad"})
	require.NoError(t, err)

	assert.Equal(t, models.SpecialistDiet, result.Routed)
	assert.Equal(t, "Nice choice! [checked]", result.Response)
	assert.False(t, result.Failed)

	tag, _, err := session.ParseThreadID(result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, models.SpecialistDiet, tag)

	messages, err := store.ThreadMessages(context.Background(), "u1", result.ThreadID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "I had a salad", messages[0].Content)
	assert.Equal(t, "Nice choice! [checked]", messages[1].Content)
}

func TestSubmitExistingThreadTagWinsOverRouting(t *testing.T) {
	// The router votes DIET but the thread is bound to MENTAL_HEALTH. The
	// responder must stay in the thread's domain; the routing decision is only
	// recorded on the turn.
	svc := &scriptService{route: "MENTAL_HEALTH", draft: "first", extractJSON: emptyMentalEntities}
	p, _ := newTestPipeline(t, svc)

	first, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "I'm worried"})
	require.NoError(t, err)

	svc.mu.Lock()
	svc.route = "DIET"
	svc.draft = "second"
	svc.mu.Unlock()

	second, err := p.Submit(context.Background(), TurnRequest{
		UserID: "u1", ThreadID: first.ThreadID, Message: "also, what should I eat?",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.Equal(t, models.SpecialistDiet, second.Routed)

	tag, _, err := session.ParseThreadID(second.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, models.SpecialistMentalHealth, tag)
}

func TestSubmitSpecialistHintSkipsRouterForThreadBinding(t *testing.T) {
	svc := &scriptService{route: "MENTAL_HEALTH", draft: "ok", extractJSON: `{"activities":[],"fitness_goals":[],"physical_limitations":[],"workout_preferences":[]}`}
	p, _ := newTestPipeline(t, svc)

	result, err := p.Submit(context.Background(), TurnRequest{
		UserID: "u1", Specialist: "exercise", Message: "leg day",
	})
	require.NoError(t, err)

	tag, _, err := session.ParseThreadID(result.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, models.SpecialistExercise, tag)
}

func TestSubmitExtractionFailureIsAbsorbed(t *testing.T) {
	svc := &scriptService{route: "DIET", draft: "ok", extractErr: errors.New("model overloaded")}
	p, store := newTestPipeline(t, svc)

	result, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "lunch was pasta"})
	require.NoError(t, err, "extraction failure must not fail the turn")
	assert.Equal(t, "ok [checked]", result.Response)
	assert.Empty(t, result.Entities)
	assert.False(t, result.Failed)

	entities, err := store.ThreadEntities(context.Background(), "u1", result.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestSubmitResponderFailureFallsBackAndPersists(t *testing.T) {
	svc := &scriptService{route: "DIET", draftErr: errors.New("api down"), extractJSON: emptyDietEntities}
	p, store := newTestPipeline(t, svc)

	result, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, FallbackResponse, result.Response)

	// The failed turn is still part of the thread history.
	messages, err := store.ThreadMessages(context.Background(), "u1", result.ThreadID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, FallbackResponse, messages[1].Content)
}

func TestSubmitSafetyFailureFallsBack(t *testing.T) {
	svc := &scriptService{route: "DIET", draft: "unchecked draft", safetyErr: errors.New("filter down"), extractJSON: emptyDietEntities}
	p, _ := newTestPipeline(t, svc)

	result, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "hello"})
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.Equal(t, FallbackResponse, result.Response, "an unfiltered draft never reaches the user")
}

func TestSubmitMergesExtractedEntitiesOnce(t *testing.T) {
	svc := &scriptService{
		route: "EXERCISE",
		draft: "great run",
		extractJSON: `{
			"activities": [{"activity": "running", "distance": "5km", "status": "completed"}],
			"fitness_goals": [], "physical_limitations": [], "workout_preferences": []
		}`,
	}
	p, store := newTestPipeline(t, svc)
	ctx := context.Background()

	first, err := p.Submit(ctx, TurnRequest{UserID: "u1", Message: "I ran 5km!"})
	require.NoError(t, err)
	require.Len(t, first.Entities, 1)
	assert.Equal(t, models.KindActivities, first.Entities[0].Kind)

	second, err := p.Submit(ctx, TurnRequest{UserID: "u1", ThreadID: first.ThreadID, Message: "I ran 5km again"})
	require.NoError(t, err)
	assert.Empty(t, second.Entities, "identical facts collapse to the first occurrence")

	entities, err := store.ThreadEntities(ctx, "u1", first.ThreadID)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestSubmitConcurrentTurnsPersistInSubmissionOrder(t *testing.T) {
	svc := &scriptService{
		route:       "DIET",
		echo:        true,
		started:     make(chan string, 2),
		gate:        make(chan struct{}),
		extractJSON: emptyDietEntities,
	}
	p, store := newTestPipeline(t, svc)
	ctx := context.Background()

	threadID := session.NewThreadID(models.SpecialistDiet, time.Now())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := p.Submit(ctx, TurnRequest{UserID: "u1", ThreadID: threadID, Message: "first message"})
		assert.NoError(t, err)
	}()

	// The first turn now holds the thread and is blocked inside its responder
	// call.
	<-svc.started

	go func() {
		defer wg.Done()
		_, err := p.Submit(ctx, TurnRequest{UserID: "u1", ThreadID: threadID, Message: "second message"})
		assert.NoError(t, err)
	}()

	// Give the second turn time to queue on the thread before releasing the
	// first one.
	time.Sleep(50 * time.Millisecond)
	close(svc.gate)
	wg.Wait()

	messages, err := store.ThreadMessages(ctx, "u1", threadID)
	require.NoError(t, err)
	require.Len(t, messages, 4, "two complete turns, no interleaving")
	assert.Equal(t, "first message", messages[0].Content)
	assert.Equal(t, "re first message [checked]", messages[1].Content)
	assert.Equal(t, "second message", messages[2].Content)
	assert.Equal(t, "re second message [checked]", messages[3].Content)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptService{route: "DIET", extractJSON: emptyDietEntities})

	_, err := p.Submit(context.Background(), TurnRequest{UserID: "u1", Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = p.Submit(context.Background(), TurnRequest{UserID: "u1", ThreadID: "bogus", Message: "hi"})
	assert.ErrorIs(t, err, session.ErrInvalidThreadID)

	_, err = p.Submit(context.Background(), TurnRequest{Message: "hi"})
	assert.Error(t, err)
}
