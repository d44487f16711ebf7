package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

type fakePlanStore struct {
	saved   []*models.RoutinePlan
	latest  int
	saveErr error
}

func (f *fakePlanStore) SaveRoutinePlan(_ context.Context, plan *models.RoutinePlan) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, plan)
	return nil
}

func (f *fakePlanStore) LatestPlanVersion(_ context.Context, _ string, _ models.Specialist) (int, error) {
	return f.latest, nil
}

func testUser() *models.User {
	return &models.User{ID: "user_1", FullName: "Sam", Age: 30, CurrentWeight: 80, TargetWeight: 75}
}

func TestRespondReturnsDraft(t *testing.T) {
	svc := &stubService{answer: "That sounds like a great start."}
	responder := NewResponder(svc, &fakePlanStore{}, zap.NewNop())

	reply, err := responder.Respond(context.Background(), nil, testUser(), models.SpecialistDiet, "I had a salad for lunch")
	require.NoError(t, err)
	assert.Equal(t, "That sounds like a great start.", reply)
}

func TestRespondRoutineRequestPersistsVersionedPlan(t *testing.T) {
	svc := &stubService{
		answer: "Here is a plan.",
		structured: `{
			"title": "Morning routine",
			"daily_schedule": [{"time": "07:00", "activity": "stretch", "duration": 15, "priority": "high", "flexible": true}],
			"weekly_goals": [{"goal": "run 3 times"}]
		}`,
	}
	plans := &fakePlanStore{latest: 2}
	responder := NewResponder(svc, plans, zap.NewNop())

	reply, err := responder.Respond(context.Background(), nil, testUser(), models.SpecialistExercise, "can you make me a workout plan?")
	require.NoError(t, err)
	require.Len(t, plans.saved, 1)

	plan := plans.saved[0]
	assert.Equal(t, "user_1", plan.UserID)
	assert.Equal(t, models.SpecialistExercise, plan.Domain)
	assert.Equal(t, 3, plan.Version, "new plan supersedes the latest version")
	assert.True(t, plan.Active)
	assert.Contains(t, reply, "Here is a plan.")
	assert.Contains(t, reply, "v3")
}

func TestRespondRoutineFailureDegradesToPlainReply(t *testing.T) {
	svc := &stubService{answer: "Here is a plan.", structured: `{"title": "x"}`}
	plans := &fakePlanStore{saveErr: errors.New("disk full")}
	responder := NewResponder(svc, plans, zap.NewNop())

	reply, err := responder.Respond(context.Background(), nil, testUser(), models.SpecialistExercise, "make me a workout plan")
	require.NoError(t, err)
	assert.Equal(t, "Here is a plan.", reply, "failed plan generation must not touch the draft")
}

func TestUserContextHandlesMissingProfile(t *testing.T) {
	assert.Equal(t, "User profile: not available.", UserContext(nil))
	assert.Equal(t, "User profile: not available.", UserContext(&models.User{}))

	ctx := UserContext(testUser())
	assert.Contains(t, ctx, "Sam")
	assert.Contains(t, ctx, "80.0kg")
}
