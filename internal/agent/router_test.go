package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// stubService is a scripted completion.Service for agent tests. Generate
// returns answer/err; GenerateStructured unmarshals structured into out.
type stubService struct {
	answer     string
	err        error
	structured string
	calls      int
}

func (s *stubService) Generate(_ context.Context, _ []completion.Message) (string, error) {
	s.calls++
	return s.answer, s.err
}

func (s *stubService) GenerateStructured(_ context.Context, _ []completion.Message, out any) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal([]byte(s.structured), out)
}

func TestClassifyRecognizedTags(t *testing.T) {
	for _, tc := range []struct {
		answer string
		want   models.Specialist
	}{
		{"DIET", models.SpecialistDiet},
		{"EXERCISE", models.SpecialistExercise},
		{"MENTAL_HEALTH", models.SpecialistMentalHealth},
		{"  diet \n", models.SpecialistDiet},
	} {
		router := NewRouter(&stubService{answer: tc.answer}, zap.NewNop())
		assert.Equal(t, tc.want, router.Classify(context.Background(), "some message"), "answer %q", tc.answer)
	}
}

func TestClassifyGeneralFallsBackToDefault(t *testing.T) {
	router := NewRouter(&stubService{answer: "GENERAL"}, zap.NewNop())
	assert.Equal(t, models.DefaultSpecialist, router.Classify(context.Background(), "what time is it"))
}

func TestClassifyUnrecognizedAnswerFallsBackToDefault(t *testing.T) {
	router := NewRouter(&stubService{answer: "I think this is about food, so DIET"}, zap.NewNop())
	assert.Equal(t, models.DefaultSpecialist, router.Classify(context.Background(), "lunch ideas"))
}

func TestClassifyErrorFallsBackToDefault(t *testing.T) {
	router := NewRouter(&stubService{err: errors.New("api down")}, zap.NewNop())
	assert.Equal(t, models.DefaultSpecialist, router.Classify(context.Background(), "hello"))
}
