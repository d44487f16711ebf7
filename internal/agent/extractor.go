package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// Extractor runs specialist-specific structured extraction over one message.
// It runs concurrently with the responder; its failures are the caller's to
// absorb, never to surface to the user.
type Extractor struct {
	svc    completion.Service
	logger *zap.Logger
}

func NewExtractor(svc completion.Service, logger *zap.Logger) *Extractor {
	return &Extractor{svc: svc, logger: logger}
}

// Extract dispatches on the specialist tag to the matching typed schema and
// flattens the result into storage records stamped with ts.
func (e *Extractor) Extract(ctx context.Context, message string, specialist models.Specialist, ts time.Time) ([]models.StoredEntity, error) {
	prompt, ok := extractionPrompts[specialist]
	if !ok {
		specialist = models.SpecialistGeneral
		prompt = extractionPrompts[models.SpecialistGeneral]
	}

	messages := []completion.Message{
		{Role: completion.RoleSystem, Content: prompt},
		{Role: completion.RoleUser, Content: "Message: " + message},
	}

	switch specialist {
	case models.SpecialistMentalHealth:
		var set models.MentalHealthEntities
		if err := e.svc.GenerateStructured(ctx, messages, &set); err != nil {
			return nil, fmt.Errorf("extract mental health entities: %w", err)
		}
		return set.Flatten(ts), nil
	case models.SpecialistDiet:
		var set models.DietEntities
		if err := e.svc.GenerateStructured(ctx, messages, &set); err != nil {
			return nil, fmt.Errorf("extract diet entities: %w", err)
		}
		return set.Flatten(ts), nil
	case models.SpecialistExercise:
		var set models.ExerciseEntities
		if err := e.svc.GenerateStructured(ctx, messages, &set); err != nil {
			return nil, fmt.Errorf("extract exercise entities: %w", err)
		}
		return set.Flatten(ts), nil
	default:
		var set models.GeneralEntities
		if err := e.svc.GenerateStructured(ctx, messages, &set); err != nil {
			return nil, fmt.Errorf("extract general entities: %w", err)
		}
		return set.Flatten(ts), nil
	}
}
