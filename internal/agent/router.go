package agent

import (
	"context"
	"strings"

	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// Router classifies a single user message into one specialist tag. It never
// returns an error: completion failures and unrecognized answers both degrade
// to the default tag so routing cannot block a turn.
type Router struct {
	svc    completion.Service
	logger *zap.Logger
}

func NewRouter(svc completion.Service, logger *zap.Logger) *Router {
	return &Router{svc: svc, logger: logger}
}

func (r *Router) Classify(ctx context.Context, message string) models.Specialist {
	answer, err := r.svc.Generate(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: routerPrompt},
		{Role: completion.RoleUser, Content: message},
	})
	if err != nil {
		r.logger.Warn("Routing failed, using default specialist",
			zap.Error(err),
			zap.String("default", string(models.DefaultSpecialist)))
		return models.DefaultSpecialist
	}

	tag := models.Specialist(strings.ToUpper(strings.TrimSpace(answer)))
	if tag.Valid() {
		return tag
	}
	if tag != models.SpecialistGeneral {
		r.logger.Warn("Unrecognized routing answer, using default specialist",
			zap.String("answer", answer))
	}
	// GENERAL and anything else map to the default wellness domain.
	return models.DefaultSpecialist
}
