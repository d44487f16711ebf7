package agent

import (
	"context"
	"fmt"

	"github.com/xaenox/wellness-coach/internal/completion"
	"go.uber.org/zap"
)

// SafetyFilter rewrites every draft response before it reaches persistence or
// the user. Unlike the router this stage has no degrade path: a failure here
// fails the whole turn, because unfiltered content must never leave the
// pipeline.
type SafetyFilter struct {
	svc    completion.Service
	logger *zap.Logger
}

func NewSafetyFilter(svc completion.Service, logger *zap.Logger) *SafetyFilter {
	return &SafetyFilter{svc: svc, logger: logger}
}

func (f *SafetyFilter) Filter(ctx context.Context, draft string) (string, error) {
	safe, err := f.svc.Generate(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: safetyPrompt},
		{Role: completion.RoleUser, Content: "Message: " + draft},
	})
	if err != nil {
		return "", fmt.Errorf("safety filter: %w", err)
	}
	return safe, nil
}
