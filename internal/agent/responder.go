package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// PlanStore is the slice of the store adapter the responder needs to persist
// generated routine plans.
type PlanStore interface {
	SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error
	LatestPlanVersion(ctx context.Context, userID string, domain models.Specialist) (int, error)
}

var routineKeywords = []string{
	"routine", "schedule", "timetable", "daily plan", "weekly plan",
	"diet plan", "meal plan", "workout plan", "exercise plan",
	"create a plan", "make a plan", "help me plan",
}

// Responder selects a persona by specialist tag, assembles the user context
// and thread history, and asks the completion service for a draft reply. When
// the message asks for a routine it additionally generates and persists a
// structured plan; that sub-operation degrades silently.
type Responder struct {
	svc    completion.Service
	plans  PlanStore
	logger *zap.Logger
}

func NewResponder(svc completion.Service, plans PlanStore, logger *zap.Logger) *Responder {
	return &Responder{svc: svc, plans: plans, logger: logger}
}

func (r *Responder) Respond(ctx context.Context, history []completion.Message, user *models.User, specialist models.Specialist, message string) (string, error) {
	persona, ok := personaPrompts[specialist]
	if !ok {
		persona = personaPrompts[models.DefaultSpecialist]
	}
	system := UserContext(user) + "\n" + persona

	messages := make([]completion.Message, 0, len(history)+2)
	messages = append(messages, completion.Message{Role: completion.RoleSystem, Content: system})
	messages = append(messages, history...)
	messages = append(messages, completion.Message{Role: completion.RoleUser, Content: message})

	draft, err := r.svc.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}

	if isRoutineRequest(message) {
		if plan := r.generateRoutine(ctx, user, specialist, message); plan != nil {
			draft += routineSummary(plan)
		}
	}
	return draft, nil
}

func isRoutineRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range routineKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// generateRoutine is best effort: any failure is logged and the draft response
// goes out unmodified.
func (r *Responder) generateRoutine(ctx context.Context, user *models.User, specialist models.Specialist, request string) *models.RoutinePlan {
	var plan models.RoutinePlan
	err := r.svc.GenerateStructured(ctx, []completion.Message{
		{Role: completion.RoleSystem, Content: routinePrompt},
		{Role: completion.RoleUser, Content: UserContext(user) + "\nRequest: " + request},
	}, &plan)
	if err != nil {
		r.logger.Error("Routine generation failed",
			zap.Error(err),
			zap.String("user_id", user.ID),
			zap.String("specialist", string(specialist)))
		return nil
	}

	version, err := r.plans.LatestPlanVersion(ctx, user.ID, specialist)
	if err != nil {
		r.logger.Warn("Could not read latest plan version", zap.Error(err))
	}

	now := time.Now()
	plan.ID = fmt.Sprintf("plan_%s_%s", user.ID, uuid.New().String()[:8])
	plan.UserID = user.ID
	plan.Domain = specialist
	plan.Version = version + 1
	plan.CreatedAt = now
	plan.LastUpdated = now
	plan.Active = true

	if err := r.plans.SaveRoutinePlan(ctx, &plan); err != nil {
		r.logger.Error("Failed to save routine plan",
			zap.Error(err),
			zap.String("plan_id", plan.ID))
		return nil
	}
	return &plan
}

func routineSummary(plan *models.RoutinePlan) string {
	return fmt.Sprintf(
		"\n\nI've put together a %s routine for you (v%d): %d daily activities and %d weekly goals. You can review it under your plans.",
		strings.ToLower(strings.ReplaceAll(string(plan.Domain), "_", " ")),
		plan.Version, len(plan.DailySchedule), len(plan.WeeklyGoals))
}

// UserContext serializes the profile into the context block prepended to every
// persona prompt. Missing profiles produce a fixed placeholder line.
func UserContext(user *models.User) string {
	if user == nil || user.ID == "" {
		return "User profile: not available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "User profile:\n- Name: %s, Age: %d, Gender: %s\n", user.FullName, user.Age, user.Gender)
	if user.CurrentWeight > 0 {
		fmt.Fprintf(&b, "- Weight: %.1fkg (target %.1fkg), Height: %.0fcm\n", user.CurrentWeight, user.TargetWeight, user.Height)
	}
	if user.ActivityLevel != "" {
		fmt.Fprintf(&b, "- Activity level: %s, Diet type: %s\n", user.ActivityLevel, user.DietType)
	}
	if user.DailyStressLevel > 0 {
		fmt.Fprintf(&b, "- Today's stress level: %d/5\n", user.DailyStressLevel)
	}
	if user.WakeUpTime != "" || user.SleepTime != "" {
		fmt.Fprintf(&b, "- Sleep schedule: %s - %s\n", user.WakeUpTime, user.SleepTime)
	}
	if len(user.CommonIssues) > 0 {
		fmt.Fprintf(&b, "- Common issues: %s\n", strings.Join(user.CommonIssues, ", "))
	}
	if len(user.MedicalConditions) > 0 {
		fmt.Fprintf(&b, "- Medical conditions: %s\n", strings.Join(user.MedicalConditions, ", "))
	}
	if len(user.Medications) > 0 {
		fmt.Fprintf(&b, "- Medications: %s\n", strings.Join(user.Medications, ", "))
	}
	if len(user.FavoriteFoods) > 0 {
		fmt.Fprintf(&b, "- Favorite foods: %s\n", strings.Join(user.FavoriteFoods, ", "))
	}
	if user.WorkoutDuration > 0 {
		fmt.Fprintf(&b, "- Preferred workout duration: %d minutes\n", user.WorkoutDuration)
	}
	return strings.TrimRight(b.String(), "\n")
}
