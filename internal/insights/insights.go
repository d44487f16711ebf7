package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

// Report is the on-demand rollup over a user's threads, entities and plans.
type Report struct {
	UserID            string                         `json:"user_id"`
	TotalThreads      int                            `json:"total_threads"`
	ThreadsByAgent    map[models.Specialist]int      `json:"threads_by_agent"`
	MostUsedAgent     models.Specialist              `json:"most_used_agent"`
	EntityTotals      map[models.EntityKind]int      `json:"entity_totals"`
	UniqueEntities    map[models.EntityKind][]string `json:"unique_entities"`
	TotalRoutinePlans int                            `json:"total_routine_plans"`
	RoutineAdherence  float64                        `json:"routine_adherence_pct"`
	WeeklyCompletion  float64                        `json:"weekly_completion_pct"`
	WeightProgress    float64                        `json:"weight_progress_pct"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

// Aggregator derives statistics from the stores. It holds no state of its own.
type Aggregator struct {
	store  *storage.Hybrid
	logger *zap.Logger
}

func NewAggregator(store *storage.Hybrid, logger *zap.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

func (a *Aggregator) Insights(ctx context.Context, userID string) (*Report, error) {
	report := &Report{
		UserID:         userID,
		ThreadsByAgent: make(map[models.Specialist]int),
		EntityTotals:   make(map[models.EntityKind]int),
		UniqueEntities: make(map[models.EntityKind][]string),
		MostUsedAgent:  models.DefaultSpecialist,
		GeneratedAt:    time.Now(),
	}

	threads, err := a.store.ListThreads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregate threads: %w", err)
	}
	report.TotalThreads = len(threads)
	for _, thread := range threads {
		report.ThreadsByAgent[thread.Specialist]++
	}
	best := 0
	for _, tag := range models.Specialists {
		if n := report.ThreadsByAgent[tag]; n > best {
			best = n
			report.MostUsedAgent = tag
		}
	}

	entities, err := a.store.UserEntities(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("aggregate entities: %w", err)
	}
	uniques := make(map[models.EntityKind]map[string]struct{})
	for _, list := range entities {
		for _, ent := range list {
			report.EntityTotals[ent.Kind]++
			if name := primaryField(ent); name != "" {
				if uniques[ent.Kind] == nil {
					uniques[ent.Kind] = make(map[string]struct{})
				}
				uniques[ent.Kind][name] = struct{}{}
			}
		}
	}
	for kind, set := range uniques {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		report.UniqueEntities[kind] = names
	}

	plans, err := a.store.RoutinePlans(ctx, userID)
	if err != nil {
		a.logger.Warn("Skipping plan metrics", zap.Error(err))
		plans = nil
	}
	report.TotalRoutinePlans = len(plans)

	logs, err := a.store.ProgressLogs(ctx, userID)
	if err != nil {
		a.logger.Warn("Skipping progress metrics", zap.Error(err))
		logs = nil
	}
	report.RoutineAdherence = adherence(plans, logs)
	report.WeeklyCompletion = weeklyCompletion(plans, logs)

	if user, err := a.store.GetUser(ctx, userID); err == nil {
		report.WeightProgress = weightProgress(user)
	}
	return report, nil
}

// primaryField pulls the leading descriptive value out of an entity's
// canonical fields for the unique-value rollups.
func primaryField(ent models.StoredEntity) string {
	var fields map[string]any
	if err := json.Unmarshal(ent.Fields, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"name", "item", "activity", "condition", "strategy",
		"emotion", "goal", "pattern", "restriction", "limitation", "preference",
		"location", "event", "substance", "response", "metric", "meal_type"} {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// adherence is the mean satisfaction over each plan's last seven progress
// entries, expressed as a percentage.
func adherence(plans []*models.RoutinePlan, logs []*models.ProgressLog) float64 {
	byPlan := make(map[string][]*models.ProgressLog)
	for _, log := range logs {
		byPlan[log.PlanID] = append(byPlan[log.PlanID], log)
	}

	total, counted := 0.0, 0
	for _, plan := range plans {
		entries := byPlan[plan.ID]
		if len(entries) == 0 {
			continue
		}
		if len(entries) > 7 {
			entries = entries[len(entries)-7:]
		}
		sum := 0
		for _, entry := range entries {
			sum += entry.Satisfaction
		}
		total += float64(sum) / float64(len(entries)) / 10 * 100
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func weeklyCompletion(plans []*models.RoutinePlan, logs []*models.ProgressLog) float64 {
	scheduled := 0
	for _, plan := range plans {
		scheduled += len(plan.DailySchedule) * 7
	}
	if scheduled == 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -7)
	completed := 0
	for _, log := range logs {
		if log.LoggedAt.After(cutoff) {
			completed += log.CompletedActivities
		}
	}
	pct := float64(completed) / float64(scheduled) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func weightProgress(user *models.User) float64 {
	initial := user.InitialWeight
	if initial == 0 {
		initial = user.CurrentWeight
	}
	targetLoss := initial - user.TargetWeight
	if targetLoss == 0 {
		return 0
	}
	pct := (initial - user.CurrentWeight) / targetLoss * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
