package models

import "time"

// ScheduleItem is one dated slot in a routine plan's daily schedule.
type ScheduleItem struct {
	Time     string `json:"time"` // HH:MM
	Activity string `json:"activity"`
	Duration int    `json:"duration"` // minutes
	Priority string `json:"priority,omitempty"`
	Flexible bool   `json:"flexible,omitempty"`
}

// WeeklyGoal is a milestone attached to a routine plan.
type WeeklyGoal struct {
	Goal         string `json:"goal"`
	TargetMetric string `json:"target_metric,omitempty"`
	Reward       string `json:"reward,omitempty"`
}

// RoutinePlan is a generated schedule for one (user, domain) pair. Version
// increments on regeneration; concurrent regenerations resolve last-writer-wins.
type RoutinePlan struct {
	ID            string         `json:"plan_id"`
	UserID        string         `json:"user_id"`
	Domain        Specialist     `json:"domain"`
	Version       int            `json:"version"`
	Title         string         `json:"title,omitempty"`
	DailySchedule []ScheduleItem `json:"daily_schedule"`
	WeeklyGoals   []WeeklyGoal   `json:"weekly_goals"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdated   time.Time      `json:"last_updated"`
	Active        bool           `json:"active"`
}

// ProgressLog records one day of adherence to a routine plan. Append-only.
type ProgressLog struct {
	PlanID              string    `json:"plan_id"`
	UserID              string    `json:"user_id"`
	Date                string    `json:"date"` // YYYY-MM-DD
	CompletedActivities int       `json:"completed_activities"`
	TotalActivities     int       `json:"total_activities"`
	Satisfaction        int       `json:"satisfaction"` // 1-10
	Notes               string    `json:"notes,omitempty"`
	LoggedAt            time.Time `json:"logged_at"`
}
