package models

import "time"

// User holds the identity record plus the profile attributes the agents use
// to build context. The structured store is the source of truth when it is
// available; the document store carries a mirror.
type User struct {
	ID           string `json:"user_id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`

	Age           int     `json:"age,omitempty"`
	Gender        string  `json:"gender,omitempty"`
	Height        float64 `json:"height,omitempty"`
	CurrentWeight float64 `json:"current_weight,omitempty"`
	InitialWeight float64 `json:"initial_weight,omitempty"`
	TargetWeight  float64 `json:"target_weight,omitempty"`
	ActivityLevel string  `json:"activity_level,omitempty"`
	DietType      string  `json:"diet_type,omitempty"`

	FavoriteFoods     []string `json:"favorite_foods,omitempty"`
	CommonIssues      []string `json:"common_issues,omitempty"`
	MedicalConditions []string `json:"medical_conditions,omitempty"`
	Medications       []string `json:"medications,omitempty"`

	// Daily inputs, overwritten by each daily log.
	DailyStressLevel int    `json:"daily_stress_level,omitempty"`
	WakeUpTime       string `json:"wake_up_time,omitempty"`
	SleepTime        string `json:"sleep_time,omitempty"`
	WorkoutDuration  int    `json:"workout_duration_preference,omitempty"`

	PreferredAgent Specialist `json:"preferred_agent,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActive     time.Time  `json:"last_active"`
	Active         bool       `json:"active"`
}

// HealthLog is one day of self-reported health data. Daily fields also update
// the profile so the agents see current values without a history scan.
type HealthLog struct {
	UserID          string    `json:"user_id"`
	Date            string    `json:"date"` // YYYY-MM-DD
	StressLevel     int       `json:"stress_level"`
	WakeUpTime      string    `json:"wake_up_time,omitempty"`
	SleepTime       string    `json:"sleep_time,omitempty"`
	Weight          float64   `json:"weight,omitempty"`
	WorkoutDuration int       `json:"workout_duration,omitempty"` // minutes
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
