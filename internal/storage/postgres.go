package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/xaenox/wellness-coach/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// PostgresStore is the structured backend: fielded tables for account,
// profile, health and plan data, plus mirrors of the conversational records.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("read migrations file: %w", err)
	}
	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("execute migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, full_name, email, password_hash, created_at, last_active, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING`,
		user.ID, user.FullName, user.Email, user.PasswordHash, user.CreatedAt, user.LastActive, user.Active)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if err := upsertProfileTx(ctx, tx, user); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertProfileTx(ctx context.Context, tx *sql.Tx, user *models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_profiles
			(user_id, age, gender, height, current_weight, initial_weight, target_weight,
			 activity_level, diet_type, favorite_foods, common_issues, medical_conditions,
			 medications, daily_stress_level, wake_up_time, sleep_time, workout_duration, preferred_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (user_id) DO UPDATE SET
			age = EXCLUDED.age, gender = EXCLUDED.gender, height = EXCLUDED.height,
			current_weight = EXCLUDED.current_weight, initial_weight = EXCLUDED.initial_weight,
			target_weight = EXCLUDED.target_weight, activity_level = EXCLUDED.activity_level,
			diet_type = EXCLUDED.diet_type, favorite_foods = EXCLUDED.favorite_foods,
			common_issues = EXCLUDED.common_issues, medical_conditions = EXCLUDED.medical_conditions,
			medications = EXCLUDED.medications, daily_stress_level = EXCLUDED.daily_stress_level,
			wake_up_time = EXCLUDED.wake_up_time, sleep_time = EXCLUDED.sleep_time,
			workout_duration = EXCLUDED.workout_duration, preferred_agent = EXCLUDED.preferred_agent`,
		user.ID, user.Age, user.Gender, user.Height, user.CurrentWeight, user.InitialWeight,
		user.TargetWeight, user.ActivityLevel, user.DietType, pq.Array(user.FavoriteFoods),
		pq.Array(user.CommonIssues), pq.Array(user.MedicalConditions), pq.Array(user.Medications),
		user.DailyStressLevel, user.WakeUpTime, user.SleepTime, user.WorkoutDuration,
		string(user.PreferredAgent))
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

const userSelect = `
	SELECT u.user_id, u.full_name, u.email, u.password_hash, u.created_at, u.last_active, u.is_active,
	       COALESCE(p.age, 0), COALESCE(p.gender, ''), COALESCE(p.height, 0),
	       COALESCE(p.current_weight, 0), COALESCE(p.initial_weight, 0), COALESCE(p.target_weight, 0),
	       COALESCE(p.activity_level, ''), COALESCE(p.diet_type, ''),
	       COALESCE(p.favorite_foods, '{}'), COALESCE(p.common_issues, '{}'),
	       COALESCE(p.medical_conditions, '{}'), COALESCE(p.medications, '{}'),
	       COALESCE(p.daily_stress_level, 0), COALESCE(p.wake_up_time, ''), COALESCE(p.sleep_time, ''),
	       COALESCE(p.workout_duration, 0), COALESCE(p.preferred_agent, '')
	FROM users u
	LEFT JOIN user_profiles p ON p.user_id = u.user_id`

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var preferred string
	err := row.Scan(
		&user.ID, &user.FullName, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.LastActive, &user.Active,
		&user.Age, &user.Gender, &user.Height,
		&user.CurrentWeight, &user.InitialWeight, &user.TargetWeight,
		&user.ActivityLevel, &user.DietType,
		pq.Array(&user.FavoriteFoods), pq.Array(&user.CommonIssues),
		pq.Array(&user.MedicalConditions), pq.Array(&user.Medications),
		&user.DailyStressLevel, &user.WakeUpTime, &user.SleepTime,
		&user.WorkoutDuration, &preferred)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if preferred != "" {
		user.PreferredAgent = models.Specialist(preferred)
	}
	return &user, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE u.user_id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE LOWER(u.email) = LOWER($1)`, email))
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET full_name = $2, email = $3, last_active = $4 WHERE user_id = $1`,
		user.ID, user.FullName, user.Email, user.LastActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if err := upsertProfileTx(ctx, tx, user); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresStore) DeactivateUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = FALSE WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LogHealthData(ctx context.Context, log *models.HealthLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_data (user_id, log_date, stress_level, wake_up_time, sleep_time, weight, workout_duration, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, log_date) DO UPDATE SET
			stress_level = EXCLUDED.stress_level, wake_up_time = EXCLUDED.wake_up_time,
			sleep_time = EXCLUDED.sleep_time, weight = EXCLUDED.weight,
			workout_duration = EXCLUDED.workout_duration, notes = EXCLUDED.notes`,
		log.UserID, log.Date, log.StressLevel, log.WakeUpTime, log.SleepTime, log.Weight, log.WorkoutDuration, log.Notes, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("log health data: %w", err)
	}
	return nil
}

func (s *PostgresStore) HealthHistory(ctx context.Context, userID string, days int) ([]*models.HealthLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, log_date, stress_level, wake_up_time, sleep_time, weight,
		       COALESCE(workout_duration, 0), COALESCE(notes, ''), created_at
		FROM health_data WHERE user_id = $1 ORDER BY log_date DESC LIMIT NULLIF($2, 0)`,
		userID, days)
	if err != nil {
		return nil, fmt.Errorf("query health history: %w", err)
	}
	defer rows.Close()

	var logs []*models.HealthLog
	for rows.Next() {
		log := &models.HealthLog{}
		if err := rows.Scan(&log.UserID, &log.Date, &log.StressLevel, &log.WakeUpTime,
			&log.SleepTime, &log.Weight, &log.WorkoutDuration, &log.Notes, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan health log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) CreateSession(ctx context.Context, thread *models.Thread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, agent_type, created_at, last_updated, total_turns)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO NOTHING`,
		thread.ID, thread.UserID, string(thread.Specialist), thread.CreatedAt, thread.LastUpdated, thread.TotalTurns)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// AppendTurn mirrors one turn into the messages table. The turn id primary key
// makes replays no-ops.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turn: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO messages
			(turn_id, session_id, user_id, user_message, assistant_message,
			 user_timestamp, assistant_timestamp, routed, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (turn_id) DO NOTHING`,
		turn.ID, turn.ThreadID, turn.UserID, turn.UserMessage, turn.AssistantMessage,
		turn.UserTimestamp, turn.AssistantTimestamp, string(turn.Routed), turn.Failed)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET last_updated = $2, total_turns = total_turns + 1 WHERE session_id = $1`,
			turn.ThreadID, turn.AssistantTimestamp)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) InsertEntities(ctx context.Context, userID, threadID string, entities []models.StoredEntity) error {
	for _, ent := range entities {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO entities (user_id, session_id, kind, fields, extracted_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, session_id, kind, fields) DO NOTHING`,
			userID, threadID, string(ent.Kind), []byte(ent.Fields), ent.ExtractedAt)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}
	return nil
}

// DeleteSession cascades to the thread's messages and entities.
func (s *PostgresStore) DeleteSession(ctx context.Context, threadID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM entities WHERE session_id = $1`,
		`DELETE FROM messages WHERE session_id = $1`,
		`DELETE FROM sessions WHERE session_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, threadID); err != nil {
			return fmt.Errorf("delete session data: %w", err)
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error {
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode routine plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO routine_plans (plan_id, user_id, domain, version, title, plan_json, created_at, last_updated, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (plan_id) DO UPDATE SET
			version = EXCLUDED.version, title = EXCLUDED.title, plan_json = EXCLUDED.plan_json,
			last_updated = EXCLUDED.last_updated, is_active = EXCLUDED.is_active`,
		plan.ID, plan.UserID, string(plan.Domain), plan.Version, plan.Title,
		planJSON, plan.CreatedAt, plan.LastUpdated, plan.Active)
	if err != nil {
		return fmt.Errorf("save routine plan: %w", err)
	}
	return nil
}

func (s *PostgresStore) RoutinePlans(ctx context.Context, userID string) ([]*models.RoutinePlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_json FROM routine_plans
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query routine plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.RoutinePlan
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan routine plan: %w", err)
		}
		plans = append(plans, coercePlan("", userID, raw))
	}
	return plans, rows.Err()
}

func (s *PostgresStore) LogProgress(ctx context.Context, entry *models.ProgressLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_logs (plan_id, user_id, log_date, completed, total, satisfaction, notes, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.PlanID, entry.UserID, entry.Date, entry.CompletedActivities,
		entry.TotalActivities, entry.Satisfaction, entry.Notes, entry.LoggedAt)
	if err != nil {
		return fmt.Errorf("log progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) ProgressLogs(ctx context.Context, userID string) ([]*models.ProgressLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, user_id, log_date, completed, total, satisfaction, COALESCE(notes, ''), logged_at
		FROM progress_logs WHERE user_id = $1 ORDER BY logged_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query progress logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.ProgressLog
	for rows.Next() {
		entry := &models.ProgressLog{}
		if err := rows.Scan(&entry.PlanID, &entry.UserID, &entry.Date, &entry.CompletedActivities,
			&entry.TotalActivities, &entry.Satisfaction, &entry.Notes, &entry.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan progress log: %w", err)
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
