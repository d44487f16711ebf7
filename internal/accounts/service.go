package accounts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service handles registration, login and profile maintenance on top of the
// store adapter.
type Service struct {
	store  *storage.Hybrid
	logger *zap.Logger
}

func NewService(store *storage.Hybrid, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// RegisterRequest carries the signup form. Only FullName, Email and Password
// are required; the rest seeds the profile.
type RegisterRequest struct {
	FullName       string   `json:"full_name"`
	Email          string   `json:"email"`
	Password       string   `json:"password"`
	Age            int      `json:"age"`
	Gender         string   `json:"gender"`
	Height         float64  `json:"height"`
	CurrentWeight  float64  `json:"current_weight"`
	TargetWeight   float64  `json:"target_weight"`
	ActivityLevel  string   `json:"activity_level"`
	DietType       string   `json:"diet_type"`
	FavoriteFoods  []string `json:"favorite_foods"`
	PreferredAgent string   `json:"preferred_agent"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	switch {
	case strings.TrimSpace(req.FullName) == "":
		return nil, errors.New("full name is required")
	case !emailPattern.MatchString(email):
		return nil, fmt.Errorf("invalid email address: %q", req.Email)
	case len(req.Password) < 6:
		return nil, errors.New("password must be at least 6 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	now := time.Now()
	user := &models.User{
		ID:             "user_" + uuid.New().String()[:12],
		FullName:       strings.TrimSpace(req.FullName),
		Email:          email,
		PasswordHash:   hashPassword(req.Password),
		Age:            req.Age,
		Gender:         req.Gender,
		Height:         req.Height,
		CurrentWeight:  req.CurrentWeight,
		InitialWeight:  req.CurrentWeight,
		TargetWeight:   req.TargetWeight,
		ActivityLevel:  req.ActivityLevel,
		DietType:       req.DietType,
		FavoriteFoods:  req.FavoriteFoods,
		CreatedAt:      now,
		LastActive:     now,
		Active:         true,
	}
	if req.PreferredAgent != "" {
		user.PreferredAgent = models.ParseSpecialist(req.PreferredAgent)
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate checks credentials and refreshes the last-active stamp. The
// same error covers unknown emails and wrong passwords.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.Active || user.PasswordHash != hashPassword(password) {
		return nil, ErrInvalidCredentials
	}

	user.LastActive = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("Failed to refresh last active", zap.Error(err), zap.String("user_id", user.ID))
	}
	return user, nil
}

// ProfileUpdate lists the mutable profile fields. Nil pointers leave the
// stored value untouched.
type ProfileUpdate struct {
	FullName          *string   `json:"full_name"`
	Age               *int      `json:"age"`
	Gender            *string   `json:"gender"`
	Height            *float64  `json:"height"`
	CurrentWeight     *float64  `json:"current_weight"`
	TargetWeight      *float64  `json:"target_weight"`
	ActivityLevel     *string   `json:"activity_level"`
	DietType          *string   `json:"diet_type"`
	FavoriteFoods     *[]string `json:"favorite_foods"`
	CommonIssues      *[]string `json:"common_issues"`
	MedicalConditions *[]string `json:"medical_conditions"`
	Medications       *[]string `json:"medications"`
	DailyStressLevel  *int      `json:"daily_stress_level"`
	WakeUpTime        *string   `json:"wake_up_time"`
	SleepTime         *string   `json:"sleep_time"`
	WorkoutDuration   *int      `json:"workout_duration"`
	PreferredAgent    *string   `json:"preferred_agent"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FullName != nil {
		user.FullName = *update.FullName
	}
	if update.Age != nil {
		user.Age = *update.Age
	}
	if update.Gender != nil {
		user.Gender = *update.Gender
	}
	if update.Height != nil {
		user.Height = *update.Height
	}
	if update.CurrentWeight != nil {
		user.CurrentWeight = *update.CurrentWeight
		if user.InitialWeight == 0 {
			user.InitialWeight = *update.CurrentWeight
		}
	}
	if update.TargetWeight != nil {
		user.TargetWeight = *update.TargetWeight
	}
	if update.ActivityLevel != nil {
		user.ActivityLevel = *update.ActivityLevel
	}
	if update.DietType != nil {
		user.DietType = *update.DietType
	}
	if update.FavoriteFoods != nil {
		user.FavoriteFoods = *update.FavoriteFoods
	}
	if update.CommonIssues != nil {
		user.CommonIssues = *update.CommonIssues
	}
	if update.MedicalConditions != nil {
		user.MedicalConditions = *update.MedicalConditions
	}
	if update.Medications != nil {
		user.Medications = *update.Medications
	}
	if update.DailyStressLevel != nil {
		user.DailyStressLevel = *update.DailyStressLevel
	}
	if update.WakeUpTime != nil {
		user.WakeUpTime = *update.WakeUpTime
	}
	if update.SleepTime != nil {
		user.SleepTime = *update.SleepTime
	}
	if update.WorkoutDuration != nil {
		user.WorkoutDuration = *update.WorkoutDuration
	}
	if update.PreferredAgent != nil {
		user.PreferredAgent = models.ParseSpecialist(*update.PreferredAgent)
	}

	user.LastActive = time.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// LogDaily records one day's checkin. One record per user per date,
// last write wins.
func (s *Service) LogDaily(ctx context.Context, log *models.HealthLog) error {
	if log.UserID == "" {
		return errors.New("user id is required")
	}
	if log.Date == "" {
		log.Date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", log.Date); err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD", log.Date)
	}
	log.CreatedAt = time.Now()

	if err := s.store.LogHealthData(ctx, log); err != nil {
		return fmt.Errorf("log health data: %w", err)
	}

	// Mirror mutable daily fields onto the profile so the responder sees
	// current values without a history scan.
	if user, err := s.store.GetUser(ctx, log.UserID); err == nil {
		changed := false
		if log.StressLevel > 0 && log.StressLevel != user.DailyStressLevel {
			user.DailyStressLevel = log.StressLevel
			changed = true
		}
		if log.Weight > 0 && log.Weight != user.CurrentWeight {
			user.CurrentWeight = log.Weight
			changed = true
		}
		if log.WakeUpTime != "" && log.WakeUpTime != user.WakeUpTime {
			user.WakeUpTime = log.WakeUpTime
			changed = true
		}
		if log.SleepTime != "" && log.SleepTime != user.SleepTime {
			user.SleepTime = log.SleepTime
			changed = true
		}
		if log.WorkoutDuration > 0 && log.WorkoutDuration != user.WorkoutDuration {
			user.WorkoutDuration = log.WorkoutDuration
			changed = true
		}
		if changed {
			if err := s.store.UpdateUser(ctx, user); err != nil {
				s.logger.Warn("Failed to sync profile from daily log", zap.Error(err))
			}
		}
	}
	return nil
}

// Deactivate disables the account. Deactivated users fail authentication;
// their data stays in place.
func (s *Service) Deactivate(ctx context.Context, userID string) error {
	if err := s.store.DeactivateUser(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("User deactivated", zap.String("user_id", userID))
	return nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
