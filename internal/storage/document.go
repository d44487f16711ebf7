package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// DocumentStore keeps one JSON document per user on disk. It is the durable
// channel for conversational data: sessions, messages and extracted entities
// live here as the source of truth, everything else is a mirror. Updates are
// read-modify-write under a per-user mutex and land via an atomic rename.
type DocumentStore struct {
	dir    string
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	logger *zap.Logger
}

type sessionDocument struct {
	ThreadID     string                `json:"thread_id"`
	Agent        models.Specialist     `json:"agent"`
	CreatedAt    time.Time             `json:"created_at"`
	LastUpdated  time.Time             `json:"last_updated"`
	Messages     []models.ChatMessage  `json:"messages"`
	Entities     []models.StoredEntity `json:"entities"`
	AppliedTurns map[string]bool       `json:"applied_turns,omitempty"`
}

type userDocument struct {
	UserID       string                           `json:"user_id"`
	CreatedAt    time.Time                        `json:"created_at"`
	LastUpdated  time.Time                        `json:"last_updated"`
	Profile      *models.User                     `json:"profile,omitempty"`
	Sessions     map[string]*sessionDocument      `json:"sessions"`
	RoutinePlans map[string]json.RawMessage       `json:"routine_plans"`
	HealthLogs   map[string]*models.HealthLog     `json:"health_logs"`
	ProgressLogs map[string][]*models.ProgressLog `json:"progress_logs"`
}

func NewDocumentStore(dir string, logger *zap.Logger) (*DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &DocumentStore{
		dir:    dir,
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}, nil
}

func (s *DocumentStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

func (s *DocumentStore) path(userID string) string {
	return filepath.Join(s.dir, userID+"_wellness.json")
}

func newUserDocument(userID string) *userDocument {
	now := time.Now()
	return &userDocument{
		UserID:       userID,
		CreatedAt:    now,
		LastUpdated:  now,
		Sessions:     make(map[string]*sessionDocument),
		RoutinePlans: make(map[string]json.RawMessage),
		HealthLogs:   make(map[string]*models.HealthLog),
		ProgressLogs: make(map[string][]*models.ProgressLog),
	}
}

// load reads the user's document, returning a fresh one when the file does not
// exist yet. The caller must hold the user lock.
func (s *DocumentStore) load(userID string) (*userDocument, error) {
	data, err := os.ReadFile(s.path(userID))
	if os.IsNotExist(err) {
		return newUserDocument(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read user document: %w", err)
	}
	var doc userDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse user document %s: %w", userID, err)
	}
	if doc.Sessions == nil {
		doc.Sessions = make(map[string]*sessionDocument)
	}
	if doc.RoutinePlans == nil {
		doc.RoutinePlans = make(map[string]json.RawMessage)
	}
	if doc.HealthLogs == nil {
		doc.HealthLogs = make(map[string]*models.HealthLog)
	}
	if doc.ProgressLogs == nil {
		doc.ProgressLogs = make(map[string][]*models.ProgressLog)
	}
	return &doc, nil
}

func (s *DocumentStore) save(doc *userDocument) error {
	doc.LastUpdated = time.Now()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode user document: %w", err)
	}
	target := s.path(doc.UserID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write user document: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace user document: %w", err)
	}
	return nil
}

func (s *DocumentStore) update(userID string, fn func(*userDocument) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.load(userID)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func (s *DocumentStore) view(userID string, fn func(*userDocument) error) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.load(userID)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Profile mirror.

func (s *DocumentStore) SaveProfile(ctx context.Context, user *models.User) error {
	return s.update(user.ID, func(doc *userDocument) error {
		doc.Profile = user
		return nil
	})
}

func (s *DocumentStore) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := s.view(userID, func(doc *userDocument) error {
		if doc.Profile == nil {
			return ErrNotFound
		}
		user = doc.Profile
		return nil
	})
	return user, err
}

// FindByEmail scans all user documents. The document store is a fallback path
// for account lookups, not the primary index.
func (s *DocumentStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan document dir: %w", err)
	}
	email = strings.ToLower(email)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, "_wellness.json") {
			continue
		}
		userID := strings.TrimSuffix(name, "_wellness.json")
		var match *models.User
		err := s.view(userID, func(doc *userDocument) error {
			if doc.Profile != nil && strings.ToLower(doc.Profile.Email) == email {
				match = doc.Profile
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("Skipping unreadable user document", zap.String("file", name), zap.Error(err))
			continue
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, ErrNotFound
}

// Sessions and turns.

func ensureSession(doc *userDocument, threadID string, specialist models.Specialist, createdAt time.Time) *sessionDocument {
	sess, ok := doc.Sessions[threadID]
	if !ok {
		sess = &sessionDocument{
			ThreadID:     threadID,
			Agent:        specialist,
			CreatedAt:    createdAt,
			LastUpdated:  createdAt,
			AppliedTurns: make(map[string]bool),
		}
		doc.Sessions[threadID] = sess
	}
	if sess.AppliedTurns == nil {
		sess.AppliedTurns = make(map[string]bool)
	}
	return sess
}

// AppendTurn appends both halves of a turn to the thread's message log.
// Replays of the same turn id are no-ops.
func (s *DocumentStore) AppendTurn(ctx context.Context, specialist models.Specialist, turn *models.Turn) error {
	return s.update(turn.UserID, func(doc *userDocument) error {
		sess := ensureSession(doc, turn.ThreadID, specialist, turn.UserTimestamp)
		if sess.AppliedTurns[turn.ID] {
			return nil
		}
		sess.Messages = append(sess.Messages,
			models.ChatMessage{Role: models.RoleUser, Content: turn.UserMessage, Timestamp: turn.UserTimestamp},
			models.ChatMessage{Role: models.RoleAssistant, Content: turn.AssistantMessage, Timestamp: turn.AssistantTimestamp},
		)
		sess.AppliedTurns[turn.ID] = true
		sess.LastUpdated = turn.AssistantTimestamp
		return nil
	})
}

// MergeEntities folds extracted entities into the thread's collection with
// content-identity dedup and returns only the newly added records. The
// per-user lock makes the merge a critical section at user granularity.
func (s *DocumentStore) MergeEntities(ctx context.Context, userID, threadID string, specialist models.Specialist, extracted []models.StoredEntity) ([]models.StoredEntity, error) {
	var added []models.StoredEntity
	err := s.update(userID, func(doc *userDocument) error {
		sess := ensureSession(doc, threadID, specialist, time.Now())
		sess.Entities, added = models.MergeEntities(sess.Entities, extracted)
		return nil
	})
	return added, err
}

func (s *DocumentStore) ListSessions(ctx context.Context, userID string) ([]*models.Thread, error) {
	var threads []*models.Thread
	err := s.view(userID, func(doc *userDocument) error {
		for _, sess := range doc.Sessions {
			threads = append(threads, &models.Thread{
				ID:          sess.ThreadID,
				UserID:      userID,
				Specialist:  sess.Agent,
				CreatedAt:   sess.CreatedAt,
				LastUpdated: sess.LastUpdated,
				TotalTurns:  len(sess.AppliedTurns),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	return threads, nil
}

func (s *DocumentStore) SessionMessages(ctx context.Context, userID, threadID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.view(userID, func(doc *userDocument) error {
		sess, ok := doc.Sessions[threadID]
		if !ok {
			return ErrNotFound
		}
		messages = append(messages, sess.Messages...)
		return nil
	})
	return messages, err
}

func (s *DocumentStore) SessionEntities(ctx context.Context, userID, threadID string) ([]models.StoredEntity, error) {
	var entities []models.StoredEntity
	err := s.view(userID, func(doc *userDocument) error {
		sess, ok := doc.Sessions[threadID]
		if !ok {
			return ErrNotFound
		}
		entities = append(entities, sess.Entities...)
		return nil
	})
	return entities, err
}

// UserEntities returns every stored entity across the user's threads, keyed by
// the owning specialist.
func (s *DocumentStore) UserEntities(ctx context.Context, userID string) (map[models.Specialist][]models.StoredEntity, error) {
	out := make(map[models.Specialist][]models.StoredEntity)
	err := s.view(userID, func(doc *userDocument) error {
		for _, sess := range doc.Sessions {
			out[sess.Agent] = append(out[sess.Agent], sess.Entities...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DocumentStore) DeleteSession(ctx context.Context, userID, threadID string) error {
	return s.update(userID, func(doc *userDocument) error {
		if _, ok := doc.Sessions[threadID]; !ok {
			return ErrNotFound
		}
		delete(doc.Sessions, threadID)
		return nil
	})
}

// Routine plans.

func (s *DocumentStore) SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode routine plan: %w", err)
	}
	return s.update(plan.UserID, func(doc *userDocument) error {
		doc.RoutinePlans[plan.ID] = raw
		return nil
	})
}

func (s *DocumentStore) RoutinePlans(ctx context.Context, userID string) ([]*models.RoutinePlan, error) {
	var plans []*models.RoutinePlan
	err := s.view(userID, func(doc *userDocument) error {
		for id, raw := range doc.RoutinePlans {
			plan := coercePlan(id, userID, raw)
			if plan.Active {
				plans = append(plans, plan)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

// coercePlan repairs old-format plan records instead of raising: unrecoverable
// fields are dropped and replaced with defaults.
func coercePlan(id, userID string, raw json.RawMessage) *models.RoutinePlan {
	var plan models.RoutinePlan
	if err := json.Unmarshal(raw, &plan); err == nil {
		if plan.ID == "" {
			plan.ID = id
		}
		if plan.Version == 0 {
			plan.Version = 1
		}
		return &plan
	}

	plan = models.RoutinePlan{
		ID:      id,
		UserID:  userID,
		Domain:  models.DefaultSpecialist,
		Version: 1,
		Active:  true,
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &plan
	}
	if v, ok := fields["title"].(string); ok {
		plan.Title = v
	}
	if v, ok := fields["domain"].(string); ok {
		plan.Domain = models.ParseSpecialist(v)
	} else if v, ok := fields["plan_type"].(string); ok {
		plan.Domain = models.ParseSpecialist(v)
	}
	if v, ok := fields["version"].(float64); ok && v >= 1 {
		plan.Version = int(v)
	}
	if v, ok := fields["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			plan.CreatedAt = ts
		}
	}
	if items, ok := fields["daily_schedule"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			item := models.ScheduleItem{Time: "00:00", Duration: 30}
			if v, ok := m["time"].(string); ok {
				item.Time = v
			}
			if v, ok := m["activity"].(string); ok {
				item.Activity = v
			}
			if v, ok := m["duration"].(float64); ok {
				item.Duration = int(v)
			}
			if v, ok := m["flexible"].(bool); ok {
				item.Flexible = v
			}
			plan.DailySchedule = append(plan.DailySchedule, item)
		}
	}
	return &plan
}

// Health and progress logs.

func (s *DocumentStore) LogHealthData(ctx context.Context, log *models.HealthLog) error {
	return s.update(log.UserID, func(doc *userDocument) error {
		doc.HealthLogs[log.Date] = log
		return nil
	})
}

func (s *DocumentStore) HealthHistory(ctx context.Context, userID string, days int) ([]*models.HealthLog, error) {
	var logs []*models.HealthLog
	err := s.view(userID, func(doc *userDocument) error {
		for _, log := range doc.HealthLogs {
			logs = append(logs, log)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date > logs[j].Date })
	if days > 0 && len(logs) > days {
		logs = logs[:days]
	}
	return logs, nil
}

func (s *DocumentStore) LogProgress(ctx context.Context, entry *models.ProgressLog) error {
	return s.update(entry.UserID, func(doc *userDocument) error {
		doc.ProgressLogs[entry.PlanID] = append(doc.ProgressLogs[entry.PlanID], entry)
		return nil
	})
}

func (s *DocumentStore) ProgressLogs(ctx context.Context, userID string) ([]*models.ProgressLog, error) {
	var logs []*models.ProgressLog
	err := s.view(userID, func(doc *userDocument) error {
		for _, entries := range doc.ProgressLogs {
			logs = append(logs, entries...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].LoggedAt.Before(logs[j].LoggedAt) })
	return logs, nil
}
