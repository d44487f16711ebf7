package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/xaenox/wellness-coach/internal/models"
)

// MemoryStore is an in-memory StructuredStore for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	health   map[string][]*models.HealthLog
	sessions map[string]*models.Thread
	turns    map[string]*models.Turn
	entities map[string][]models.StoredEntity // keyed by threadID
	plans    map[string]*models.RoutinePlan
	progress map[string][]*models.ProgressLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*models.User),
		health:   make(map[string][]*models.HealthLog),
		sessions: make(map[string]*models.Thread),
		turns:    make(map[string]*models.Turn),
		entities: make(map[string][]models.StoredEntity),
		plans:    make(map[string]*models.RoutinePlan),
		progress: make(map[string][]*models.ProgressLog),
	}
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.ID]; !exists {
		copied := *user
		s.users[user.ID] = &copied
	}
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, exists := s.users[id]; exists {
		copied := *user
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *MemoryStore) DeactivateUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.users[id]
	if !exists {
		return ErrNotFound
	}
	user.Active = false
	return nil
}

func (s *MemoryStore) LogHealthData(ctx context.Context, log *models.HealthLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[log.UserID] = append(s.health[log.UserID], log)
	return nil
}

func (s *MemoryStore) HealthHistory(ctx context.Context, userID string, days int) ([]*models.HealthLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := append([]*models.HealthLog(nil), s.health[userID]...)
	sort.Slice(logs, func(i, j int) bool { return logs[i].Date > logs[j].Date })
	if days > 0 && len(logs) > days {
		logs = logs[:days]
	}
	return logs, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[thread.ID]; !exists {
		copied := *thread
		s.sessions[thread.ID] = &copied
	}
	return nil
}

func (s *MemoryStore) AppendTurn(ctx context.Context, turn *models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.turns[turn.ID]; exists {
		return nil
	}
	copied := *turn
	s.turns[turn.ID] = &copied
	if sess, ok := s.sessions[turn.ThreadID]; ok {
		sess.TotalTurns++
		sess.LastUpdated = turn.AssistantTimestamp
	}
	return nil
}

func (s *MemoryStore) InsertEntities(ctx context.Context, userID, threadID string, entities []models.StoredEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[threadID], _ = models.MergeEntities(s.entities[threadID], entities)
	return nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, threadID)
	delete(s.entities, threadID)
	for id, turn := range s.turns {
		if turn.ThreadID == threadID {
			delete(s.turns, id)
		}
	}
	return nil
}

func (s *MemoryStore) SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *plan
	s.plans[plan.ID] = &copied
	return nil
}

func (s *MemoryStore) RoutinePlans(ctx context.Context, userID string) ([]*models.RoutinePlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var plans []*models.RoutinePlan
	for _, plan := range s.plans {
		if plan.UserID == userID && plan.Active {
			copied := *plan
			plans = append(plans, &copied)
		}
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].CreatedAt.After(plans[j].CreatedAt) })
	return plans, nil
}

func (s *MemoryStore) LogProgress(ctx context.Context, entry *models.ProgressLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[entry.UserID] = append(s.progress[entry.UserID], entry)
	return nil
}

func (s *MemoryStore) ProgressLogs(ctx context.Context, userID string) ([]*models.ProgressLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*models.ProgressLog(nil), s.progress[userID]...), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
