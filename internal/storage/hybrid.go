package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaenox/wellness-coach/internal/models"
	"go.uber.org/zap"
)

// Hybrid is the store adapter over the two backends. The write policy is
// document store first (the durable channel), then best-effort structured
// store. Reads of account/profile/health/plan data go structured-first with a
// document fallback; session and entity reads always come from the document
// store, which is the channel of record for conversational data.
//
// The structured store may be nil, in which case every operation runs in pure
// document mode.
type Hybrid struct {
	structured StructuredStore
	docs       *DocumentStore
	logger     *zap.Logger
}

func NewHybrid(structured StructuredStore, docs *DocumentStore, logger *zap.Logger) *Hybrid {
	return &Hybrid{structured: structured, docs: docs, logger: logger}
}

// mirror logs a failed best-effort structured write. Data is already safe in
// the document store at that point.
func (h *Hybrid) mirror(op string, err error) {
	if err != nil {
		h.logger.Warn("Structured store write failed, document store holds the record",
			zap.String("op", op), zap.Error(err))
	}
}

func (h *Hybrid) CreateUser(ctx context.Context, user *models.User) error {
	if err := h.docs.SaveProfile(ctx, user); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("create_user", h.structured.CreateUser(ctx, user))
	}
	return nil
}

func (h *Hybrid) GetUser(ctx context.Context, id string) (*models.User, error) {
	if h.structured != nil {
		user, err := h.structured.GetUser(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrNotFound) {
			h.logger.Warn("Structured store read failed, falling back to document store",
				zap.String("op", "get_user"), zap.Error(err))
			user, docErr := h.docs.GetProfile(ctx, id)
			if docErr != nil && !errors.Is(docErr, ErrNotFound) {
				return nil, fmt.Errorf("%w: %v; %v", ErrBothStoresFailed, err, docErr)
			}
			return user, docErr
		}
	}
	return h.docs.GetProfile(ctx, id)
}

func (h *Hybrid) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if h.structured != nil {
		user, err := h.structured.GetUserByEmail(ctx, email)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrNotFound) {
			h.logger.Warn("Structured store read failed, falling back to document store",
				zap.String("op", "get_user_by_email"), zap.Error(err))
			user, docErr := h.docs.FindByEmail(ctx, email)
			if docErr != nil && !errors.Is(docErr, ErrNotFound) {
				return nil, fmt.Errorf("%w: %v; %v", ErrBothStoresFailed, err, docErr)
			}
			return user, docErr
		}
	}
	return h.docs.FindByEmail(ctx, email)
}

func (h *Hybrid) UpdateUser(ctx context.Context, user *models.User) error {
	if err := h.docs.SaveProfile(ctx, user); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("update_user", h.structured.UpdateUser(ctx, user))
	}
	return nil
}

func (h *Hybrid) DeactivateUser(ctx context.Context, id string) error {
	user, err := h.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.Active = false
	return h.UpdateUser(ctx, user)
}

func (h *Hybrid) LogHealthData(ctx context.Context, log *models.HealthLog) error {
	if err := h.docs.LogHealthData(ctx, log); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("log_health_data", h.structured.LogHealthData(ctx, log))
	}
	return nil
}

func (h *Hybrid) HealthHistory(ctx context.Context, userID string, days int) ([]*models.HealthLog, error) {
	if h.structured != nil {
		logs, err := h.structured.HealthHistory(ctx, userID, days)
		if err == nil {
			return logs, nil
		}
		h.logger.Warn("Structured store read failed, falling back to document store",
			zap.String("op", "health_history"), zap.Error(err))
	}
	return h.docs.HealthHistory(ctx, userID, days)
}

// AppendTurn persists a completed turn: durable append to the document store,
// best-effort mirror into the sessions/messages tables.
func (h *Hybrid) AppendTurn(ctx context.Context, specialist models.Specialist, turn *models.Turn) error {
	if err := h.docs.AppendTurn(ctx, specialist, turn); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("create_session", h.structured.CreateSession(ctx, &models.Thread{
			ID:          turn.ThreadID,
			UserID:      turn.UserID,
			Specialist:  specialist,
			CreatedAt:   turn.UserTimestamp,
			LastUpdated: turn.AssistantTimestamp,
		}))
		h.mirror("append_turn", h.structured.AppendTurn(ctx, turn))
	}
	return nil
}

// MergeEntities merges into the document store under the per-user lock and
// mirrors only the newly added records.
func (h *Hybrid) MergeEntities(ctx context.Context, userID, threadID string, specialist models.Specialist, extracted []models.StoredEntity) ([]models.StoredEntity, error) {
	added, err := h.docs.MergeEntities(ctx, userID, threadID, specialist, extracted)
	if err != nil {
		return nil, err
	}
	if h.structured != nil && len(added) > 0 {
		h.mirror("insert_entities", h.structured.InsertEntities(ctx, userID, threadID, added))
	}
	return added, nil
}

func (h *Hybrid) ListThreads(ctx context.Context, userID string) ([]*models.Thread, error) {
	return h.docs.ListSessions(ctx, userID)
}

func (h *Hybrid) ThreadMessages(ctx context.Context, userID, threadID string) ([]models.ChatMessage, error) {
	return h.docs.SessionMessages(ctx, userID, threadID)
}

func (h *Hybrid) ThreadEntities(ctx context.Context, userID, threadID string) ([]models.StoredEntity, error) {
	return h.docs.SessionEntities(ctx, userID, threadID)
}

func (h *Hybrid) UserEntities(ctx context.Context, userID string) (map[models.Specialist][]models.StoredEntity, error) {
	return h.docs.UserEntities(ctx, userID)
}

// DeleteThread removes the thread with its messages and entities from both
// stores.
func (h *Hybrid) DeleteThread(ctx context.Context, userID, threadID string) error {
	if err := h.docs.DeleteSession(ctx, userID, threadID); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("delete_session", h.structured.DeleteSession(ctx, threadID))
	}
	return nil
}

func (h *Hybrid) SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error {
	if err := h.docs.SaveRoutinePlan(ctx, plan); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("save_routine_plan", h.structured.SaveRoutinePlan(ctx, plan))
	}
	return nil
}

func (h *Hybrid) RoutinePlans(ctx context.Context, userID string) ([]*models.RoutinePlan, error) {
	if h.structured != nil {
		plans, err := h.structured.RoutinePlans(ctx, userID)
		if err == nil {
			return plans, nil
		}
		h.logger.Warn("Structured store read failed, falling back to document store",
			zap.String("op", "routine_plans"), zap.Error(err))
	}
	return h.docs.RoutinePlans(ctx, userID)
}

// LatestPlanVersion reports the highest version stored for the (user, domain)
// pair. Concurrent regenerations resolve last-writer-wins.
func (h *Hybrid) LatestPlanVersion(ctx context.Context, userID string, domain models.Specialist) (int, error) {
	plans, err := h.RoutinePlans(ctx, userID)
	if err != nil {
		return 0, err
	}
	latest := 0
	for _, plan := range plans {
		if plan.Domain == domain && plan.Version > latest {
			latest = plan.Version
		}
	}
	return latest, nil
}

func (h *Hybrid) LogProgress(ctx context.Context, entry *models.ProgressLog) error {
	if err := h.docs.LogProgress(ctx, entry); err != nil {
		return err
	}
	if h.structured != nil {
		h.mirror("log_progress", h.structured.LogProgress(ctx, entry))
	}
	return nil
}

func (h *Hybrid) ProgressLogs(ctx context.Context, userID string) ([]*models.ProgressLog, error) {
	if h.structured != nil {
		logs, err := h.structured.ProgressLogs(ctx, userID)
		if err == nil {
			return logs, nil
		}
		h.logger.Warn("Structured store read failed, falling back to document store",
			zap.String("op", "progress_logs"), zap.Error(err))
	}
	return h.docs.ProgressLogs(ctx, userID)
}

func (h *Hybrid) Close() error {
	if h.structured != nil {
		return h.structured.Close()
	}
	return nil
}
