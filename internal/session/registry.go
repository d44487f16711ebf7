package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
)

// Registry exposes thread-level operations over the store adapter: listing a
// user's threads, optionally filtered by specialist, reading history, and
// deleting a thread with its data.
type Registry struct {
	store  *storage.Hybrid
	logger *zap.Logger
}

func NewRegistry(store *storage.Hybrid, logger *zap.Logger) *Registry {
	return &Registry{store: store, logger: logger}
}

// ListThreads returns the user's threads sorted by creation order. An empty
// specialist filter returns everything.
func (r *Registry) ListThreads(ctx context.Context, userID string, specialist models.Specialist) ([]*models.Thread, error) {
	threads, err := r.store.ListThreads(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	filtered := threads[:0]
	for _, thread := range threads {
		if specialist != "" && thread.Specialist != specialist {
			continue
		}
		// Repair the tag from the identifier when the stored record lost it.
		if thread.Specialist == "" {
			if tag, createdAt, err := ParseThreadID(thread.ID); err == nil {
				thread.Specialist = tag
				if thread.CreatedAt.IsZero() {
					thread.CreatedAt = createdAt
				}
			}
		}
		filtered = append(filtered, thread)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.Before(filtered[j].CreatedAt) })
	return filtered, nil
}

func (r *Registry) History(ctx context.Context, userID, threadID string) ([]models.ChatMessage, error) {
	if _, _, err := ParseThreadID(threadID); err != nil {
		return nil, err
	}
	return r.store.ThreadMessages(ctx, userID, threadID)
}

// DeleteThread removes the thread, its messages and its entities from both
// stores.
func (r *Registry) DeleteThread(ctx context.Context, userID, threadID string) error {
	if _, _, err := ParseThreadID(threadID); err != nil {
		return err
	}
	if err := r.store.DeleteThread(ctx, userID, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	r.logger.Info("Thread deleted",
		zap.String("thread_id", threadID),
		zap.String("user_id", userID))
	return nil
}
