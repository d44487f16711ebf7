package storage

import (
	"context"
	"errors"

	"github.com/xaenox/wellness-coach/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist in the queried store.
	ErrNotFound = errors.New("record not found")
	// ErrBothStoresFailed marks an operation that could not be served by either
	// backend. Callers must fail loudly rather than drop data.
	ErrBothStoresFailed = errors.New("both structured and document store failed")
)

// StructuredStore is the fielded, queryable backend. It is optional: when the
// adapter holds no structured store (or its operations error), the document
// store serves alone.
type StructuredStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeactivateUser(ctx context.Context, id string) error

	LogHealthData(ctx context.Context, log *models.HealthLog) error
	HealthHistory(ctx context.Context, userID string, days int) ([]*models.HealthLog, error)

	CreateSession(ctx context.Context, thread *models.Thread) error
	AppendTurn(ctx context.Context, turn *models.Turn) error
	InsertEntities(ctx context.Context, userID, threadID string, entities []models.StoredEntity) error
	DeleteSession(ctx context.Context, threadID string) error

	SaveRoutinePlan(ctx context.Context, plan *models.RoutinePlan) error
	RoutinePlans(ctx context.Context, userID string) ([]*models.RoutinePlan, error)
	LogProgress(ctx context.Context, entry *models.ProgressLog) error
	ProgressLogs(ctx context.Context, userID string) ([]*models.ProgressLog, error)

	Close() error
}
