package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/wellness-coach/internal/models"
)

// ErrInvalidThreadID rejects malformed identifiers at the boundary, before
// they can reach the pipeline.
var ErrInvalidThreadID = errors.New("invalid thread identifier")

const threadTimeLayout = "20060102T150405Z"

// NewThreadID mints an identifier of the form
// <TAG>_<YYYYMMDDTHHMMSSZ>_<8 hex chars>. The specialist tag and creation
// time are recoverable from the id alone, and ids of the same specialist sort
// lexicographically in creation order.
func NewThreadID(specialist models.Specialist, createdAt time.Time) string {
	return fmt.Sprintf("%s_%s_%s",
		specialist,
		createdAt.UTC().Format(threadTimeLayout),
		uuid.New().String()[:8])
}

// ParseThreadID recovers the specialist tag and creation time encoded in id.
func ParseThreadID(id string) (models.Specialist, time.Time, error) {
	parts := strings.Split(id, "_")
	// The specialist tag itself contains underscores (MENTAL_HEALTH), so split
	// from the right: the last two segments are timestamp and suffix.
	if len(parts) < 3 {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}
	suffix := parts[len(parts)-1]
	stamp := parts[len(parts)-2]
	tag := models.Specialist(strings.Join(parts[:len(parts)-2], "_"))

	if len(suffix) != 8 || !tag.Valid() {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}
	createdAt, err := time.Parse(threadTimeLayout, stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, id)
	}
	return tag, createdAt, nil
}
