package models

import "time"

// Message roles as they appear in persisted conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one half of a turn as stored in a thread's history.
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is one ongoing conversation between a user and a single specialist.
// The specialist tag is fixed for the life of the thread.
type Thread struct {
	ID          string     `json:"thread_id"`
	UserID      string     `json:"user_id"`
	Specialist  Specialist `json:"specialist"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
	TotalTurns  int        `json:"total_turns"`
}

// Turn is one user/assistant exchange plus the routing decision made for it.
// ID gives persistence its idempotency key: replaying the same turn must not
// duplicate records.
type Turn struct {
	ID                 string     `json:"turn_id"`
	ThreadID           string     `json:"thread_id"`
	UserID             string     `json:"user_id"`
	UserMessage        string     `json:"user_message"`
	AssistantMessage   string     `json:"assistant_message"`
	UserTimestamp      time.Time  `json:"user_timestamp"`
	AssistantTimestamp time.Time  `json:"assistant_timestamp"`
	Routed             Specialist `json:"routed"`
	Failed             bool       `json:"failed,omitempty"`
}
