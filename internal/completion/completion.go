package completion

import "context"

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Service is the opaque text/structured generation dependency. Both calls are
// blocking and may fail transiently; callers decide whether a failure degrades
// or propagates. Implementations must bound each call with a timeout.
type Service interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	GenerateStructured(ctx context.Context, messages []Message, out any) error
}
