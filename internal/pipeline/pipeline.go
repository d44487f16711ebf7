package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/wellness-coach/internal/agent"
	"github.com/xaenox/wellness-coach/internal/completion"
	"github.com/xaenox/wellness-coach/internal/models"
	"github.com/xaenox/wellness-coach/internal/session"
	"github.com/xaenox/wellness-coach/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrEmptyMessage rejects blank submissions at the boundary.
var ErrEmptyMessage = errors.New("message must not be empty")

// FallbackResponse is what the user sees when the respond or filter stage
// fails irrecoverably. The underlying cause goes to the log only.
const FallbackResponse = "I'm sorry, I couldn't process that message right now. Please try again in a moment."

// TurnRequest is one submitted user message. ThreadID may be empty to start a
// new thread; Specialist is an optional hint that wins over routing for new
// threads.
type TurnRequest struct {
	ThreadID   string
	UserID     string
	Specialist string
	Message    string
}

// TurnResult carries the filtered response and whatever the extractor added.
type TurnResult struct {
	ThreadID string                `json:"thread_id"`
	Routed   models.Specialist     `json:"routed"`
	Response string                `json:"response"`
	Entities []models.StoredEntity `json:"entities_extracted"`
	Failed   bool                  `json:"failed,omitempty"`
}

// Pipeline drives a turn through RECEIVED, ROUTED, the concurrent
// RESPONDING/EXTRACTING pair, FILTERED and PERSISTED. All collaborators are
// injected so tests can stand in doubles for the completion service and the
// stores.
type Pipeline struct {
	router    *agent.Router
	responder *agent.Responder
	safety    *agent.SafetyFilter
	extractor *agent.Extractor
	store     *storage.Hybrid
	logger    *zap.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

func New(router *agent.Router, responder *agent.Responder, safety *agent.SafetyFilter, extractor *agent.Extractor, store *storage.Hybrid, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		router:    router,
		responder: responder,
		safety:    safety,
		extractor: extractor,
		store:     store,
		logger:    logger,
		threads:   make(map[string]*sync.Mutex),
	}
}

// threadLock serializes turns per thread. Turns on different threads run
// fully independently.
func (p *Pipeline) threadLock(threadID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		p.threads[threadID] = lock
	}
	return lock
}

// Submit processes one user turn end to end and returns the filtered
// response. Routing and extraction failures degrade; respond/filter failures
// mark the turn failed and substitute the generic fallback message.
func (p *Pipeline) Submit(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if req.UserID == "" {
		return nil, errors.New("user id must not be empty")
	}

	receivedAt := time.Now()

	// Resolve the owning specialist. An existing thread id is authoritative:
	// the tag is immutable and recoverable from the id alone even when state
	// lookup fails. For new threads the caller's hint wins, otherwise the
	// router decides before the thread id is minted.
	var specialist, preRouted models.Specialist
	threadID := req.ThreadID
	switch {
	case threadID != "":
		tag, _, err := session.ParseThreadID(threadID)
		if err != nil {
			return nil, err
		}
		specialist = tag
	case req.Specialist != "":
		specialist = models.ParseSpecialist(req.Specialist)
		threadID = session.NewThreadID(specialist, receivedAt)
	default:
		preRouted = p.router.Classify(ctx, req.Message)
		specialist = preRouted
		threadID = session.NewThreadID(specialist, receivedAt)
	}

	lock := p.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	user, err := p.store.GetUser(ctx, req.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	history, err := p.store.ThreadMessages(ctx, req.UserID, threadID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load thread history: %w", err)
	}

	var (
		routed     models.Specialist
		response   string
		respondErr error
		extracted  []models.StoredEntity
		extractErr error
	)

	// RESPONDING and EXTRACTING run concurrently against the same input. The
	// response path chains routing, the responder and the safety filter; the
	// extraction path is independent and its failure never cancels the group.
	g := new(errgroup.Group)
	g.Go(func() error {
		if preRouted != "" {
			routed = preRouted
		} else {
			routed = p.router.Classify(ctx, req.Message)
		}
		draft, err := p.responder.Respond(ctx, toCompletionMessages(history), user, specialist, req.Message)
		if err != nil {
			respondErr = fmt.Errorf("respond: %w", err)
			return nil
		}
		safe, err := p.safety.Filter(ctx, draft)
		if err != nil {
			respondErr = fmt.Errorf("filter: %w", err)
			return nil
		}
		response = safe
		return nil
	})
	g.Go(func() error {
		entities, err := p.extractor.Extract(ctx, req.Message, specialist, receivedAt)
		if err != nil {
			extractErr = err
			return nil
		}
		extracted = entities
		return nil
	})
	g.Wait()

	result := &TurnResult{ThreadID: threadID, Routed: routed}

	if extractErr != nil {
		// Absorbed: the turn proceeds without entity data.
		p.logger.Error("Entity extraction failed",
			zap.Error(extractErr),
			zap.String("thread_id", threadID),
			zap.String("user_id", req.UserID))
	} else if len(extracted) > 0 {
		added, err := p.store.MergeEntities(ctx, req.UserID, threadID, specialist, extracted)
		if err != nil {
			return nil, fmt.Errorf("persist entities: %w", err)
		}
		result.Entities = added
	}

	if respondErr != nil {
		p.logger.Error("Turn failed",
			zap.Error(respondErr),
			zap.String("thread_id", threadID),
			zap.String("user_id", req.UserID))
		result.Response = FallbackResponse
		result.Failed = true
	} else {
		result.Response = response
	}

	turn := &models.Turn{
		ID:                 uuid.New().String(),
		ThreadID:           threadID,
		UserID:             req.UserID,
		UserMessage:        req.Message,
		AssistantMessage:   result.Response,
		UserTimestamp:      receivedAt,
		AssistantTimestamp: time.Now(),
		Routed:             routed,
		Failed:             result.Failed,
	}
	if err := p.store.AppendTurn(ctx, specialist, turn); err != nil {
		// The durable channel rejected the write: fail loudly rather than
		// silently dropping the turn.
		return nil, fmt.Errorf("persist turn: %w", err)
	}

	return result, nil
}

func toCompletionMessages(history []models.ChatMessage) []completion.Message {
	out := make([]completion.Message, 0, len(history))
	for _, msg := range history {
		role := completion.RoleUser
		if msg.Role == models.RoleAssistant {
			role = completion.RoleAssistant
		}
		out = append(out, completion.Message{Role: role, Content: msg.Content})
	}
	return out
}
