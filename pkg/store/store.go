package store

import (
	"context"
	"errors"

	"github.com/mpatwa/resolute/pkg/domain"
)

// ErrNotFound is returned when a thread or message does not exist.
var ErrNotFound = errors.New("not found")

// ThreadStore manages the persistence of conversation threads. Every appended
// message is a durable checkpoint: a crash mid-conversation loses at most the
// in-flight turn.
type ThreadStore interface {
	// CreateThread persists a new thread. The ID field must be set by the caller.
	CreateThread(ctx context.Context, th *domain.Thread) error

	// GetThread retrieves a thread by its unique ID.
	// Returns ErrNotFound if the thread does not exist.
	GetThread(ctx context.Context, id string) (*domain.Thread, error)

	// ListThreads returns all threads, ordered by creation time descending.
	ListThreads(ctx context.Context) ([]domain.Thread, error)

	// DeleteThread removes a thread and its messages.
	DeleteThread(ctx context.Context, id string) error

	// AppendMessage adds a message to the end of the thread's history.
	// The message's ID and Timestamp should be set by the caller.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// GetMessages returns the thread's retained messages in insertion order.
	GetMessages(ctx context.Context, threadID string) ([]domain.Message, error)

	// SetSummary replaces the thread's rolling summary.
	SetSummary(ctx context.Context, threadID, summary string) error

	// TruncateMessages discards all but the most recent keep messages.
	TruncateMessages(ctx context.Context, threadID string, keep int) error

	// Subscribe returns a channel that emits thread IDs whenever new messages
	// are appended to any thread. Used by the chat websocket to push updates.
	Subscribe() <-chan string

	// Unsubscribe removes a channel returned by Subscribe and closes it.
	Unsubscribe(ch <-chan string)
}
