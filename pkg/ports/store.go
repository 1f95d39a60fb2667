package ports

import (
	"context"

	"github.com/aretw0/dialogtree/pkg/domain"
	"github.com/aretw0/dialogtree/pkg/history"
)

// StateStore defines the interface for persisting session state.
// This allows a session to be resumed by another process or replica.
type StateStore interface {
	// Save persists the state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.State) error

	// Load retrieves the state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.State, error)

	// Delete removes the state and history for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of stored sessions.
	List(ctx context.Context) ([]string, error)
}

// HistoryStore persists conversation history trees in their serialized form.
type HistoryStore interface {
	SaveHistory(ctx context.Context, sessionID string, tree *history.Tree) error

	// LoadHistory returns domain.ErrSessionNotFound when nothing was saved,
	// and a *domain.FormatError when the stored document is malformed.
	LoadHistory(ctx context.Context, sessionID string) (*history.Tree, error)
}

// SessionStore is implemented by adapters that persist both halves of a session.
type SessionStore interface {
	StateStore
	HistoryStore
}
