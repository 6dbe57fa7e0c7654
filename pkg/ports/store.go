package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// StateStore defines the interface for persisting dialogue sessions.
// This enables "Stop & Resume" play: a run can be suspended in one process and
// continued in another.
type StateStore interface {
	// Save persists the session under session.ID, replacing any previous version.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes a session. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
