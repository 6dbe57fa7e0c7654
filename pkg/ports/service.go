package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// DialogueService is the session-level API consumed by presentation adapters.
// Every method that moves a run returns the updated session and the step it produced.
type DialogueService interface {
	// Start creates a session for the named graph and advances it to its first suspension point.
	Start(ctx context.Context, graph string, vars domain.Variables) (*domain.Session, domain.StepResult, error)

	// Advance resumes a session with the player's input.
	Advance(ctx context.Context, sessionID string, input any) (*domain.Session, domain.StepResult, error)

	// Get returns a session and the step it is currently parked at, without moving it.
	Get(ctx context.Context, sessionID string) (*domain.Session, domain.StepResult, error)

	// Reset restarts a session from its seed variables.
	Reset(ctx context.Context, sessionID string) (*domain.Session, domain.StepResult, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns all session IDs.
	List(ctx context.Context) ([]string, error)
}
