package runner

import (
	"log/slog"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithStore configures the StateStore for persistence.
// Saving only happens when a session is also configured (WithSession).
func WithStore(store ports.StateStore) Option {
	return func(r *Runner) {
		r.Store = store
	}
}

// WithSession sets the session record the run is saved under.
func WithSession(session *domain.Session) Option {
	return func(r *Runner) {
		r.Session = session
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithSignalHandling makes SIGINT/SIGTERM stop the run between steps.
func WithSignalHandling() Option {
	return func(r *Runner) {
		r.HandleSignals = true
	}
}
