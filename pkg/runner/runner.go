package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Runner handles the execution loop of an interpreter using the provided IO.
// It uses an IOHandler strategy to abstract the interaction mode (Text vs JSON).
type Runner struct {
	// Handler is the strategy for IO. If nil, a TextHandler on stdin/stdout is used.
	Handler IOHandler

	// Logger is used for internal debug logging.
	// If nil, a no-op logger is used.
	Logger *slog.Logger

	// Store and Session enable durable runs. If either is nil, runs are ephemeral.
	Store   ports.StateStore
	Session *domain.Session

	// HandleSignals cancels the run on SIGINT/SIGTERM.
	HandleSignals bool

	now func() time.Time
}

// NewRunner creates a Runner configured with the given options.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.Logger == nil {
		r.Logger = logging.NewNop()
	}
	return r
}

// Run plays the interpreter until it terminates, the input ends, or ctx is cancelled.
//
// A run that is already parked (restored from a store) presents its current step again
// instead of advancing. Reaching EOF, or typing "exit"/"quit", leaves the run parked and
// returns nil. Cancellation returns the context error; progress up to the last step is saved.
func (r *Runner) Run(ctx context.Context, it *parley.Interpreter) error {
	handler := r.resolveHandler()

	if r.HandleSignals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	step, parked := it.Peek()
	if !parked {
		step = it.Advance(ctx, nil)
	}

	for {
		// Persistence must not be cut short by the signal that is stopping us.
		if err := r.saveState(context.WithoutCancel(ctx), it); err != nil {
			return fmt.Errorf("critical persistence error: %w", err)
		}

		if err := handler.Output(ctx, step); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
		if step.Terminal() {
			return nil
		}

		var input any
		if step.Kind == domain.StepAwaitingChoice {
			text, err := handler.Input(ctx)
			if err != nil {
				if ctx.Err() != nil {
					r.Logger.Debug("runner input cancelled", "err", ctx.Err())
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("input error: %w", err)
			}
			if isQuit(text) {
				if r.persistent() {
					_ = handler.SystemOutput(ctx, fmt.Sprintf("session %s saved", r.Session.ID))
				}
				return nil
			}
			input = text
		} else if err := ctx.Err(); err != nil {
			return err
		}

		step = it.Advance(ctx, input)
	}
}

func isQuit(text string) bool {
	switch strings.ToLower(text) {
	case "exit", "quit":
		return true
	}
	return false
}

func (r *Runner) persistent() bool {
	return r.Store != nil && r.Session != nil
}

func (r *Runner) saveState(ctx context.Context, it *parley.Interpreter) error {
	if !r.persistent() {
		return nil
	}
	r.Session.State = it.State()
	r.Session.UpdatedAt = r.now()
	if err := r.Store.Save(ctx, r.Session); err != nil {
		return err
	}
	r.Logger.Debug("state saved", "session_id", r.Session.ID, "node_id", r.Session.State.CurrentNodeID)
	return nil
}

// resolveHandler ensures a valid IOHandler is set.
func (r *Runner) resolveHandler() IOHandler {
	if r.Handler == nil {
		// Memoize so a second Run reuses the same input pump.
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r.Handler
}
