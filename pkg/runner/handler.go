package runner

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// IOHandler defines the strategy for interacting with the player.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents a step: a line, a choice with its options, or the end of the run.
	Output(ctx context.Context, step domain.StepResult) error

	// Input reads the player's answer to a choice.
	// io.EOF means the player is gone; the run stays parked.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (e.g. "session saved").
	// This is distinct from dialogue content.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms line content before it is printed.
// This allows for TUI rendering (markdown to ANSI) without coupling the runner to it.
type ContentRenderer func(string) (string, error)
