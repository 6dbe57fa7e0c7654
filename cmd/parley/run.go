package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/presentation/tui"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run <graph-file|dir>",
	Short: "Play a dialogue graph in the terminal",
	Long: `Plays a dialogue graph interactively. Lines are printed as Markdown and choices
are answered by number. Type 'quit' to leave; with --session the run is saved and
can be resumed later with the same session id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDialogue(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("graph", "", "Graph to play when the source holds several")
	runCmd.Flags().Bool("json", false, "Speak NDJSON on stdin/stdout instead of text")
	runCmd.Flags().StringArray("var", nil, "Initial variable as name=value (repeatable)")
	runCmd.Flags().String("session", "", "Save progress under this session id and resume it if present")
	runCmd.Flags().Int("step-limit", 1000, "Maximum silent transitions per advance (0 disables)")
	runCmd.Flags().Bool("no-banner", false, "Do not print the banner")
}

func runDialogue(cmd *cobra.Command, source string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	name, _ := cmd.Flags().GetString("graph")
	jsonMode, _ := cmd.Flags().GetBool("json")
	pairs, _ := cmd.Flags().GetStringArray("var")
	sessionID, _ := cmd.Flags().GetString("session")
	stepLimit, _ := cmd.Flags().GetInt("step-limit")
	noBanner, _ := cmd.Flags().GetBool("no-banner")

	vars, err := parseVars(pairs)
	if err != nil {
		return err
	}

	eng, err := parley.New(source,
		parley.WithLogger(logger),
		parley.WithStepLimit(stepLimit),
	)
	if err != nil {
		return fmt.Errorf("error initializing parley: %w", err)
	}

	var handler runner.IOHandler
	if jsonMode {
		handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
	} else {
		handler = runner.NewTextHandler(os.Stdin, os.Stdout,
			runner.WithTextHandlerRenderer(tui.NewRenderer()))
		if !noBanner && term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout, parley.Version)
		}
	}

	opts := []runner.Option{
		runner.WithInputHandler(handler),
		runner.WithLogger(logger),
		runner.WithSignalHandling(),
	}

	var it *parley.Interpreter
	if sessionID == "" {
		it, err = eng.Start(ctx, name, vars)
		if err != nil {
			return err
		}
	} else {
		// A named session must outlive the process.
		if cfg.Store == config.StoreMemory {
			cfg.Store = config.StoreFile
		}
		backend, err := cfg.OpenStore(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		var sess *domain.Session
		it, sess, err = openSession(ctx, eng, backend.Store, sessionID, name, vars)
		if err != nil {
			return err
		}
		logger.Info("session opened", "session_id", sess.ID, "graph", sess.Graph, "store", cfg.Store)
		opts = append(opts, runner.WithStore(backend.Store), runner.WithSession(sess))
	}

	if err := runner.NewRunner(opts...).Run(ctx, it); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// sessionStore is the slice of ports.StateStore the run command needs.
type sessionStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Session, error)
}

// openSession resumes sessionID when it exists, otherwise starts it fresh.
func openSession(ctx context.Context, eng *parley.Engine, store sessionStore, sessionID, name string, vars domain.Variables) (*parley.Interpreter, *domain.Session, error) {
	sess, err := store.Load(ctx, sessionID)
	switch {
	case err == nil:
		if name != "" && name != sess.Graph {
			return nil, nil, fmt.Errorf("session %s plays graph %q, not %q", sessionID, sess.Graph, name)
		}
		it, err := eng.Restore(ctx, sess.Graph, sess.State, sess.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to restore session %s: %w", sessionID, err)
		}
		return it, sess, nil

	case errors.Is(err, domain.ErrSessionNotFound):
		graph, err := graphName(ctx, eng, name)
		if err != nil {
			return nil, nil, err
		}
		it, err := eng.Start(ctx, graph, vars)
		if err != nil {
			return nil, nil, err
		}
		now := time.Now()
		sess = &domain.Session{
			ID:        sessionID,
			Graph:     graph,
			Seed:      vars,
			State:     it.State(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		return it, sess, nil

	default:
		return nil, nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
}
