package parley

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/file"
	loamAdapter "github.com/aretw0/parley/pkg/adapters/loam"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Version is the library and CLI version.
const Version = "0.4.0"

// Interpreter is the dialogue state machine. See New and Engine.Start.
type Interpreter = runtime.Interpreter

// Chooser supplies choice indices to Interpreter.Steps.
type Chooser = runtime.Chooser

// ConditionEvaluator decides whether a condition holds.
type ConditionEvaluator = runtime.ConditionEvaluator

// EvaluateCondition is the default condition semantics.
func EvaluateCondition(cond *domain.Condition, vars domain.Variables) bool {
	return runtime.EvaluateCondition(cond, vars)
}

// Engine is the high-level entry point for the Parley library.
// It resolves graphs through a GraphLoader and builds interpreters configured
// with the engine-wide options.
type Engine struct {
	loader    ports.GraphLoader
	evaluator runtime.ConditionEvaluator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	stepLimit int
	strict    bool
	Name      string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls are merged.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLoader injects a custom GraphLoader, bypassing path-based detection.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithConditionEvaluator sets a custom condition evaluator.
func WithConditionEvaluator(eval ConditionEvaluator) Option {
	return func(e *Engine) {
		e.evaluator = eval
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStepLimit bounds consecutive silent transitions per Advance (0 = unlimited).
func WithStepLimit(n int) Option {
	return func(e *Engine) {
		e.stepLimit = n
	}
}

// WithStrictValidation rejects graphs with authoring errors when an interpreter is built.
func WithStrictValidation() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// New initializes an Engine over the graphs found at path:
//
//   - a *.json, *.yaml or *.yml file is a single graph;
//   - a directory holding Markdown documents is a Loam repository (one node per document);
//   - any other directory serves each graph file inside it.
//
// If WithLoader is provided, path is only a descriptive label and may be empty.
func New(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.loader == nil {
		if path == "" {
			return nil, fmt.Errorf("path is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = strings.TrimSuffix(filepath.Base(absPath), filepath.Ext(absPath))

		eng.loader, err = detectLoader(absPath, eng.Name)
		if err != nil {
			return nil, err
		}
	} else if path != "" {
		eng.Name = filepath.Base(path)
	}

	// Never pass nil to the runtime, which would overwrite its own default.
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("source", eng.Name)
	}
	return eng, nil
}

func detectLoader(absPath, name string) (ports.GraphLoader, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open graph source: %w", err)
	}

	if !info.IsDir() {
		if !file.IsGraphFile(absPath) {
			return nil, fmt.Errorf("unsupported graph file %s (want .json, .yaml or .yml)", filepath.Base(absPath))
		}
		return file.NewSingleFileLoader(absPath), nil
	}

	markdown, err := filepath.Glob(filepath.Join(absPath, "*.md"))
	if err != nil {
		return nil, err
	}
	if len(markdown) == 0 {
		return file.NewLoader(absPath), nil
	}

	// ReadOnly keeps Loam from creating its dev-mode sandbox: graphs are never written.
	// Strict mode makes numbers consistent (json.Number) across Markdown and JSON documents.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	typedRepo := loam.NewTypedRepository[loamAdapter.NodeMetadata](repo)
	return loamAdapter.New(typedRepo, loamAdapter.WithName(name)), nil
}

// Loader returns the underlying GraphLoader.
func (e *Engine) Loader() ports.GraphLoader {
	return e.loader
}

// Graphs lists the available graph names.
func (e *Engine) Graphs(ctx context.Context) ([]string, error) {
	return e.loader.List(ctx)
}

// Graph resolves a graph by name. An empty name selects the only graph
// when the source holds exactly one.
func (e *Engine) Graph(ctx context.Context, name string) (*domain.Graph, error) {
	if name == "" {
		names, err := e.loader.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(names) != 1 {
			return nil, fmt.Errorf("graph name required: source has %d graphs", len(names))
		}
		name = names[0]
	}
	return e.loader.Load(ctx, name)
}

// InterpreterOptions returns the runtime options derived from the engine configuration,
// for components that build interpreters themselves (e.g. session.Manager).
func (e *Engine) InterpreterOptions() []runtime.Option {
	opts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithConditionEvaluator(e.evaluator),
		runtime.WithStepLimit(e.stepLimit),
	}
	if e.strict {
		opts = append(opts, runtime.WithStrictValidation())
	}
	return opts
}

// Start builds a fresh interpreter for the named graph. The first Advance runs it.
func (e *Engine) Start(ctx context.Context, name string, vars domain.Variables) (*Interpreter, error) {
	g, err := e.Graph(ctx, name)
	if err != nil {
		return nil, err
	}
	return runtime.New(g, vars, e.InterpreterOptions()...)
}

// Restore rebuilds an interpreter from a saved snapshot of the named graph.
func (e *Engine) Restore(ctx context.Context, name string, snapshot *domain.State, seed domain.Variables) (*Interpreter, error) {
	g, err := e.Graph(ctx, name)
	if err != nil {
		return nil, err
	}
	return runtime.Restore(g, snapshot, seed, e.InterpreterOptions()...)
}
