package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/validate"
)

// ConditionEvaluator decides whether a condition holds against the current variables.
// A nil condition must evaluate to true.
type ConditionEvaluator func(cond *domain.Condition, vars domain.Variables) bool

// Interpreter is the core dialogue state machine.
// It owns its State exclusively and is not safe for concurrent use;
// the Graph it walks is read-only and may be shared.
type Interpreter struct {
	graph     *domain.Graph
	index     map[string]*domain.Node
	seed      domain.Variables
	state     *domain.State
	evaluator ConditionEvaluator
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	stepLimit int
	strict    bool
	now       func() time.Time
}

// Option configures the Interpreter.
type Option func(*Interpreter)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interpreter) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(i *Interpreter) {
		i.hooks = i.hooks.Merge(hooks)
	}
}

// WithConditionEvaluator replaces the default condition evaluator.
func WithConditionEvaluator(eval ConditionEvaluator) Option {
	return func(i *Interpreter) {
		if eval != nil {
			i.evaluator = eval
		}
	}
}

// WithStepLimit bounds the number of consecutive silent transitions within one Advance.
// Exceeding it terminates the run. Zero (the default) means unlimited.
func WithStepLimit(n int) Option {
	return func(i *Interpreter) {
		i.stepLimit = n
	}
}

// WithStrictValidation makes construction fail on authoring errors in the graph.
// Run-time semantics are unchanged.
func WithStrictValidation() Option {
	return func(i *Interpreter) {
		i.strict = true
	}
}

// New creates an interpreter positioned at the graph's start node.
// The initial variables are copied; later changes by the caller are not observed.
// An error is only possible with WithStrictValidation.
func New(graph *domain.Graph, vars domain.Variables, opts ...Option) (*Interpreter, error) {
	if graph == nil {
		graph = &domain.Graph{}
	}
	i := &Interpreter{
		graph:     graph,
		index:     graph.Index(),
		seed:      vars.Clone(),
		evaluator: EvaluateCondition,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	if i.strict {
		if err := validate.Graph(graph, validate.WithVariables(i.seed)); err != nil {
			return nil, fmt.Errorf("invalid graph: %w", err)
		}
	}

	i.state = domain.NewState(graph.StartNodeID, i.seed)
	return i, nil
}

// Restore rebuilds an interpreter from a snapshot, typically one loaded from a session store.
// seed is what Reset goes back to; nil means the snapshot's own variables.
func Restore(graph *domain.Graph, snapshot *domain.State, seed domain.Variables, opts ...Option) (*Interpreter, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("cannot restore from nil state")
	}
	if seed == nil {
		seed = snapshot.Variables
	}
	i, err := New(graph, seed, opts...)
	if err != nil {
		return nil, err
	}
	i.state = snapshot.Clone()
	if i.state.Variables == nil {
		i.state.Variables = domain.Variables{}
	}
	if i.state.History == nil {
		i.state.History = []string{}
	}
	return i, nil
}

// Graph returns the graph this interpreter walks.
func (i *Interpreter) Graph() *domain.Graph {
	return i.graph
}

// CurrentNode returns a copy of the node matching CurrentNodeID,
// or nil if the run has terminated or the id is not in the graph.
func (i *Interpreter) CurrentNode() *domain.Node {
	if i.state.Terminated() {
		return nil
	}
	node, ok := i.index[i.state.CurrentNodeID]
	if !ok {
		return nil
	}
	cp := node.Clone()
	return &cp
}

// Variables returns a copy of the variable mapping.
func (i *Interpreter) Variables() domain.Variables {
	return i.state.Variables.Clone()
}

// Variable returns a single value. A missing variable is not an error.
func (i *Interpreter) Variable(name string) (any, bool) {
	v, ok := i.state.Variables[name]
	return v, ok
}

// SetVariable overwrites a variable unconditionally.
func (i *Interpreter) SetVariable(name string, value any) {
	i.assign(context.Background(), "", name, value)
}

// State returns a deep copy of the run state.
func (i *Interpreter) State() *domain.State {
	return i.state.Clone()
}

// Terminated reports whether the run has ended.
func (i *Interpreter) Terminated() bool {
	return i.state.Terminated()
}

// Reset starts a new playthrough from the start node and the construction seed.
func (i *Interpreter) Reset() {
	i.state = domain.NewState(i.graph.StartNodeID, i.seed)
}

// AvailableChoices returns the indices of the node's choices whose condition currently holds.
func (i *Interpreter) AvailableChoices(node *domain.Node) []int {
	if node == nil {
		return nil
	}
	var available []int
	for idx := range node.Choices {
		if i.evaluator(node.Choices[idx].Condition, i.state.Variables) {
			available = append(available, idx)
		}
	}
	return available
}

func (i *Interpreter) choiceOptions(node *domain.Node) []domain.ChoiceOption {
	opts := make([]domain.ChoiceOption, len(node.Choices))
	for idx, ch := range node.Choices {
		opts[idx] = domain.ChoiceOption{
			Index:     idx,
			Text:      ch.Text,
			Available: i.evaluator(ch.Condition, i.state.Variables),
		}
	}
	return opts
}

func (i *Interpreter) assign(ctx context.Context, nodeID, name string, value any) {
	prev := i.state.Variables[name]
	i.state.Variables[name] = value
	if i.hooks.OnVariableSet != nil {
		i.hooks.OnVariableSet(ctx, &domain.VariableEvent{
			EventBase: domain.EventBase{Timestamp: i.now(), Type: domain.EventVariableSet},
			NodeID:    nodeID,
			Name:      name,
			Previous:  prev,
			Value:     value,
		})
	}
}
