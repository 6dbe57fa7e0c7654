package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeVisit   EventType = "node_visit"
	EventSuspend     EventType = "suspend"
	EventTerminate   EventType = "terminate"
	EventVariableSet EventType = "variable_set"
)

// TerminationReason explains why a run reached the terminal state.
type TerminationReason string

const (
	ReasonEnd              TerminationReason = "end"               // node had no successor
	ReasonMissingNode      TerminationReason = "missing_node"      // target id not in graph
	ReasonInvalidChoice    TerminationReason = "invalid_choice"    // missing or out of range index
	ReasonChoiceGated      TerminationReason = "choice_gated"      // chosen option's condition is false
	ReasonConditionFailed  TerminationReason = "condition_failed"  // condition node predicate false
	ReasonUnknownType      TerminationReason = "unknown_type"      // unrecognized node type
	ReasonStepLimitReached TerminationReason = "step_limit"        // silent transition guard tripped
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// NodeEvent represents a node visit or a suspension at a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// TerminateEvent records the end of a run.
type TerminateEvent struct {
	EventBase
	LastNodeID string            `json:"last_node_id,omitempty"`
	Reason     TerminationReason `json:"reason"`
}

// VariableEvent records an assignment, either from a setVar node or SetVariable.
type VariableEvent struct {
	EventBase
	NodeID   string `json:"node_id,omitempty"`
	Name     string `json:"name"`
	Previous any    `json:"previous,omitempty"`
	Value    any    `json:"value"`
}

// LifecycleHooks defines callbacks for interpreter observability.
// Every field is optional.
type LifecycleHooks struct {
	OnNodeVisit   func(context.Context, *NodeEvent)
	OnSuspend     func(context.Context, *NodeEvent)
	OnTerminate   func(context.Context, *TerminateEvent)
	OnVariableSet func(context.Context, *VariableEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeVisit:   chain(h.OnNodeVisit, other.OnNodeVisit),
		OnSuspend:     chain(h.OnSuspend, other.OnSuspend),
		OnTerminate:   chain(h.OnTerminate, other.OnTerminate),
		OnVariableSet: chain(h.OnVariableSet, other.OnVariableSet),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
