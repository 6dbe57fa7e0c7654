package runtime

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Advance moves the run forward until the next suspension point or the terminal state.
//
// When the run is parked at a line node, input is ignored. When it is parked at a
// choice node, input must resolve to a valid choice index whose condition holds;
// anything else ends the run. Navigation problems never produce an error: the run
// degrades to the terminal state instead.
func (i *Interpreter) Advance(ctx context.Context, input any) domain.StepResult {
	if i.state.Terminated() {
		return domain.StepResult{Kind: domain.StepTerminated}
	}

	if i.state.Suspended {
		i.state.Suspended = false
		node, ok := i.index[i.state.CurrentNodeID]
		if !ok {
			return i.terminate(ctx, i.state.CurrentNodeID, domain.ReasonMissingNode)
		}

		next, reason := i.resume(node, input)
		if next == "" {
			return i.terminate(ctx, node.ID, reason)
		}
		i.state.CurrentNodeID = next
	}

	return i.walk(ctx)
}

// walk visits nodes starting at CurrentNodeID, processing silent nodes inline.
func (i *Interpreter) walk(ctx context.Context) domain.StepResult {
	silent := 0
	last := ""
	if n := len(i.state.History); n > 0 {
		last = i.state.History[n-1]
	}

	for {
		id := i.state.CurrentNodeID
		node, ok := i.index[id]
		if !ok {
			return i.terminate(ctx, last, domain.ReasonMissingNode)
		}

		i.state.History = append(i.state.History, id)
		last = id
		i.emitVisit(ctx, domain.EventNodeVisit, node)

		switch node.Type {
		case domain.NodeTypeLine:
			return i.suspend(ctx, node, domain.StepYielded)
		case domain.NodeTypeChoice:
			return i.suspend(ctx, node, domain.StepAwaitingChoice)
		}

		next, reason := i.transition(ctx, node)
		if next == "" {
			return i.terminate(ctx, id, reason)
		}
		i.state.CurrentNodeID = next

		silent++
		if i.stepLimit > 0 && silent >= i.stepLimit {
			i.logger.WarnContext(ctx, "silent transition limit reached",
				"node_id", id,
				"limit", i.stepLimit)
			return i.terminate(ctx, id, domain.ReasonStepLimitReached)
		}
	}
}

// transition applies the rule table for non-suspending node types.
func (i *Interpreter) transition(ctx context.Context, node *domain.Node) (string, domain.TerminationReason) {
	switch node.Type {
	case domain.NodeTypeJump:
		return targetOrEnd(node.TargetID)

	case domain.NodeTypeSetVar:
		if node.Variable == "" {
			i.logger.DebugContext(ctx, "setVar without variable name, assignment skipped", "node_id", node.ID)
		} else {
			i.assign(ctx, node.ID, node.Variable, node.Value)
		}
		return targetOrEnd(node.TargetID)

	case domain.NodeTypeCondition:
		if !i.evaluator(node.Predicate(), i.state.Variables) {
			return "", domain.ReasonConditionFailed
		}
		return targetOrEnd(node.TargetID)

	default:
		i.logger.DebugContext(ctx, "unrecognized node type", "node_id", node.ID, "type", node.Type)
		return "", domain.ReasonUnknownType
	}
}

// resume computes the successor of the node the run was parked at.
func (i *Interpreter) resume(node *domain.Node, input any) (string, domain.TerminationReason) {
	if node.Type != domain.NodeTypeChoice {
		return targetOrEnd(node.TargetID)
	}

	idx, ok := resolveChoiceIndex(input)
	if !ok || idx >= len(node.Choices) {
		i.logger.Debug("no valid choice made", "node_id", node.ID, "input", input)
		return "", domain.ReasonInvalidChoice
	}

	choice := node.Choices[idx]
	if !i.evaluator(choice.Condition, i.state.Variables) {
		i.logger.Debug("choice not available", "node_id", node.ID, "index", idx)
		return "", domain.ReasonChoiceGated
	}
	return targetOrEnd(choice.TargetID)
}

func (i *Interpreter) suspend(ctx context.Context, node *domain.Node, kind domain.StepKind) domain.StepResult {
	i.state.Suspended = true
	i.emitVisit(ctx, domain.EventSuspend, node)
	return i.stepAt(node, kind)
}

func (i *Interpreter) stepAt(node *domain.Node, kind domain.StepKind) domain.StepResult {
	cp := node.Clone()
	res := domain.StepResult{Kind: kind, Node: &cp}
	if kind == domain.StepAwaitingChoice {
		res.Options = i.choiceOptions(node)
	}
	return res
}

// Peek reports the step the run is parked at without moving it.
// ok is false for a fresh run that has not been advanced yet.
func (i *Interpreter) Peek() (res domain.StepResult, ok bool) {
	if i.state.Terminated() {
		return domain.StepResult{Kind: domain.StepTerminated}, true
	}
	if !i.state.Suspended {
		return domain.StepResult{}, false
	}
	node, found := i.index[i.state.CurrentNodeID]
	if !found {
		// The next Advance will terminate.
		return domain.StepResult{Kind: domain.StepTerminated}, true
	}
	kind := domain.StepYielded
	if node.Type == domain.NodeTypeChoice {
		kind = domain.StepAwaitingChoice
	}
	return i.stepAt(node, kind), true
}

func (i *Interpreter) terminate(ctx context.Context, lastNodeID string, reason domain.TerminationReason) domain.StepResult {
	i.state.CurrentNodeID = ""
	i.state.Suspended = false

	i.logger.DebugContext(ctx, "dialogue terminated", "last_node_id", lastNodeID, "reason", reason)
	if i.hooks.OnTerminate != nil {
		i.hooks.OnTerminate(ctx, &domain.TerminateEvent{
			EventBase:  domain.EventBase{Timestamp: i.now(), Type: domain.EventTerminate},
			LastNodeID: lastNodeID,
			Reason:     reason,
		})
	}
	return domain.StepResult{Kind: domain.StepTerminated}
}

func (i *Interpreter) emitVisit(ctx context.Context, typ domain.EventType, node *domain.Node) {
	hook := i.hooks.OnNodeVisit
	if typ == domain.EventSuspend {
		hook = i.hooks.OnSuspend
	}
	if hook == nil {
		return
	}
	hook(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: i.now(), Type: typ},
		NodeID:    node.ID,
		NodeType:  node.Type,
	})
}

func targetOrEnd(target string) (string, domain.TerminationReason) {
	if target == "" {
		return "", domain.ReasonEnd
	}
	return target, ""
}
