package dsl

import "github.com/aretw0/parley/pkg/domain"

// When builds a condition for choices and condition nodes.
func When(variable string, op domain.Operator, value any) *domain.Condition {
	return &domain.Condition{Variable: variable, Operator: op, Value: value}
}

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Line marks the node as a line (soft step) with the given text.
func (n *NodeBuilder) Line(content string) *NodeBuilder {
	n.node.Type = domain.NodeTypeLine
	n.node.Content = content
	return n
}

// Choice marks the node as a choice (hard step). Add options with Option.
func (n *NodeBuilder) Choice() *NodeBuilder {
	n.node.Type = domain.NodeTypeChoice
	return n
}

// Option appends a choice. The optional condition gates it.
func (n *NodeBuilder) Option(text, target string, cond ...*domain.Condition) *NodeBuilder {
	if n.node.Type == "" {
		n.node.Type = domain.NodeTypeChoice
	}
	choice := domain.Choice{Text: text, TargetID: target}
	if len(cond) > 0 {
		choice.Condition = cond[0]
	}
	n.node.Choices = append(n.node.Choices, choice)
	return n
}

// Jump marks the node as an unconditional redirect to target.
func (n *NodeBuilder) Jump(target string) *NodeBuilder {
	n.node.Type = domain.NodeTypeJump
	n.node.TargetID = target
	return n
}

// Set marks the node as a variable assignment.
func (n *NodeBuilder) Set(variable string, value any) *NodeBuilder {
	n.node.Type = domain.NodeTypeSetVar
	n.node.Variable = variable
	n.node.Value = value
	return n
}

// If marks the node as a condition: the run continues to To only when it holds.
func (n *NodeBuilder) If(variable string, op domain.Operator, value any) *NodeBuilder {
	n.node.Type = domain.NodeTypeCondition
	n.node.Variable = variable
	n.node.Condition = &domain.Condition{Operator: op, Value: value}
	return n
}

// To sets the successor of line, jump, setVar and condition nodes.
func (n *NodeBuilder) To(target string) *NodeBuilder {
	n.node.TargetID = target
	return n
}

// Terminal clears the successor: the run ends after this node.
func (n *NodeBuilder) Terminal() *NodeBuilder {
	n.node.TargetID = ""
	return n
}

// Build returns a copy of the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Build() domain.Node {
	return n.node.Clone()
}
