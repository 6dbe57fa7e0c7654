package domain

// NodeType identifies the behavior of a node in the dialogue graph.
type NodeType string

// NodeType constants define the control flow behavior.
const (
	// NodeTypeLine displays content and suspends until resumed (soft step).
	NodeTypeLine NodeType = "line"
	// NodeTypeChoice presents options and suspends until the player picks one (hard step).
	NodeTypeChoice NodeType = "choice"
	// NodeTypeJump moves unconditionally to its target (silent step).
	NodeTypeJump NodeType = "jump"
	// NodeTypeSetVar assigns a variable and moves on (silent step).
	NodeTypeSetVar NodeType = "setVar"
	// NodeTypeCondition moves to its target only if its predicate holds (silent step).
	NodeTypeCondition NodeType = "condition"
)

// IsKnown reports whether t is one of the node types the interpreter understands.
func (t NodeType) IsKnown() bool {
	switch t {
	case NodeTypeLine, NodeTypeChoice, NodeTypeJump, NodeTypeSetVar, NodeTypeCondition:
		return true
	}
	return false
}

// Suspends reports whether visiting a node of this type hands control back to the caller.
func (t NodeType) Suspends() bool {
	return t == NodeTypeLine || t == NodeTypeChoice
}

// Node represents a single step in the dialogue graph.
// Only the fields relevant to its Type are meaningful; the rest are ignored.
type Node struct {
	ID   string   `json:"id" yaml:"id"`
	Type NodeType `json:"type" yaml:"type"`

	// Content is the display text of a line node.
	Content string `json:"content,omitempty" yaml:"content,omitempty"`

	// TargetID is the successor for line, jump, setVar and condition nodes.
	// Empty means "no successor": the run terminates after this node.
	TargetID string `json:"targetId,omitempty" yaml:"targetId,omitempty"`

	// Choices are the player-facing options of a choice node.
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`

	// Variable is the name assigned by setVar, or tested by condition.
	Variable string `json:"variable,omitempty" yaml:"variable,omitempty"`

	// Value is the scalar assigned by setVar.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Condition is the predicate of a condition node.
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Choice is one option inside a choice node.
type Choice struct {
	Text     string `json:"text" yaml:"text"`
	TargetID string `json:"targetId" yaml:"targetId"`

	// Condition gates whether the option is presented and honored. Nil always passes.
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Predicate returns the effective condition of a condition node.
// The node-level Variable takes precedence over the one inside Condition.
func (n *Node) Predicate() *Condition {
	if n.Condition == nil {
		return nil
	}
	c := *n.Condition
	if n.Variable != "" {
		c.Variable = n.Variable
	}
	return &c
}

// Clone returns a deep copy of the node, so callers can't reach into a shared graph.
func (n Node) Clone() Node {
	out := n
	if n.Condition != nil {
		c := *n.Condition
		out.Condition = &c
	}
	if n.Choices != nil {
		out.Choices = make([]Choice, len(n.Choices))
		for i, ch := range n.Choices {
			out.Choices[i] = ch
			if ch.Condition != nil {
				c := *ch.Condition
				out.Choices[i].Condition = &c
			}
		}
	}
	return out
}
