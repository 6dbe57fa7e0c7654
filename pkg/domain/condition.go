package domain

// Operator is a binary comparison applied by a Condition.
type Operator string

const (
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpLt  Operator = "lt"
	OpGte Operator = "gte"
	OpLte Operator = "lte"
)

// IsKnown reports whether op is a supported operator.
func (op Operator) IsKnown() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGte, OpLte:
		return true
	}
	return false
}

// IsRelational reports whether op is an ordering comparison.
func (op Operator) IsRelational() bool {
	return op == OpGt || op == OpLt || op == OpGte || op == OpLte
}

// Condition compares the current value of Variable against Value.
// e.g. {Variable: "gold", Operator: "gte", Value: 10}
type Condition struct {
	Variable string   `json:"variable,omitempty" yaml:"variable,omitempty"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}
