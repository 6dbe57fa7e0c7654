package domain

import (
	"encoding/json"
	"fmt"
)

// StepKind tells the caller what an Advance produced.
type StepKind int

const (
	// StepTerminated means the run has ended; no node is attached.
	StepTerminated StepKind = iota
	// StepYielded means a line node is ready for display. Resume needs no input.
	StepYielded
	// StepAwaitingChoice means a choice node is ready. Resume needs a choice index.
	StepAwaitingChoice
)

var stepKindNames = map[StepKind]string{
	StepTerminated:     "terminated",
	StepYielded:        "yielded",
	StepAwaitingChoice: "awaiting_choice",
}

func (k StepKind) String() string {
	if name, ok := stepKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k StepKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its name.
func (k *StepKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for kind, n := range stepKindNames {
		if n == name {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown step kind %q", name)
}

// ChoiceOption describes one option of a choice node as the player would see it.
type ChoiceOption struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Available bool   `json:"available"`
}

// StepResult is the outcome of a single Advance.
type StepResult struct {
	Kind StepKind `json:"kind"`
	Node *Node    `json:"node,omitempty"`

	// Options is populated for StepAwaitingChoice.
	Options []ChoiceOption `json:"options,omitempty"`
}

// Terminal reports whether the run has ended.
func (r StepResult) Terminal() bool {
	return r.Kind == StepTerminated
}
