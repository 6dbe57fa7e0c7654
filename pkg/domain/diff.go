package domain

import (
	"reflect"
)

// StateDiff represents the changes between two snapshots of a run.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// CurrentNodeID is set when the current node changed. A pointer to "" means terminated.
	CurrentNodeID *string `json:"current_node_id,omitempty"`

	// Suspended is set when the suspension flag changed.
	Suspended *bool `json:"suspended,omitempty"`

	// Variables contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`

	// Appended holds the node ids added to the history.
	Appended []string `json:"appended,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState.
// It returns nil when nothing changed.
func Diff(oldState, newState *State) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{}

	if oldState == nil || oldState.CurrentNodeID != newState.CurrentNodeID {
		id := newState.CurrentNodeID
		diff.CurrentNodeID = &id
	}
	if oldState == nil || oldState.Suspended != newState.Suspended {
		suspended := newState.Suspended
		diff.Suspended = &suspended
	}

	diff.Variables = diffVariables(oldState, newState)
	diff.Appended = diffHistory(oldState, newState)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffVariables(old, new *State) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Variables {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Variables {
		oldVal, exists := old.Variables[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Variables {
		if _, exists := new.Variables[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes the history is append-only.
func diffHistory(old, new *State) []string {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return append([]string(nil), new.History...)
	}
	if len(new.History) > len(old.History) {
		return append([]string(nil), new.History[len(old.History):]...)
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Suspended == nil &&
		len(d.Variables) == 0 &&
		len(d.Appended) == 0
}
