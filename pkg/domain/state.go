package domain

import "time"

// State represents the current snapshot of a dialogue run.
type State struct {
	// CurrentNodeID is the node awaiting visitation (or parked at, when Suspended).
	// Empty means the run has terminated.
	CurrentNodeID string `json:"current_node_id,omitempty"`

	// Variables is the run's private copy of the game variables.
	Variables Variables `json:"variables"`

	// History is the append-only sequence of visited node ids.
	// It is never consulted for control flow.
	History []string `json:"history"`

	// Suspended is true while the run is parked at a line or choice node
	// waiting for the next Advance.
	Suspended bool `json:"suspended,omitempty"`
}

// NewState creates a clean state starting at a specific node.
func NewState(startNodeID string, vars Variables) *State {
	if vars == nil {
		vars = Variables{}
	}
	return &State{
		CurrentNodeID: startNodeID,
		Variables:     vars.Clone(),
		History:       []string{},
	}
}

// Terminated reports whether the run has ended.
func (s *State) Terminated() bool {
	return s.CurrentNodeID == ""
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	next := *s
	next.Variables = s.Variables.Clone()
	next.History = append(make([]string, 0, len(s.History)), s.History...)
	return &next
}

// Session is a persisted dialogue run: which graph it plays, the seed it started from
// (so it can be reset) and its latest snapshot.
type Session struct {
	ID        string    `json:"id"`
	Graph     string    `json:"graph"`
	Seed      Variables `json:"seed,omitempty"`
	State     *State    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	if s.Seed != nil {
		next.Seed = s.Seed.Clone()
	}
	next.State = s.State.Clone()
	return &next
}
