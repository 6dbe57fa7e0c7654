package validate

import "fmt"

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue represents a single authoring problem found in a graph.
type Issue struct {
	NodeID   string   // Offending node, empty for graph-level issues
	Reason   string   // Human-readable reason
	Severity Severity
}

func (e *Issue) Error() string {
	if e.NodeID == "" {
		return e.Reason
	}
	return fmt.Sprintf("node %q: %s", e.NodeID, e.Reason)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Issues []*Issue
}

func (e *AggregateError) Error() string {
	if len(e.Issues) == 1 {
		return e.Issues[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Issues))
	for i, issue := range e.Issues {
		msg += fmt.Sprintf("  %d. %s\n", i+1, issue.Error())
	}
	return msg
}

// Issues returns all issues if err is an AggregateError.
// Otherwise returns nil.
func Issues(err error) []*Issue {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Issues
	}
	return nil
}
