package validate

import (
	"fmt"
	"sort"

	"github.com/aretw0/parley/pkg/domain"
)

type config struct {
	vars             domain.Variables
	warningsAsErrors bool
}

// Option configures a validation pass.
type Option func(*config)

// WithVariables enables type checks of conditions against known initial values.
func WithVariables(vars domain.Variables) Option {
	return func(c *config) {
		c.vars = vars
	}
}

// WithWarningsAsErrors makes warnings (e.g. unreachable nodes) fail validation.
func WithWarningsAsErrors() Option {
	return func(c *config) {
		c.warningsAsErrors = true
	}
}

// Graph checks a graph for authoring errors. The interpreter tolerates all of
// these at run time by ending the dialogue early; this pass exists for hosts that
// want to catch them up front. It returns an *AggregateError or nil.
func Graph(g *domain.Graph, opts ...Option) error {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	issues := Inspect(g, opts...)
	var failing []*Issue
	for _, issue := range issues {
		if issue.Severity == SeverityError || cfg.warningsAsErrors {
			failing = append(failing, issue)
		}
	}
	if len(failing) > 0 {
		return &AggregateError{Issues: failing}
	}
	return nil
}

// Inspect returns every issue found in the graph, errors and warnings alike.
func Inspect(g *domain.Graph, opts ...Option) []*Issue {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	if g == nil {
		return []*Issue{{Reason: "graph is nil", Severity: SeverityError}}
	}

	var issues []*Issue
	add := func(nodeID string, sev Severity, format string, args ...any) {
		issues = append(issues, &Issue{NodeID: nodeID, Reason: fmt.Sprintf(format, args...), Severity: sev})
	}

	index := g.Index()
	if g.StartNodeID == "" {
		add("", SeverityError, "start node id is empty")
	} else if _, ok := index[g.StartNodeID]; !ok {
		add("", SeverityError, "start node %q not found", g.StartNodeID)
	}

	seen := make(map[string]bool, len(g.Nodes))
	checkTarget := func(nodeID, target, what string) {
		if target == "" {
			return
		}
		if _, ok := index[target]; !ok {
			add(nodeID, SeverityError, "%s points to missing node %q", what, target)
		}
	}

	for _, n := range g.Nodes {
		if n.ID == "" {
			add("", SeverityError, "node without id")
			continue
		}
		if seen[n.ID] {
			add(n.ID, SeverityError, "duplicate node id")
		}
		seen[n.ID] = true

		switch n.Type {
		case domain.NodeTypeLine, domain.NodeTypeJump:
			checkTarget(n.ID, n.TargetID, "targetId")
		case domain.NodeTypeSetVar:
			if n.Variable == "" {
				add(n.ID, SeverityError, "setVar without variable name")
			}
			if n.Value != nil && !domain.IsScalar(n.Value) {
				add(n.ID, SeverityError, "setVar value must be a string, number or bool, got %T", n.Value)
			}
			checkTarget(n.ID, n.TargetID, "targetId")
		case domain.NodeTypeCondition:
			issues = append(issues, checkCondition(n.ID, "condition", n.Predicate(), cfg.vars)...)
			if n.TargetID == "" {
				add(n.ID, SeverityWarning, "condition without targetId always ends the dialogue")
			}
			checkTarget(n.ID, n.TargetID, "targetId")
		case domain.NodeTypeChoice:
			if len(n.Choices) == 0 {
				add(n.ID, SeverityError, "choice node without choices")
			}
			for idx, ch := range n.Choices {
				what := fmt.Sprintf("choice %d", idx)
				if ch.TargetID == "" {
					add(n.ID, SeverityError, "%s has no targetId", what)
				}
				checkTarget(n.ID, ch.TargetID, what)
				issues = append(issues, checkCondition(n.ID, what+" condition", ch.Condition, cfg.vars)...)
			}
		default:
			add(n.ID, SeverityError, "unknown node type %q", n.Type)
		}
	}

	if _, ok := index[g.StartNodeID]; ok {
		reachable := Reachable(g)
		var unreachable []string
		for id := range index {
			if !reachable[id] {
				unreachable = append(unreachable, id)
			}
		}
		sort.Strings(unreachable)
		for _, id := range unreachable {
			add(id, SeverityWarning, "unreachable from start node %q", g.StartNodeID)
		}
	}

	return issues
}

func checkCondition(nodeID, what string, cond *domain.Condition, vars domain.Variables) []*Issue {
	if cond == nil {
		return nil
	}
	var issues []*Issue
	if cond.Variable == "" {
		issues = append(issues, &Issue{NodeID: nodeID, Severity: SeverityError, Reason: what + " has no variable"})
	}
	if !cond.Operator.IsKnown() {
		issues = append(issues, &Issue{NodeID: nodeID, Severity: SeverityError,
			Reason: fmt.Sprintf("%s uses unknown operator %q", what, cond.Operator)})
	}
	if cond.Operator.IsRelational() && vars != nil {
		if current, ok := vars[cond.Variable]; ok && kindName(current) != kindName(cond.Value) {
			issues = append(issues, &Issue{NodeID: nodeID, Severity: SeverityWarning,
				Reason: fmt.Sprintf("%s compares %s variable %q with %s literal", what, kindName(current), cond.Variable, kindName(cond.Value))})
		}
	}
	return issues
}

func kindName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case nil:
		return "null"
	}
	if domain.IsScalar(v) {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// Reachable crawls the graph from the start node and returns the set of visited ids.
func Reachable(g *domain.Graph) map[string]bool {
	index := g.Index()
	visited := make(map[string]bool)
	queue := []string{g.StartNodeID}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		node, ok := index[currentID]
		if !ok {
			continue
		}
		visited[currentID] = true

		for _, target := range Successors(node) {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
	return visited
}

// Successors lists the ids a node may transition to.
func Successors(n *domain.Node) []string {
	var out []string
	if n.Type != domain.NodeTypeChoice {
		if n.TargetID != "" {
			out = append(out, n.TargetID)
		}
		return out
	}
	for _, ch := range n.Choices {
		if ch.TargetID != "" {
			out = append(out, ch.TargetID)
		}
	}
	return out
}
