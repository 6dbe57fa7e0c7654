package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
)

// MaxLabelLength truncates line content shown inside node boxes.
const MaxLabelLength = 32

// GraphOverlay contains dynamic run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromState builds an overlay out of a run snapshot.
func OverlayFromState(s *domain.State) *GraphOverlay {
	if s == nil {
		return nil
	}
	return &GraphOverlay{VisitedNodes: s.History, CurrentNode: s.CurrentNodeID}
}

var operatorSymbols = map[domain.Operator]string{
	domain.OpEq:  "==",
	domain.OpNe:  "!=",
	domain.OpGt:  ">",
	domain.OpLt:  "<",
	domain.OpGte: ">=",
	domain.OpLte: "<=",
}

// GenerateMermaid produces a Mermaid flowchart of the graph.
// It applies semantic styling:
// - Start: ((Circle))
// - Choice: {Rhombus}
// - Condition: {{Hexagon}}
// - SetVar: [/Parallelogram/]
// - Jump: >Flag]
// - Line: [Rectangle] with a content excerpt
//
// Gated options and condition branches are labeled with their predicate.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if g == nil {
		return sb.String()
	}

	for _, node := range g.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch {
		case node.ID == g.StartNodeID:
			opener, closer = "((", "))"
		case node.Type == domain.NodeTypeChoice:
			opener, closer = "{", "}"
		case node.Type == domain.NodeTypeCondition:
			opener, closer = "{{", "}}"
		case node.Type == domain.NodeTypeSetVar:
			opener, closer = "[/", "/]"
		case node.Type == domain.NodeTypeJump:
			opener, closer = ">", "]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, nodeLabel(node), closer)

		switch node.Type {
		case domain.NodeTypeChoice:
			for _, ch := range node.Choices {
				if ch.TargetID == "" {
					continue
				}
				label := escapeLabel(ch.Text)
				if ch.Condition != nil {
					fmt.Fprintf(&sb, "    %s -. \"%s [%s]\" .-> %s\n", safeID, label, describe(ch.Condition), sanitizeMermaidID(ch.TargetID))
					continue
				}
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, label, sanitizeMermaidID(ch.TargetID))
			}
		case domain.NodeTypeCondition:
			if node.TargetID != "" {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, describe(node.Predicate()), sanitizeMermaidID(node.TargetID))
			}
		default:
			if node.TargetID != "" {
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(node.TargetID))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func nodeLabel(n domain.Node) string {
	switch n.Type {
	case domain.NodeTypeLine:
		if n.Content == "" {
			return n.ID
		}
		content := []rune(strings.Join(strings.Fields(n.Content), " "))
		if len(content) > MaxLabelLength {
			content = append(content[:MaxLabelLength-1], '…')
		}
		return fmt.Sprintf("%s: %s", n.ID, escapeLabel(string(content)))
	case domain.NodeTypeSetVar:
		return fmt.Sprintf("%s: %s = %v", n.ID, n.Variable, n.Value)
	}
	return n.ID
}

func describe(c *domain.Condition) string {
	if c == nil {
		return "always"
	}
	op, ok := operatorSymbols[c.Operator]
	if !ok {
		op = string(c.Operator)
	}
	value := fmt.Sprintf("%v", c.Value)
	if s, isString := c.Value.(string); isString {
		value = "'" + s + "'"
	}
	return escapeLabel(fmt.Sprintf("%s %s %s", c.Variable, op, value))
}

// escapeLabel keeps labels inside their double quotes.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
