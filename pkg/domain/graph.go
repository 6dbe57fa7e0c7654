package domain

// Graph is an immutable, externally supplied dialogue: an ordered collection of nodes
// and the id of the node where every run begins.
// A Graph is read-only input and may be shared by any number of interpreters.
type Graph struct {
	// Name is a descriptive label (usually the source file or directory name).
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	StartNodeID string `json:"startNodeId" yaml:"startNodeId"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`
}

// Node returns the first node whose id matches. Duplicate ids are an authoring error;
// only the first one is ever reachable.
func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil || id == "" {
		return nil, false
	}
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Index builds an id lookup table with first-wins semantics.
// Nodes without an id are left out: the empty id means "terminated".
func (g *Graph) Index() map[string]*Node {
	idx := make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		if g.Nodes[i].ID == "" {
			continue
		}
		if _, exists := idx[g.Nodes[i].ID]; !exists {
			idx[g.Nodes[i].ID] = &g.Nodes[i]
		}
	}
	return idx
}

// IDs returns node ids in declaration order.
func (g *Graph) IDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
