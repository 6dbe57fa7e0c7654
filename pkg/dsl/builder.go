package dsl

import (
	"fmt"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/validate"
)

// Builder manages the graph construction.
// Nodes keep the order in which they were first added.
type Builder struct {
	start string
	order []string
	nodes map[string]*NodeBuilder
}

// New creates a new graph builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Start sets the start node. By default it is the first node added.
func (b *Builder) Start(id string) *Builder {
	b.start = id
	return b
}

// Add creates a new node in the graph.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{ID: id},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	if b.start == "" {
		b.start = id
	}
	return nb
}

// Graph assembles and validates the graph. Warnings (e.g. unreachable nodes) are not errors.
func (b *Builder) Graph() (*domain.Graph, error) {
	if len(b.order) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	g := &domain.Graph{
		StartNodeID: b.start,
		Nodes:       make([]domain.Node, 0, len(b.order)),
	}
	for _, id := range b.order {
		g.Nodes = append(g.Nodes, b.nodes[id].Build())
	}

	if err := validate.Graph(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Build compiles the graph into a memory loader serving it under name.
func (b *Builder) Build(name string) (*memory.Loader, error) {
	g, err := b.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to build graph %s: %w", name, err)
	}
	return memory.NewLoader(map[string]*domain.Graph{name: g}), nil
}
