package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
)

// DefaultStartNode is the node a Loam graph starts at unless configured otherwise.
const DefaultStartNode = "start"

// Loader adapts a Loam repository to the GraphLoader interface.
// The whole repository is one graph: every document is a node and its id is the
// document path without extension (e.g. "tavern/greet.md" becomes "tavern/greet").
type Loader struct {
	Repo  *loam.TypedRepository[NodeMetadata]
	name  string
	start string
}

// Option configures the Loader.
type Option func(*Loader)

// WithName sets the graph name the repository is served under.
func WithName(name string) Option {
	return func(l *Loader) { l.name = name }
}

// WithStartNode overrides DefaultStartNode.
func WithStartNode(id string) Option {
	return func(l *Loader) { l.start = id }
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[NodeMetadata], opts ...Option) *Loader {
	l := &Loader{
		Repo:  repo,
		name:  "main",
		start: DefaultStartNode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List returns the single graph name.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	return []string{l.name}, nil
}

// Load reads every document and assembles the graph. Nodes are ordered by id.
func (l *Loader) Load(ctx context.Context, name string) (*domain.Graph, error) {
	if name != l.name {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}

	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string, len(docs))
	nodes := make([]domain.Node, 0, len(docs))
	for _, entry := range docs {
		// List only enumerates; the body comes with Get.
		doc, err := l.Repo.Get(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", entry.ID, err)
		}
		id := trimExtension(firstNonEmpty(doc.Data.ID, doc.ID, entry.ID))

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, entry.ID)
		}
		seen[id] = entry.ID

		node, err := compiler.DecodeNode(doc.Data.raw(id, strings.TrimSpace(doc.Content)))
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	return &domain.Graph{
		Name:        l.name,
		StartNodeID: l.start,
		Nodes:       nodes,
	}, nil
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
