package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
)

// Loader implements ports.GraphLoader over graphs held in memory.
// Safe for concurrent use.
type Loader struct {
	mu     sync.RWMutex
	graphs map[string]*domain.Graph
}

// NewLoader creates a loader serving the given graphs by name.
func NewLoader(graphs map[string]*domain.Graph) *Loader {
	l := &Loader{graphs: make(map[string]*domain.Graph, len(graphs))}
	for name, g := range graphs {
		l.Register(name, g)
	}
	return l
}

// NewFromDocuments compiles raw JSON/YAML documents keyed by graph name.
// This improves DX for tests and embedded stories.
func NewFromDocuments(docs map[string]string) (*Loader, error) {
	l := &Loader{graphs: make(map[string]*domain.Graph, len(docs))}
	for name, doc := range docs {
		g, err := compiler.Compile([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("graph %s: %w", name, err)
		}
		l.Register(name, g)
	}
	return l, nil
}

// Register adds or replaces a graph.
func (l *Loader) Register(name string, g *domain.Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g.Name == "" {
		g.Name = name
	}
	l.graphs[name] = g
}

// Load returns the graph registered under name.
func (l *Loader) Load(ctx context.Context, name string) (*domain.Graph, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
	}
	return g, nil
}

// List returns all graph names.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.graphs))
	for k := range l.graphs {
		names = append(names, k)
	}
	sort.Strings(names) // Deterministic order
	return names, nil
}
