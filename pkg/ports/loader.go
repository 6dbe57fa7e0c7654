package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// GraphLoader defines how dialogue graphs are resolved by name.
// This allows the storage layer (Loam, FS, Memory) to be decoupled.
type GraphLoader interface {
	// Load returns the graph registered under name.
	// Returns domain.ErrGraphNotFound if there is no such graph.
	// The returned graph is shared and must be treated as read-only.
	Load(ctx context.Context, name string) (*domain.Graph, error)

	// List returns the names of all available graphs, sorted.
	// This is used for introspection (e.g. 'parley serve' and the MCP resources).
	List(ctx context.Context) ([]string, error)
}
