package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/pkg/domain"
)

var graphExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// IsGraphFile reports whether path has a graph document extension.
func IsGraphFile(path string) bool {
	return graphExtensions[strings.ToLower(filepath.Ext(path))]
}

// Loader implements ports.GraphLoader over graph documents on disk.
// A graph's name is its file name without extension.
// Compiled graphs are cached until the file's modification time changes.
type Loader struct {
	root   string
	single bool

	mu    sync.Mutex
	cache map[string]cached
}

type cached struct {
	modTime int64
	graph   *domain.Graph
}

// NewLoader serves every *.json, *.yaml and *.yml file directly inside dir.
func NewLoader(dir string) *Loader {
	return &Loader{root: dir, cache: map[string]cached{}}
}

// NewSingleFileLoader serves exactly one graph file.
func NewSingleFileLoader(path string) *Loader {
	return &Loader{root: path, single: true, cache: map[string]cached{}}
}

func graphName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// List returns graph names, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	if l.single {
		return []string{graphName(l.root)}, nil
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs in %s: %w", l.root, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsGraphFile(e.Name()) {
			continue
		}
		names = append(names, graphName(e.Name()))
	}
	sort.Strings(names)
	return names, nil
}

// Load compiles (or returns the cached) graph called name.
func (l *Loader) Load(ctx context.Context, name string) (*domain.Graph, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	if l.single {
		name = graphName(l.root)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat graph %s: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.cache[name]; ok && c.modTime == info.ModTime().UnixNano() {
		return c.graph, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph %s: %w", name, err)
	}
	g, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("graph %s: %w", name, err)
	}
	g.Name = name

	l.cache[name] = cached{modTime: info.ModTime().UnixNano(), graph: g}
	return g, nil
}

func (l *Loader) resolve(name string) (string, error) {
	if l.single {
		if name != "" && name != graphName(l.root) {
			return "", fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
		}
		return l.root, nil
	}

	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", domain.ErrGraphNotFound, name)
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		p := filepath.Join(l.root, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
}
