package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"gopkg.in/yaml.v3"
)

// parseVars turns repeated k=v flags into game variables.
// Values are read as YAML scalars, so "3" is a number and "true" a bool;
// anything that is not a scalar stays a string.
func parseVars(pairs []string) (domain.Variables, error) {
	vars := domain.Variables{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q (want name=value)", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || !domain.IsScalar(value) {
			value = raw
		}
		vars[key] = value
	}
	return vars, nil
}

// graphName resolves the name a session should be recorded under.
func graphName(ctx context.Context, eng *parley.Engine, name string) (string, error) {
	g, err := eng.Graph(ctx, name)
	if err != nil {
		return "", err
	}
	if g.Name != "" {
		return g.Name, nil
	}
	if name != "" {
		return name, nil
	}
	return eng.Name, nil
}
