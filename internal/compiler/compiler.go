// Package compiler turns raw graph documents into domain graphs.
//
// Documents are decoded into a generic map first (encoding/json for JSON, yaml.v3 for
// YAML) and then mapped onto domain types with mapstructure. Key matching ignores case,
// underscores and dashes, so "targetId", "target_id" and "target-id" are the same key.
// Numeric values are normalized to float64 so graphs from every source compare alike.
package compiler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Compile decodes a JSON or YAML graph document.
func Compile(data []byte) (*domain.Graph, error) {
	raw, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Decode maps an already parsed document onto a Graph.
func Decode(raw map[string]any) (*domain.Graph, error) {
	var g domain.Graph
	if err := decode(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}
	for i := range g.Nodes {
		normalizeNode(&g.Nodes[i])
	}
	return &g, nil
}

// DecodeNode maps a single node document (e.g. Markdown front matter) onto a Node.
func DecodeNode(raw map[string]any) (domain.Node, error) {
	var n domain.Node
	if err := decode(raw, &n); err != nil {
		return n, fmt.Errorf("failed to decode node: %w", err)
	}
	normalizeNode(&n)
	return n, nil
}

// DecodeVariables normalizes a variable map coming from JSON, YAML or a form.
func DecodeVariables(raw map[string]any) (domain.Variables, error) {
	vars := make(domain.Variables, len(raw))
	for k, v := range raw {
		vars[k] = normalizeValue(v)
	}
	return vars.Normalize()
}

func parseDocument(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty graph document")
	}

	var raw map[string]any
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON graph: %w", err)
		}
		return raw, nil
	}

	if err := yaml.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML graph: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("graph document is not a mapping")
	}
	return raw, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		MatchName:        matchName,
		DecodeHook:       numberToString,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func matchName(mapKey, fieldName string) bool {
	return canonical(mapKey) == canonical(fieldName)
}

func canonical(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}

// numberToString lets numeric ids ("id: 3") land in string fields.
func numberToString(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}
	if num, ok := data.(json.Number); ok {
		return num.String(), nil
	}
	return data, nil
}

func normalizeNode(n *domain.Node) {
	n.Value = normalizeValue(n.Value)
	if n.Condition != nil {
		n.Condition.Value = normalizeValue(n.Condition.Value)
	}
	for i := range n.Choices {
		if c := n.Choices[i].Condition; c != nil {
			c.Value = normalizeValue(c.Value)
		}
	}
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}
