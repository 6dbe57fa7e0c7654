package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "line %q", sc.Text())
		lines = append(lines, m)
	}
	return lines
}

func TestJSONHandler_Run(t *testing.T) {
	it := gateInterpreter(t, 5)
	out := &bytes.Buffer{}

	r := runner.NewRunner(runner.WithInputHandler(runner.NewJSONHandler(strings.NewReader(`{"choice": 1}`+"\n"), out)))
	require.NoError(t, r.Run(context.Background(), it))

	lines := decodeLines(t, out)
	require.Len(t, lines, 4)
	assert.Equal(t, "yielded", lines[0]["kind"])
	assert.Equal(t, "awaiting_choice", lines[1]["kind"])
	assert.Len(t, lines[1]["options"], 2)
	assert.Equal(t, "yielded", lines[2]["kind"])
	assert.Equal(t, "Pass, friend.", lines[2]["node"].(map[string]any)["content"])
	assert.Equal(t, map[string]any{"kind": "terminated"}, lines[3])
}

func TestJSONHandler_Input(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"bare number", "1", "1"},
		{"json string", `"2"`, "2"},
		{"object", `{"choice": 0}`, "0"},
		{"object with string", `{"choice": "3"}`, "3"},
		{"plain text", "north", "north"},
		{"no trailing newline", "4", "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := tt.line
			if tt.name != "no trailing newline" {
				line += "\n"
			}
			h := runner.NewJSONHandler(strings.NewReader(line), &bytes.Buffer{})
			got, err := h.Input(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSONHandler_SystemOutput(t *testing.T) {
	out := &bytes.Buffer{}
	h := runner.NewJSONHandler(strings.NewReader(""), out)
	require.NoError(t, h.SystemOutput(context.Background(), "saved"))
	require.NoError(t, h.Output(context.Background(), domain.StepResult{Kind: domain.StepTerminated}))

	lines := decodeLines(t, out)
	assert.Equal(t, "system", lines[0]["kind"])
	assert.Equal(t, "saved", lines[0]["message"])
	assert.Equal(t, "terminated", lines[1]["kind"])
}
