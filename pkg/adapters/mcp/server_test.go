package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...session.Option) *Server {
	t.Helper()
	b := dsl.New()
	b.Add("greet").Line("Halt! Who goes there?").To("answer")
	b.Add("answer").Choice().
		Option("A friend", "friend").
		Option("Bribe the guard", "bribe", dsl.When("gold", domain.OpGte, 5))
	b.Add("friend").Line("Pass, friend.")
	b.Add("bribe").Set("gold", 0).To("friend")
	loader, err := b.Build("gate")
	require.NoError(t, err)

	return NewServer(session.NewManager(memory.NewStore(), loader, opts...), loader)
}

func TestServer_DialogueTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	started, err := s.handleStart(ctx, req, StartArgs{Graph: "gate", Variables: domain.Variables{"gold": 7.0}})
	require.NoError(t, err)
	require.NotEmpty(t, started.SessionID)
	assert.Equal(t, domain.StepYielded, started.Step.Kind)
	assert.Equal(t, []string{"greet"}, started.History)

	resp, err := s.handleAdvance(ctx, req, AdvanceArgs{SessionID: started.SessionID})
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitingChoice, resp.Step.Kind)

	got, err := s.handleGet(ctx, req, SessionArgs{SessionID: started.SessionID})
	require.NoError(t, err)
	assert.Equal(t, resp.Step, got.Step)

	// JSON numbers arrive as float64.
	resp, err = s.handleAdvance(ctx, req, AdvanceArgs{SessionID: started.SessionID, Choice: 1.0})
	require.NoError(t, err)
	assert.Equal(t, "Pass, friend.", resp.Step.Node.Content)
	assert.Equal(t, 0, resp.Variables["gold"])

	resp, err = s.handleReset(ctx, req, SessionArgs{SessionID: started.SessionID})
	require.NoError(t, err)
	assert.Equal(t, 7.0, resp.Variables["gold"])
	assert.Equal(t, []string{"greet"}, resp.History)
}

func TestServer_StartCountsSession(t *testing.T) {
	metrics := observability.NewMetrics()
	s := newTestServer(t, session.WithStartListener(metrics.SessionStarted))

	_, err := s.handleStart(context.Background(), mcp.CallToolRequest{}, StartArgs{Graph: "gate"})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Sessions.WithLabelValues("gate")))
}

func TestServer_ToolErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleStart(ctx, req, StartArgs{})
	assert.Error(t, err)

	_, err = s.handleStart(ctx, req, StartArgs{Graph: "ghost"})
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = s.handleAdvance(ctx, req, AdvanceArgs{SessionID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = s.handleGet(ctx, req, SessionArgs{SessionID: "nope"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func call(t *testing.T, s *Server, method string, params any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	out, err := json.Marshal(s.MCPServer().HandleMessage(context.Background(), raw))
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(out, &msg))
	require.Nil(t, msg["error"], string(out))
	return msg["result"].(map[string]any)
}

func TestServer_Protocol(t *testing.T) {
	s := newTestServer(t)

	tools := call(t, s, "tools/list", map[string]any{})["tools"].([]any)
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"list_graphs", "start_dialogue", "advance_dialogue", "get_session", "reset_dialogue"}, names)

	result := call(t, s, "tools/call", map[string]any{"name": "list_graphs", "arguments": map[string]any{}})
	content := result["content"].([]any)[0].(map[string]any)
	assert.Equal(t, `["gate"]`, content["text"])

	result = call(t, s, "tools/call", map[string]any{
		"name":      "start_dialogue",
		"arguments": map[string]any{"graph": "gate"},
	})
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, "yielded", structured["step"].(map[string]any)["kind"])

	result = call(t, s, "resources/read", map[string]any{"uri": "parley://graphs/gate"})
	contents := result["contents"].([]any)
	require.Len(t, contents, 2)
	assert.Contains(t, contents[0].(map[string]any)["text"], `"startNodeId":"greet"`)
	assert.Contains(t, contents[1].(map[string]any)["text"], "graph TD")
}
