package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	parleyhttp "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateLoader(t *testing.T) *memory.Loader {
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
	return loader
}

type fixture struct {
	handler http.Handler
	manager *session.Manager
	metrics *observability.Metrics
	streams *parleyhttp.StreamManager
}

func newFixture(t *testing.T, opts ...parleyhttp.Option) *fixture {
	t.Helper()
	f := &fixture{
		metrics: observability.NewMetrics(),
		streams: parleyhttp.NewStreamManager(nil),
	}
	loader := gateLoader(t)
	f.manager = session.NewManager(memory.NewStore(), loader,
		session.WithChangeListener(f.streams.Publish),
		session.WithStartListener(f.metrics.SessionStarted),
		session.WithInterpreterOptions(runtimeOptions(f.metrics)...),
	)
	opts = append([]parleyhttp.Option{parleyhttp.WithMetrics(f.metrics), parleyhttp.WithStreams(f.streams)}, opts...)
	h, err := parleyhttp.NewHandler(f.manager, loader, opts...)
	require.NoError(t, err)
	f.handler = h
	return f
}

func runtimeOptions(m *observability.Metrics) []runtime.Option {
	return []runtime.Option{runtime.WithLifecycleHooks(m.Hooks())}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type sessionResponse struct {
	Session domain.Session    `json:"session"`
	Step    domain.StepResult `json:"step"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var out sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_Playthrough(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/sessions", `{"graph":"gate","variables":{"gold":5}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode(t, rec)
	id := started.Session.ID
	require.NotEmpty(t, id)
	assert.Equal(t, domain.StepYielded, started.Step.Kind)
	assert.Equal(t, "Halt! Who goes there?", started.Step.Node.Content)

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/advance", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	choice := decode(t, rec)
	require.Equal(t, domain.StepAwaitingChoice, choice.Step.Kind)
	require.Len(t, choice.Step.Options, 2)
	assert.True(t, choice.Step.Options[1].Available)

	rec = f.do(t, http.MethodGet, "/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, choice.Step, decode(t, rec).Step, "get does not move the run")

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/advance", `{"choice":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	line := decode(t, rec)
	assert.Equal(t, "Pass, friend.", line.Step.Node.Content)
	assert.Equal(t, 0.0, line.Session.State.Variables["gold"])

	rec = f.do(t, http.MethodGet, "/graphs/gate/mermaid?session="+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class bribe visited;")
	assert.Contains(t, rec.Body.String(), "class friend current;")

	rec = f.do(t, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":["`+id+`"]}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	reset := decode(t, rec)
	assert.Equal(t, []string{"greet"}, reset.Session.State.History)

	rec = f.do(t, http.MethodDelete, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Graphs(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"graphs":["gate"]}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/graphs/gate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var g domain.Graph
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Equal(t, "greet", g.StartNodeID)
	assert.Len(t, g.Nodes, 4)

	rec = f.do(t, http.MethodGet, "/graphs/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/graphs/gate/mermaid", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD\n"))
	assert.NotContains(t, rec.Body.String(), "classDef")
}

func TestServer_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown graph", http.MethodPost, "/sessions", `{"graph":"ghost"}`, http.StatusNotFound},
		{"missing graph", http.MethodPost, "/sessions", `{}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/sessions", `{"graph":`, http.StatusBadRequest},
		{"non scalar variable", http.MethodPost, "/sessions", `{"graph":"gate","variables":{"bag":[1]}}`, http.StatusBadRequest},
		{"unknown session", http.MethodPost, "/sessions/nope/advance", `{"choice":0}`, http.StatusNotFound},
		{"unknown session reset", http.MethodPost, "/sessions/nope/reset", "", http.StatusNotFound},
		{"unknown session delete", http.MethodDelete, "/sessions/nope", "", http.StatusNotFound},
		{"unknown session events", http.MethodGet, "/sessions/nope/events", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestServer_InvalidChoiceEndsRun(t *testing.T) {
	f := newFixture(t)
	started := decode(t, f.do(t, http.MethodPost, "/sessions", `{"graph":"gate"}`))
	f.do(t, http.MethodPost, "/sessions/"+started.Session.ID+"/advance", "")

	rec := f.do(t, http.MethodPost, "/sessions/"+started.Session.ID+"/advance", `{"choice":1.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, domain.StepTerminated, out.Step.Kind)
	assert.True(t, out.Session.State.Terminated())
}

func TestServer_RequestValidation(t *testing.T) {
	f := newFixture(t, parleyhttp.WithRequestValidation())
	started := decode(t, f.do(t, http.MethodPost, "/sessions", `{"graph":"gate","variables":{"gold":5}}`))
	id := started.Session.ID

	for _, body := range []string{`{"choice":1.5}`, `{"choice":true}`} {
		rec := f.do(t, http.MethodPost, "/sessions/"+id+"/advance", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "request validation failed")
	}

	rec := f.do(t, http.MethodPost, "/sessions", `{"graph":"gate","variables":{"bag":{"a":1}}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "request validation failed")

	rec = f.do(t, http.MethodPost, "/sessions/"+id+"/advance", "")
	assert.Equal(t, http.StatusOK, rec.Code, "the body is optional")

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code, "undocumented routes pass through")
}

func TestServer_MetricsAndDocs(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/sessions", `{"graph":"gate"}`)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `parley_sessions_started_total{graph="gate"} 1`)
	assert.Contains(t, rec.Body.String(), `parley_suspensions_total{type="line"} 1`)

	rec = f.do(t, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = f.do(t, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"api_version":"1.0.0"`)

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	_, err := parleyhttp.LoadSpec()
	assert.NoError(t, err)
}

func TestServer_Events(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	started := decode(t, f.do(t, http.MethodPost, "/sessions", `{"graph":"gate"}`))
	id := started.Session.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/"+id+"/events?watch=history", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}
	require.Equal(t, "connected", readData())
	assert.Equal(t, 1, f.streams.Subscribers(id))

	f.do(t, http.MethodPost, "/sessions/"+id+"/advance", "")

	var diff domain.StateDiff
	require.NoError(t, json.Unmarshal([]byte(readData()), &diff))
	assert.Equal(t, []string{"answer"}, diff.Appended)
}

func TestStreamManager(t *testing.T) {
	sm := parleyhttp.NewStreamManager(nil)
	ch, unsubscribe := sm.Subscribe("s")
	assert.Equal(t, 1, sm.Subscribers("s"))

	sm.Publish(context.Background(), "s", &domain.StateDiff{Appended: []string{"a"}})
	sm.Publish(context.Background(), "other", &domain.StateDiff{Appended: []string{"b"}})
	assert.JSONEq(t, `{"appended":["a"]}`, string(<-ch))

	for range 20 {
		sm.Broadcast("s", []byte("x")) // never blocks on a full buffer
	}

	unsubscribe()
	unsubscribe()
	assert.Zero(t, sm.Subscribers("s"))
}
