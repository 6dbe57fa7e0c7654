package runner_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateInterpreter(t *testing.T, gold int) *parley.Interpreter {
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
	eng, err := parley.New("", parley.WithLoader(loader))
	require.NoError(t, err)
	it, err := eng.Start(context.Background(), "gate", domain.Variables{"gold": gold})
	require.NoError(t, err)
	return it
}

func TestRunner_Text(t *testing.T) {
	it := gateInterpreter(t, 3)
	out := &bytes.Buffer{}

	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("0\n"), out)))
	require.NoError(t, r.Run(context.Background(), it))

	text := out.String()
	assert.Contains(t, text, "Halt! Who goes there?")
	assert.Contains(t, text, "[0] A friend")
	assert.NotContains(t, text, "Bribe", "gated options are hidden")
	assert.Contains(t, text, "Pass, friend.")
	assert.Contains(t, text, "-- end --")
	assert.True(t, it.Terminated())
	assert.Equal(t, []string{"greet", "answer", "friend"}, it.State().History)
}

func TestRunner_GatedChoiceEndsRun(t *testing.T) {
	it := gateInterpreter(t, 3)
	out := &bytes.Buffer{}

	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("\n1\n"), out)))
	require.NoError(t, r.Run(context.Background(), it))

	assert.True(t, it.Terminated())
	assert.NotContains(t, out.String(), "Pass, friend.")
}

func TestRunner_EOFLeavesRunParked(t *testing.T) {
	it := gateInterpreter(t, 3)

	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(strings.NewReader(""), io.Discard)))
	require.NoError(t, r.Run(context.Background(), it))

	state := it.State()
	assert.Equal(t, "answer", state.CurrentNodeID)
	assert.True(t, state.Suspended)
}

func TestRunner_QuitAndResume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	it := gateInterpreter(t, 9)
	sess := &domain.Session{ID: "s1", Graph: "gate"}

	out := &bytes.Buffer{}
	r := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("quit\n"), out)),
		runner.WithStore(store),
		runner.WithSession(sess),
	)
	require.NoError(t, r.Run(ctx, it))
	assert.Contains(t, out.String(), "session s1 saved")

	saved, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "answer", saved.State.CurrentNodeID)

	// A fresh process picks up where the last one stopped.
	resumed, err := parley.New("", parley.WithLoader(mustLoader(t, it)))
	require.NoError(t, err)
	it2, err := resumed.Restore(ctx, "gate", saved.State, nil)
	require.NoError(t, err)

	out.Reset()
	r2 := runner.NewRunner(
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("1\n"), out)),
		runner.WithStore(store),
		runner.WithSession(saved),
	)
	require.NoError(t, r2.Run(ctx, it2))
	assert.NotContains(t, out.String(), "Halt!", "parked runs do not replay earlier lines")
	assert.Contains(t, out.String(), "[1] Bribe the guard")
	assert.Contains(t, out.String(), "Pass, friend.")

	final, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, final.State.Terminated())
	assert.Equal(t, 0, final.State.Variables["gold"])
	assert.Equal(t, []string{"greet", "answer", "bribe", "friend"}, final.State.History)
}

func mustLoader(t *testing.T, it *parley.Interpreter) *memory.Loader {
	t.Helper()
	return memory.NewLoader(map[string]*domain.Graph{"gate": it.Graph()})
}

func TestRunner_ContextCancellation(t *testing.T) {
	it := gateInterpreter(t, 3)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(pr, io.Discard)))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, it) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancellation")
	}
	assert.Equal(t, "answer", it.State().CurrentNodeID)
}
