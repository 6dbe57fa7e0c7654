package parley_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/testutils"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopYAML = `startNodeId: hello
nodes:
  - id: hello
    type: line
    content: Looking to buy?
    targetId: menu
  - id: menu
    type: choice
    choices:
      - text: The sword
        targetId: sold
        condition: {variable: gold, operator: gte, value: 10}
      - text: Nothing
        targetId: bye
  - id: sold
    type: setVar
    variable: gold
    value: 0
    targetId: bye
  - id: bye
    type: line
    content: Come again.
`

func TestNew_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopYAML), 0644))

	eng, err := parley.New(path)
	require.NoError(t, err)
	assert.Equal(t, "shop", eng.Name)

	ctx := context.Background()
	it, err := eng.Start(ctx, "", domain.Variables{"gold": 12.0})
	require.NoError(t, err)

	step := it.Advance(ctx, nil)
	require.Equal(t, domain.StepYielded, step.Kind)
	assert.Equal(t, "Looking to buy?", step.Node.Content)

	step = it.Advance(ctx, nil)
	require.Equal(t, domain.StepAwaitingChoice, step.Kind)
	step = it.Advance(ctx, 0)
	require.Equal(t, domain.StepYielded, step.Kind)
	assert.Equal(t, "Come again.", step.Node.Content)

	gold, _ := it.Variable("gold")
	assert.Equal(t, 0.0, gold)
}

func TestNew_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.yaml"), []byte(shopYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"startNodeId":"x","nodes":[{"id":"x","type":"jump"}]}`), 0644))

	eng, err := parley.New(dir)
	require.NoError(t, err)

	ctx := context.Background()
	names, err := eng.Graphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "shop"}, names)

	_, err = eng.Graph(ctx, "")
	assert.Error(t, err, "ambiguous without a name")

	g, err := eng.Graph(ctx, "shop")
	require.NoError(t, err)
	assert.Equal(t, "hello", g.StartNodeID)
}

func TestNew_LoamDirectory(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{
		"start.md": "---\nto: end\n---\nHello from Markdown",
		"end.md":   "---\ntype: line\n---\nThe end",
	})

	eng, err := parley.New(dir)
	require.NoError(t, err)

	ctx := context.Background()
	it, err := eng.Start(ctx, "", nil)
	require.NoError(t, err)

	var lines []string
	for step := range it.Steps(ctx, nil) {
		lines = append(lines, step.Node.Content)
	}
	assert.Equal(t, []string{"Hello from Markdown", "The end"}, lines)
}

func TestNew_Errors(t *testing.T) {
	_, err := parley.New("")
	assert.Error(t, err)

	_, err = parley.New(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	txt := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hi"), 0644))
	_, err = parley.New(txt)
	assert.ErrorContains(t, err, "unsupported graph file")
}

func TestEngine_Options(t *testing.T) {
	b := dsl.New()
	b.Add("a").Jump("b")
	b.Add("b").Jump("a")
	loader, err := b.Build("loop")
	require.NoError(t, err)

	var reasons []domain.TerminationReason
	eng, err := parley.New("", parley.WithLoader(loader),
		parley.WithStepLimit(5),
		parley.WithLifecycleHooks(domain.LifecycleHooks{
			OnTerminate: func(_ context.Context, e *domain.TerminateEvent) { reasons = append(reasons, e.Reason) },
		}))
	require.NoError(t, err)

	ctx := context.Background()
	it, err := eng.Start(ctx, "loop", nil)
	require.NoError(t, err)
	assert.True(t, it.Advance(ctx, nil).Terminal())
	assert.Equal(t, []domain.TerminationReason{domain.ReasonStepLimitReached}, reasons)
}

func TestEngine_StrictValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"startNodeId":"a","nodes":[{"id":"a","type":"line","targetId":"ghost"}]}`), 0644))

	eng, err := parley.New(path, parley.WithStrictValidation())
	require.NoError(t, err)
	_, err = eng.Start(context.Background(), "", nil)
	assert.Error(t, err)

	lenient, err := parley.New(path)
	require.NoError(t, err)
	_, err = lenient.Start(context.Background(), "", nil)
	assert.NoError(t, err)
}

func TestEngine_Restore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(shopYAML), 0644))
	eng, err := parley.New(path)
	require.NoError(t, err)
	ctx := context.Background()

	it, err := eng.Start(ctx, "shop", domain.Variables{"gold": 1.0})
	require.NoError(t, err)
	it.Advance(ctx, nil)
	it.Advance(ctx, nil)

	restored, err := eng.Restore(ctx, "shop", it.State(), nil)
	require.NoError(t, err)
	step := restored.Advance(ctx, 1)
	assert.Equal(t, "Come again.", step.Node.Content)
}

func TestEvaluateCondition(t *testing.T) {
	assert.True(t, parley.EvaluateCondition(dsl.When("gold", domain.OpGte, 10), domain.Variables{"gold": 10.0}))
	assert.False(t, parley.EvaluateCondition(dsl.When("gold", domain.OpGte, 10), domain.Variables{}))
}

func TestExampleGraphs(t *testing.T) {
	ctx := context.Background()

	shop, err := parley.New(filepath.Join("examples", "graphs"))
	require.NoError(t, err)
	names, err := shop.Graphs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop"}, names)

	watchtower, err := parley.New(filepath.Join("examples", "graphs", "watchtower"))
	require.NoError(t, err)

	for _, eng := range []*parley.Engine{shop, watchtower} {
		g, err := eng.Graph(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, validate.Inspect(g), "graph %s", g.Name)
	}

	it, err := shop.Start(ctx, "shop", domain.Variables{"gold": 12})
	require.NoError(t, err)
	it.Advance(ctx, nil)
	step := it.Advance(ctx, nil)
	require.Equal(t, domain.StepAwaitingChoice, step.Kind)
	step = it.Advance(ctx, 0)
	assert.Equal(t, "A fine blade. Use it well.", step.Node.Content)
	assert.Equal(t, 0.0, it.State().Variables["gold"])
}

func TestPlayWatchtower(t *testing.T) {
	ctx := context.Background()
	eng, err := parley.New(filepath.Join("examples", "graphs", "watchtower"))
	require.NoError(t, err)

	it, err := eng.Start(ctx, "", nil)
	require.NoError(t, err)

	var lines []string
	friend := func(*domain.Node, []domain.ChoiceOption) any { return 0 }
	for step := range it.Steps(ctx, friend) {
		if step.Kind == domain.StepYielded {
			require.NotEmpty(t, step.Node.Content, "line %s", step.Node.ID)
			lines = append(lines, step.Node.Content)
		}
	}

	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Torchlight flickers")
	assert.Equal(t, `"Then pass, friend."`, lines[1])
	assert.Equal(t, "The gate closes behind you.", lines[2])
	assert.Equal(t, []string{"start", "challenge", "friend", "end"}, it.State().History)
}
