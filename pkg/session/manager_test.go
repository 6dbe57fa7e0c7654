package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tavern() *domain.Graph {
	return &domain.Graph{
		StartNodeID: "greet",
		Nodes: []domain.Node{
			{ID: "greet", Type: domain.NodeTypeLine, Content: "Welcome!", TargetID: "menu"},
			{ID: "menu", Type: domain.NodeTypeChoice, Choices: []domain.Choice{
				{Text: "Buy ale", TargetID: "pay", Condition: &domain.Condition{Variable: "gold", Operator: domain.OpGte, Value: 2.0}},
				{Text: "Leave", TargetID: "bye"},
			}},
			{ID: "pay", Type: domain.NodeTypeSetVar, Variable: "gold", Value: 0.0, TargetID: "menu"},
			{ID: "bye", Type: domain.NodeTypeLine, Content: "Farewell."},
		},
	}
}

func newManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	loader := memory.NewLoader(map[string]*domain.Graph{"tavern": tavern()})
	return session.NewManager(memory.NewStore(), loader, opts...)
}

func TestManager_Playthrough(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess, step, err := m.Start(ctx, "tavern", domain.Variables{"gold": 5})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "tavern", sess.Graph)
	assert.Equal(t, domain.Variables{"gold": 5}, sess.Seed)
	require.Equal(t, domain.StepYielded, step.Kind)
	assert.Equal(t, "Welcome!", step.Node.Content)

	_, step, err = m.Advance(ctx, sess.ID, nil)
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitingChoice, step.Kind)
	assert.True(t, step.Options[0].Available)

	sess, step, err = m.Advance(ctx, sess.ID, 0)
	require.NoError(t, err)
	require.Equal(t, domain.StepAwaitingChoice, step.Kind)
	assert.False(t, step.Options[0].Available, "gold was spent")
	assert.Equal(t, 0.0, sess.State.Variables["gold"])

	got, peeked, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, step, peeked)
	assert.Equal(t, sess.State.History, got.State.History)

	_, step, err = m.Advance(ctx, sess.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, "Farewell.", step.Node.Content)

	sess, step, err = m.Advance(ctx, sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StepTerminated, step.Kind)
	assert.True(t, sess.State.Terminated())
	assert.Equal(t, []string{"greet", "menu", "pay", "menu", "bye"}, sess.State.History)
}

func TestManager_Reset(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	sess, _, err := m.Start(ctx, "tavern", domain.Variables{"gold": 5.0})
	require.NoError(t, err)
	_, _, _ = m.Advance(ctx, sess.ID, nil)
	_, _, _ = m.Advance(ctx, sess.ID, 0)

	reset, step, err := m.Reset(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, reset.ID)
	assert.Equal(t, 5.0, reset.State.Variables["gold"])
	assert.Equal(t, []string{"greet"}, reset.State.History)
	assert.Equal(t, domain.StepYielded, step.Kind)
}

func TestManager_ChangeListener(t *testing.T) {
	var diffs []*domain.StateDiff
	m := newManager(t, session.WithChangeListener(func(_ context.Context, _ string, d *domain.StateDiff) {
		diffs = append(diffs, d)
	}))
	ctx := context.Background()

	sess, _, err := m.Start(ctx, "tavern", domain.Variables{"gold": 5.0})
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, sess.ID, nil)
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, sess.ID, 0)
	require.NoError(t, err)

	require.Len(t, diffs, 3)
	assert.Equal(t, []string{"greet"}, diffs[0].Appended)
	assert.Equal(t, []string{"menu"}, diffs[1].Appended)
	assert.Equal(t, []string{"pay", "menu"}, diffs[2].Appended)
	assert.Equal(t, map[string]any{"gold": 0.0}, diffs[2].Variables)
	assert.Nil(t, diffs[2].CurrentNodeID, "parked at menu again")
}

func TestManager_StartListener(t *testing.T) {
	metrics := observability.NewMetrics()
	var started []string
	m := newManager(t,
		session.WithStartListener(metrics.SessionStarted),
		session.WithStartListener(func(_ context.Context, sess *domain.Session) {
			started = append(started, sess.ID)
		}),
	)
	ctx := context.Background()

	first, _, err := m.Start(ctx, "tavern", nil)
	require.NoError(t, err)
	_, _, err = m.Start(ctx, "tavern", nil)
	require.NoError(t, err)
	_, _, err = m.Start(ctx, "ghost", nil)
	require.ErrorIs(t, err, domain.ErrGraphNotFound)

	require.Len(t, started, 2)
	assert.Equal(t, first.ID, started[0])
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.Sessions.WithLabelValues("tavern")))

	// Advancing an existing session is not a start.
	_, _, err = m.Advance(ctx, first.ID, nil)
	require.NoError(t, err)
	assert.Len(t, started, 2)
}

func TestManager_Errors(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	_, _, err := m.Start(ctx, "nowhere", nil)
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, _, err = m.Start(ctx, "tavern", domain.Variables{"bag": []string{"sword"}})
	assert.Error(t, err)

	_, _, err = m.Advance(ctx, "ghost", 0)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, _, err = m.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	assert.ErrorIs(t, m.Delete(ctx, "ghost"), domain.ErrSessionNotFound)
}

func TestManager_DeleteAndList(t *testing.T) {
	ids := []string{"s-1", "s-2"}
	next := 0
	m := newManager(t, session.WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	ctx := context.Background()

	_, _, err := m.Start(ctx, "tavern", nil)
	require.NoError(t, err)
	_, _, err = m.Start(ctx, "tavern", nil)
	require.NoError(t, err)

	listed, err := m.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, listed)

	require.NoError(t, m.Delete(ctx, "s-1"))
	listed, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s-2"}, listed)
}

func TestManager_InterpreterOptions(t *testing.T) {
	var visits []string
	var mu sync.Mutex
	m := newManager(t, session.WithInterpreterOptions(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnNodeVisit: func(_ context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			visits = append(visits, e.NodeID)
		},
	})))
	ctx := context.Background()

	sess, _, err := m.Start(ctx, "tavern", nil)
	require.NoError(t, err)
	_, _, err = m.Advance(ctx, sess.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"greet", "menu"}, visits)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Load(ctx, id)
}

func (s SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Save(ctx, sess)
}

func echoGraph() *domain.Graph {
	return &domain.Graph{
		StartNodeID: "a",
		Nodes: []domain.Node{
			{ID: "a", Type: domain.NodeTypeLine, TargetID: "b"},
			{ID: "b", Type: domain.NodeTypeLine, TargetID: "a"},
		},
	}
}

func TestManager_SerializesConcurrentAdvances(t *testing.T) {
	loader := memory.NewLoader(map[string]*domain.Graph{"echo": echoGraph()})
	m := session.NewManager(SlowStore{memory.NewStore()}, loader)
	ctx := context.Background()

	sess, _, err := m.Start(ctx, "echo", nil)
	require.NoError(t, err)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := m.Advance(ctx, sess.ID, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, _, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.History, 1+writers, "no advance may be lost")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	loader := memory.NewLoader(map[string]*domain.Graph{"echo": echoGraph()})
	store := redis.NewFromClient(client)
	locker := redis.NewLocker(client, "test:")

	// Two managers stand in for two replicas sharing one Redis.
	replicas := []*session.Manager{
		session.NewManager(store, loader, session.WithLocker(locker), session.WithLockTTL(5*time.Second)),
		session.NewManager(store, loader, session.WithLocker(locker), session.WithLockTTL(5*time.Second)),
	}
	ctx := context.Background()

	sess, _, err := replicas[0].Start(ctx, "echo", nil)
	require.NoError(t, err)

	const rounds = 4
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, r := range replicas {
			wg.Add(1)
			go func(r *session.Manager) {
				defer wg.Done()
				_, _, err := r.Advance(ctx, sess.ID, nil)
				assert.NoError(t, err)
			}(r)
		}
	}
	wg.Wait()

	got, _, err := replicas[1].Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.State.History, 1+rounds*len(replicas))
	assert.False(t, mr.Exists("test:lock:"+sess.ID), "lock released")
}

func ExampleManager() {
	loader := memory.NewLoader(map[string]*domain.Graph{"tavern": tavern()})
	m := session.NewManager(memory.NewStore(), loader, session.WithIDGenerator(func() string { return "demo" }))
	ctx := context.Background()

	sess, step, _ := m.Start(ctx, "tavern", domain.Variables{"gold": 1})
	fmt.Println(sess.ID, step.Node.Content)

	_, step, _ = m.Advance(ctx, sess.ID, nil)
	for _, opt := range step.Options {
		fmt.Println(opt.Index, opt.Text, opt.Available)
	}
	// Output:
	// demo Welcome!
	// 0 Buy ale false
	// 1 Leave true
}
