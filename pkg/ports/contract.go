package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSession(id string) *domain.Session {
	now := time.Now().UTC().Truncate(time.Second)
	state := domain.NewState("start", domain.Variables{"name": "Ada", "gold": 5.0, "brave": true})
	state.History = append(state.History, "intro")
	state.Suspended = true
	return &domain.Session{
		ID:        id,
		Graph:     "tavern",
		Seed:      domain.Variables{"gold": 5.0},
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := contractSession(sessionID)

		require.NoError(t, store.Save(ctx, session), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, "tavern", loaded.Graph)
		assert.Equal(t, "start", loaded.State.CurrentNodeID)
		assert.True(t, loaded.State.Suspended)
		assert.Equal(t, []string{"intro"}, loaded.State.History)
		assert.Equal(t, "Ada", loaded.State.Variables["name"])
		assert.Equal(t, true, loaded.State.Variables["brave"])
		// JSON-backed stores decode numbers as float64, which is what we store anyway.
		assert.Equal(t, 5.0, loaded.State.Variables["gold"])
		assert.Equal(t, 5.0, loaded.Seed["gold"])
		assert.True(t, session.UpdatedAt.Equal(loaded.UpdatedAt))
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractSession(sessionID)))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.State.Variables["name"] = "Mallory"
		loaded.State.History = append(loaded.State.History, "tampered")

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", again.State.Variables["name"])
		assert.Equal(t, []string{"intro"}, again.State.History)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		session := contractSession(sessionID)
		session.State.CurrentNodeID = ""
		session.State.Suspended = false
		require.NoError(t, store.Save(ctx, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.True(t, loaded.State.Terminated())
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, contractSession(sessionID)))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, contractSession(id1)))
		require.NoError(t, store.Save(ctx, contractSession(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}

// RunGraphLoaderContract verifies that a GraphLoader serves exactly the expected graphs.
// expected maps graph name to the start node id each graph must report.
func RunGraphLoaderContract(t *testing.T, loader GraphLoader, expected map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for name, start := range expected {
			g, err := loader.Load(ctx, name)
			require.NoError(t, err, "graph %s", name)
			assert.Equal(t, start, g.StartNodeID, "graph %s", name)
			assert.NotEmpty(t, g.Nodes, "graph %s", name)
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-graph")
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("List", func(t *testing.T) {
		names, err := loader.List(ctx)
		require.NoError(t, err)
		assert.Len(t, names, len(expected))
		assert.IsNonDecreasing(t, names)
		for name := range expected {
			assert.Contains(t, names, name)
		}
	})
}
