package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractSession(id string) *domain.Session {
	start := domain.NewStateSet("q0")
	return &domain.Session{
		ID: id,
		Definition: domain.Definition{
			Mode:         domain.ModeDFA,
			States:       "q0,q1",
			Alphabet:     "a",
			StartState:   "q0",
			AcceptStates: "q1",
			Transitions:  "q0,a,q1",
		},
		Simulation: domain.Simulation{
			RunID:   1,
			Mode:    domain.ModeDFA,
			Input:   "a",
			Current: start,
			Trace:   []domain.StateSet{start},
			Status:  domain.StatusReady,
		},
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := contractSession(sessionID)

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.Definition, loaded.Definition)
		assert.Equal(t, session.Simulation.RunID, loaded.Simulation.RunID)
		assert.True(t, loaded.Simulation.Current.Equal(session.Simulation.Current))
		require.Len(t, loaded.Simulation.Trace, 1)
		assert.True(t, loaded.Simulation.Trace[0].Has("q0"))
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		session := contractSession(sessionID)
		session.Simulation.RunID = 7
		require.NoError(t, store.Save(ctx, sessionID, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), loaded.Simulation.RunID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, contractSession(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, contractSession(id1))
		_ = store.Save(ctx, id2, contractSession(id2))

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

// RunHistoryRecorderContract verifies the bounded FIFO behavior of a HistoryRecorder
// configured with the given limit. The recorder must start empty.
func RunHistoryRecorderContract(t *testing.T, recorder HistoryRecorder, limit int) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		entries, err := recorder.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Oldest First", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			require.NoError(t, recorder.Record(ctx, domain.HistoryEntry{
				Topic:     domain.TopicAutomata,
				Operation: fmt.Sprintf("op-%d", i),
				Inputs:    map[string]any{"input_string": "ab"},
				Formula:   "q0 --a--> q1",
				Timestamp: time.Now().UTC(),
			}))
		}

		entries, err := recorder.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "op-0", entries[0].Operation)
		assert.Equal(t, "op-1", entries[1].Operation)
		assert.Equal(t, domain.TopicAutomata, entries[0].Topic)
		assert.Equal(t, "ab", entries[0].Inputs["input_string"])
	})

	t.Run("Evicts Oldest", func(t *testing.T) {
		total := limit + 3
		for i := 2; i < total; i++ {
			require.NoError(t, recorder.Record(ctx, domain.HistoryEntry{
				Topic:     domain.TopicAutomata,
				Operation: fmt.Sprintf("op-%d", i),
				Timestamp: time.Now().UTC(),
			}))
		}

		entries, err := recorder.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, limit)
		assert.Equal(t, fmt.Sprintf("op-%d", total-limit), entries[0].Operation)
		assert.Equal(t, fmt.Sprintf("op-%d", total-1), entries[limit-1].Operation)
	})
}
