package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDFA() domain.Definition {
	return domain.Definition{
		Mode:         domain.ModeDFA,
		States:       "q0,q1,q2",
		Alphabet:     "0,1",
		StartState:   "q0",
		AcceptStates: "q2",
		Transitions:  "q0,0,q0\nq0,1,q1\nq1,0,q2\nq1,1,q0\nq2,0,q2\nq2,1,q1",
	}
}

func scenarioNFA() domain.Definition {
	return domain.Definition{
		Mode:         domain.ModeNFA,
		States:       "q0,q1,q2",
		Alphabet:     "0,1",
		StartState:   "q0",
		AcceptStates: "q2",
		Transitions:  "q0,0,q0\nq0,1,q0;q1\nq1,1,q2",
	}
}

func singletons(states ...string) []domain.StateSet {
	out := make([]domain.StateSet, len(states))
	for i, s := range states {
		out[i] = domain.NewStateSet(s)
	}
	return out
}

func assertTraceInvariant(t *testing.T, sim domain.Simulation) {
	t.Helper()
	assert.Len(t, sim.Trace, sim.Position+1, "len(trace) == position+1")
	assert.True(t, sim.Current.Equal(sim.Trace[sim.Position]), "current is the last snapshot")
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func (r *memoryRecorder) Record(_ context.Context, e domain.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memoryRecorder) List(context.Context) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.HistoryEntry(nil), r.entries...), nil
}

func TestSimulator_DFAStepping(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "101")
	require.NoError(t, err)

	snap := sim.Snapshot()
	assert.Equal(t, domain.StatusReady, snap.Status)
	assert.Equal(t, singletons("q0"), snap.Trace)

	for i := 0; i < 3; i++ {
		snap = sim.Forward(ctx)
		assertTraceInvariant(t, snap)
	}

	assert.Equal(t, singletons("q0", "q1", "q2", "q1"), snap.Trace)
	assert.True(t, snap.Current.Equal(domain.NewStateSet("q1")))
	assert.True(t, snap.Finished)
	assert.False(t, snap.Accepted)
	assert.False(t, snap.DeadEnd)
	assert.Equal(t, domain.StatusFinished, snap.Status)

	// Forward past the end is a no-op.
	again := sim.Forward(ctx)
	assert.Equal(t, snap, again)
}

func TestSimulator_NFAStepping(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioNFA(), domain.ModeNFA, "11")
	require.NoError(t, err)

	snap := sim.Forward(ctx)
	assert.True(t, snap.Current.Equal(domain.NewStateSet("q0", "q1")))
	assert.False(t, snap.Finished)

	snap = sim.Forward(ctx)
	assert.True(t, snap.Current.Equal(domain.NewStateSet("q0", "q1", "q2")))
	assert.True(t, snap.Finished)
	assert.True(t, snap.Accepted)
	assertTraceInvariant(t, snap)
}

func TestSimulator_InitializeValidationError(t *testing.T) {
	def := scenarioDFA()
	def.States = "q0,q1"
	def.StartState = "q5"

	sim, err := runtime.Initialize(context.Background(), def, domain.ModeDFA, "01")
	assert.Nil(t, sim)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "start state must be one of the states", verr.Error())
}

func TestSimulator_DeadEnd(t *testing.T) {
	ctx := context.Background()
	def := scenarioDFA()
	def.Transitions = "q0,0,q0\nq0,1,q1\nq1,0,q2\nq2,0,q2\nq2,1,q1"

	sim, err := runtime.Initialize(ctx, def, domain.ModeDFA, "110")
	require.NoError(t, err)

	sim.Forward(ctx)
	snap := sim.Forward(ctx)

	assert.True(t, snap.Finished)
	assert.False(t, snap.Accepted)
	assert.True(t, snap.DeadEnd)
	assert.Equal(t, 2, snap.Position, "position advances past the attempted symbol")
	assert.True(t, snap.Current.Empty())
	assertTraceInvariant(t, snap)

	// Forward after a dead end does nothing even though input remains.
	assert.Equal(t, snap, sim.Forward(ctx))

	// Stepping back clears the dead end and re-enables forward.
	back := sim.Back(ctx)
	assert.False(t, back.Finished)
	assert.False(t, back.DeadEnd)
	assert.Equal(t, 1, back.Position)
	assert.True(t, back.Current.Equal(domain.NewStateSet("q1")))
}

func TestSimulator_NFAEmptySetIsDeadEnd(t *testing.T) {
	ctx := context.Background()
	def := scenarioNFA()
	def.Transitions = "q0,1,q1"
	sim, err := runtime.Initialize(ctx, def, domain.ModeNFA, "11")
	require.NoError(t, err)

	sim.Forward(ctx)
	snap := sim.Forward(ctx)
	assert.True(t, snap.DeadEnd)
	assert.True(t, snap.Finished)
	assert.False(t, snap.Accepted)
	assert.Equal(t, 2, snap.Position)
}

func TestSimulator_BackReenablesForward(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "10")
	require.NoError(t, err)

	sim.Forward(ctx)
	finished := sim.Forward(ctx)
	require.True(t, finished.Finished)
	require.True(t, finished.Accepted)

	back := sim.Back(ctx)
	assert.False(t, back.Finished)
	assert.False(t, back.Accepted)
	assert.Equal(t, domain.StatusReady, back.Status)
	assertTraceInvariant(t, back)

	forward := sim.Forward(ctx)
	assert.Equal(t, finished.Trace, forward.Trace)
	assert.True(t, forward.Accepted)
}

func TestSimulator_ForwardBackRoundTrip(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []domain.Mode{domain.ModeDFA, domain.ModeNFA} {
		t.Run(string(mode), func(t *testing.T) {
			sim, err := runtime.Initialize(ctx, scenarioDFA(), mode, "0110")
			require.NoError(t, err)

			sim.Forward(ctx)
			before := sim.Snapshot()
			sim.Forward(ctx)
			after := sim.Back(ctx)

			assert.Equal(t, before.Position, after.Position)
			assert.Equal(t, before.Trace, after.Trace)
			assert.True(t, before.Current.Equal(after.Current))
		})
	}
}

func TestSimulator_BackAtStartIsNoop(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "1")
	require.NoError(t, err)

	before := sim.Snapshot()
	assert.Equal(t, before, sim.Back(ctx))
}

func TestSimulator_ResetMatchesInitialize(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioNFA(), domain.ModeNFA, "011", runtime.WithRunID(9))
	require.NoError(t, err)
	initial := sim.Snapshot()

	sim.Forward(ctx)
	sim.Forward(ctx)
	reset := sim.Reset(ctx)

	assert.Equal(t, initial, reset)
	assert.Equal(t, uint64(9), reset.RunID)
}

func TestSimulator_EmptyInputFinishesImmediately(t *testing.T) {
	ctx := context.Background()

	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "")
	require.NoError(t, err)
	snap := sim.Snapshot()
	assert.True(t, snap.Finished)
	assert.False(t, snap.Accepted)
	assert.Equal(t, 0, snap.Position)

	def := scenarioDFA()
	def.AcceptStates = "q0"
	sim, err = runtime.Initialize(ctx, def, domain.ModeDFA, "")
	require.NoError(t, err)
	assert.True(t, sim.Snapshot().Accepted)
}

func TestSimulator_Modes(t *testing.T) {
	ctx := context.Background()
	dfa := mustParse(t, scenarioDFA())
	nfa := mustParse(t, scenarioNFA())

	t.Run("DFA in NFA mode", func(t *testing.T) {
		sim, err := runtime.NewSimulator(ctx, dfa, domain.ModeNFA, "10")
		require.NoError(t, err)
		sim.Forward(ctx)
		snap := sim.Forward(ctx)
		assert.Equal(t, domain.ModeNFA, snap.Mode)
		assert.True(t, snap.Accepted)
	})

	t.Run("NFA in DFA mode", func(t *testing.T) {
		_, err := runtime.NewSimulator(ctx, nfa, domain.ModeDFA, "1")
		assert.ErrorIs(t, err, domain.ErrModeMismatch)
	})

	t.Run("mode follows automaton", func(t *testing.T) {
		sim, err := runtime.NewSimulator(ctx, nfa, "", "1")
		require.NoError(t, err)
		assert.Equal(t, domain.ModeNFA, sim.Snapshot().Mode)
	})

	t.Run("nil automaton", func(t *testing.T) {
		_, err := runtime.NewSimulator(ctx, nil, domain.ModeDFA, "1")
		assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	})
}

func TestSimulator_NFAStartsFromClosure(t *testing.T) {
	ctx := context.Background()
	def := domain.Definition{
		Mode:         domain.ModeNFA,
		States:       "q0,q1,q2",
		Alphabet:     "a",
		StartState:   "q0",
		AcceptStates: "q2",
		Transitions:  "q0,,q1\nq1,ε,q2",
	}
	sim, err := runtime.Initialize(ctx, def, "", "")
	require.NoError(t, err)

	snap := sim.Snapshot()
	assert.True(t, snap.Trace[0].Equal(domain.NewStateSet("q0", "q1", "q2")))
	assert.True(t, snap.Accepted)
}

func TestSimulator_Resume(t *testing.T) {
	ctx := context.Background()
	a := mustParse(t, scenarioDFA())

	sim, err := runtime.NewSimulator(ctx, a, domain.ModeDFA, "10")
	require.NoError(t, err)
	saved := sim.Forward(ctx)

	resumed, err := runtime.Resume(a, saved)
	require.NoError(t, err)
	assert.Equal(t, saved, resumed.Snapshot())

	snap := resumed.Forward(ctx)
	assert.True(t, snap.Accepted)

	t.Run("inconsistent trace", func(t *testing.T) {
		broken := saved.Clone()
		broken.Position = 2
		_, err := runtime.Resume(a, broken)
		assert.Error(t, err)
	})

	t.Run("never initialized", func(t *testing.T) {
		_, err := runtime.Resume(a, domain.Simulation{Mode: domain.ModeDFA})
		assert.Error(t, err)
	})
}

func TestSimulator_SnapshotIsIndependent(t *testing.T) {
	ctx := context.Background()
	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "10")
	require.NoError(t, err)

	snap := sim.Snapshot()
	snap.Current.Add("q9")
	snap.Trace[0].Add("q9")

	fresh := sim.Snapshot()
	assert.False(t, fresh.Current.Has("q9"))
	assert.False(t, fresh.Trace[0].Has("q9"))
}

func TestSimulator_HooksAndHistory(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var started, finished []*domain.RunEvent
	var steps []*domain.StepEvent
	hooks := domain.LifecycleHooks{
		OnRunStart:  func(_ context.Context, e *domain.RunEvent) { started = append(started, e) },
		OnStep:      func(_ context.Context, e *domain.StepEvent) { steps = append(steps, e) },
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) { finished = append(finished, e) },
	}
	recorder := &memoryRecorder{}

	sim, err := runtime.Initialize(ctx, scenarioDFA(), domain.ModeDFA, "10",
		runtime.WithLifecycleHooks(hooks),
		runtime.WithHistory(recorder),
		runtime.WithRunID(3),
		runtime.WithClock(func() time.Time { return fixed }),
	)
	require.NoError(t, err)

	sim.Forward(ctx)
	sim.Forward(ctx)
	sim.Back(ctx)

	require.Len(t, started, 1)
	assert.Equal(t, uint64(3), started[0].RunID)
	assert.Equal(t, "10", started[0].Input)

	require.Len(t, steps, 3)
	assert.Equal(t, domain.DirectionForward, steps[0].Direction)
	assert.Equal(t, "1", steps[0].Symbol)
	assert.True(t, steps[0].To.Equal(domain.NewStateSet("q1")))
	assert.Equal(t, domain.DirectionBack, steps[2].Direction)
	assert.Equal(t, fixed, steps[2].Timestamp)

	require.Len(t, finished, 1)
	assert.True(t, finished[0].Accepted)
	assert.True(t, finished[0].Final.Equal(domain.NewStateSet("q2")))

	entries, _ := recorder.List(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.TopicAutomata, entries[0].Topic)
	assert.Equal(t, "DFA processing", entries[0].Operation)
	assert.Equal(t, "q0 --1--> q1 --0--> q2 (ACCEPTED)", entries[0].Formula)
	assert.Equal(t, "10", entries[0].Inputs["input_string"])
}

func TestFormula(t *testing.T) {
	sim := domain.Simulation{
		Input:    "ab",
		Position: 2,
		Trace: []domain.StateSet{
			domain.NewStateSet("q0"),
			domain.NewStateSet("q0", "q1"),
			domain.NewStateSet(),
		},
		Finished: true,
	}
	assert.Equal(t, "q0 --a--> {q0,q1} --b--> ∅ (REJECTED)", runtime.Formula(sim))

	sim.Finished = false
	assert.Equal(t, "q0 --a--> {q0,q1} --b--> ∅", runtime.Formula(sim))
}
