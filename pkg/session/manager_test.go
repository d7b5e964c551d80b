package session_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/adapters/redis"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endsIn01 accepts binary strings ending in "01".
var endsIn01 = domain.Definition{
	Mode:         domain.ModeDFA,
	States:       "q0,q1,q2",
	Alphabet:     "0,1",
	StartState:   "q0",
	AcceptStates: "q2",
	Transitions:  "q0,0,q1\nq0,1,q0\nq1,0,q1\nq1,1,q2\nq2,0,q1\nq2,1,q0",
}

var endsInAB = domain.Definition{
	Mode:         domain.ModeNFA,
	States:       "q0,q1,q2",
	Alphabet:     "a,b",
	StartState:   "q0",
	AcceptStates: "q2",
	Transitions:  "q0,a,q0;q1\nq0,b,q0\nq1,b,q2",
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, sessionID, sess)
}

func (s SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, sessionID)
}

// hookConverter runs before() ahead of every determinization.
type hookConverter struct {
	*convert.Local
	before func(ctx context.Context) error
}

func (h hookConverter) NFAToDFA(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := h.before(ctx); err != nil {
		return domain.Document{}, err
	}
	return h.Local.NFAToDFA(ctx, doc)
}

func TestManager_Lifecycle(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	sess, err := mgr.Start(ctx, "s1", endsIn01, "", "101")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sess.Simulation.RunID)
	assert.Equal(t, domain.StatusReady, sess.Simulation.Status)
	assert.Equal(t, domain.ModeDFA, sess.Definition.Mode)

	for i := 0; i < 3; i++ {
		sess, err = mgr.Forward(ctx, "s1")
		require.NoError(t, err)
	}
	assert.True(t, sess.Simulation.Finished)
	assert.True(t, sess.Simulation.Accepted)
	assert.Equal(t, 3, sess.Simulation.Position)

	sess, err = mgr.Back(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.Simulation.Position)
	assert.False(t, sess.Simulation.Finished)
	assert.True(t, sess.Simulation.Current.Equal(domain.NewStateSet("q1")))

	sess, err = mgr.Reset(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sess.Simulation.RunID)
	assert.Equal(t, 0, sess.Simulation.Position)
	assert.Len(t, sess.Simulation.Trace, 1)

	loaded, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, sess.Simulation.RunID, loaded.Simulation.RunID)

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)

	require.NoError(t, mgr.Delete(ctx, "s1"))
	_, err = mgr.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_StartReplacesRun(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	_, err := mgr.Start(ctx, "s1", endsIn01, "", "1")
	require.NoError(t, err)
	sess, err := mgr.Start(ctx, "s1", endsIn01, "", "01")
	require.NoError(t, err)

	assert.Equal(t, uint64(2), sess.Simulation.RunID)
	assert.Equal(t, "01", sess.Simulation.Input)
}

func TestManager_StartValidationError(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	bad := endsIn01
	bad.StartState = "q9"
	_, err := mgr.Start(ctx, "s1", bad, "", "1")

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start state must be one of the states", verr.Reason)

	_, err = mgr.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "no session is created")

	_, err = mgr.Start(ctx, "", endsIn01, "", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
}

func TestManager_MissingSession(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	_, err := mgr.Forward(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = mgr.Reset(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = mgr.Convert(ctx, "ghost", domain.ConversionMinimize)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_ModeMismatch(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	_, err := mgr.Start(ctx, "s1", endsInAB, domain.ModeDFA, "ab")
	assert.ErrorIs(t, err, domain.ErrModeMismatch)
}

func TestManager_Convert(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())

	_, err := mgr.Start(ctx, "s1", endsInAB, "", "aab")
	require.NoError(t, err)
	_, err = mgr.Forward(ctx, "s1")
	require.NoError(t, err)

	sess, err := mgr.Convert(ctx, "s1", domain.ConversionNFAToDFA)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeDFA, sess.Definition.Mode)
	assert.Equal(t, domain.ModeDFA, sess.Simulation.Mode)
	assert.Equal(t, uint64(2), sess.Simulation.RunID)
	assert.Equal(t, 0, sess.Simulation.Position, "the run restarts on the converted automaton")
	assert.Equal(t, "aab", sess.Simulation.Input)

	for i := 0; i < 3; i++ {
		sess, err = mgr.Forward(ctx, "s1")
		require.NoError(t, err)
	}
	assert.True(t, sess.Simulation.Accepted)

	sess, err = mgr.Convert(ctx, "s1", domain.ConversionMinimize)
	require.NoError(t, err)
	assert.Equal(t, "Q0,Q1,Q2", sess.Definition.States)

	_, err = mgr.Convert(ctx, "s1", domain.ConversionRegexToNFA)
	assert.ErrorIs(t, err, domain.ErrUnknownConversion)
}

func TestManager_ConvertEmptyLanguage(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(memory.NewStore())
	unreachable := domain.Definition{
		Mode:         domain.ModeDFA,
		States:       "p,q",
		Alphabet:     "a",
		StartState:   "p",
		AcceptStates: "q",
		Transitions:  "p,a,p\nq,a,q",
	}

	_, err := mgr.Start(ctx, "s1", unreachable, "", "a")
	require.NoError(t, err)

	_, err = mgr.Convert(ctx, "s1", domain.ConversionMinimize)
	assert.ErrorIs(t, err, domain.ErrEmptyLanguage)
	assert.NotContains(t, err.Error(), "invalid automaton")

	sess, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "p,q", sess.Definition.States, "a failed conversion leaves the session untouched")
}

func TestManager_ConvertStaleResponse(t *testing.T) {
	ctx := context.Background()
	var mgr *session.Manager
	conv := hookConverter{
		Local: convert.NewLocal(),
		before: func(ctx context.Context) error {
			// The user restarts the run while the conversion is in flight.
			_, err := mgr.Reset(ctx, "s1")
			return err
		},
	}
	mgr = session.NewManager(memory.NewStore(), session.WithConverter(conv))

	_, err := mgr.Start(ctx, "s1", endsInAB, "", "ab")
	require.NoError(t, err)

	_, err = mgr.Convert(ctx, "s1", domain.ConversionNFAToDFA)
	assert.ErrorIs(t, err, domain.ErrStaleResponse)

	sess, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.ModeNFA, sess.Definition.Mode, "stale result is not applied")
	assert.Equal(t, uint64(2), sess.Simulation.RunID)
}

func TestManager_ConvertFailureLeavesSession(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend unavailable")
	conv := hookConverter{
		Local:  convert.NewLocal(),
		before: func(context.Context) error { return boom },
	}
	mgr := session.NewManager(memory.NewStore(), session.WithConverter(conv))

	before, err := mgr.Start(ctx, "s1", endsInAB, "", "ab")
	require.NoError(t, err)

	_, err = mgr.Convert(ctx, "s1", domain.ConversionNFAToDFA)
	assert.ErrorIs(t, err, boom)

	after, err := mgr.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, before.Definition, after.Definition)
	assert.Equal(t, before.Simulation.RunID, after.Simulation.RunID)
}

func TestManager_DiffListener(t *testing.T) {
	ctx := context.Background()
	var diffs []*domain.SimulationDiff
	mgr := session.NewManager(memory.NewStore(), session.WithDiffListener(func(_ context.Context, d *domain.SimulationDiff) {
		diffs = append(diffs, d)
	}))

	_, err := mgr.Start(ctx, "s1", endsIn01, "", "10")
	require.NoError(t, err)
	_, err = mgr.Forward(ctx, "s1")
	require.NoError(t, err)
	_, err = mgr.Back(ctx, "s1")
	require.NoError(t, err)
	_, err = mgr.Back(ctx, "s1")
	require.NoError(t, err)

	require.Len(t, diffs, 3, "a no-op back produces no diff")
	assert.Equal(t, "s1", diffs[0].SessionID)
	require.NotNil(t, diffs[0].Trace)
	assert.Equal(t, 0, diffs[0].Trace.Length)

	require.NotNil(t, diffs[1].Trace)
	assert.Equal(t, 1, diffs[1].Trace.Length)
	assert.Len(t, diffs[1].Trace.Appended, 1)

	require.NotNil(t, diffs[2].Position)
	assert.Equal(t, 0, *diffs[2].Position)
}

func TestManager_SimulatorOptions(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistory(5)
	var finished int
	mgr := session.NewManager(memory.NewStore(), session.WithSimulatorOptions(
		runtime.WithHistory(history),
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnRunFinish: func(context.Context, *domain.RunEvent) { finished++ },
		}),
	))

	_, err := mgr.Start(ctx, "s1", endsIn01, "", "01")
	require.NoError(t, err)
	_, err = mgr.Forward(ctx, "s1")
	require.NoError(t, err)
	_, err = mgr.Forward(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, 1, finished)
	entries, err := history.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "DFA processing", entries[0].Operation)
}

func TestManager_ConcurrentForward(t *testing.T) {
	ctx := context.Background()
	mgr := session.NewManager(SlowStore{memory.NewStore()})

	input := strings.Repeat("01", 10)
	_, err := mgr.Start(ctx, "race", endsIn01, "", input)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < len(input); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Forward(ctx, "race")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := mgr.Load(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, len(input), sess.Simulation.Position, "no step is lost")
	assert.Len(t, sess.Simulation.Trace, len(input)+1)
	assert.True(t, sess.Simulation.Accepted)
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	mgr := session.NewManager(
		redis.NewFromClient(client),
		session.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)),
		session.WithLockTTL(5*time.Second),
	)

	_, err := mgr.Start(ctx, "s1", endsIn01, "", "01")
	require.NoError(t, err)
	sess, err := mgr.Forward(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Simulation.Position)

	assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:s1"), "lock is released after each operation")
}
