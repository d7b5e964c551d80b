package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// DiffListener receives the changes produced by every mutating operation.
type DiffListener func(ctx context.Context, diff *domain.SimulationDiff)

// Manager runs simulations stored in a SessionStore and serializes every
// operation on the same session.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	converter ports.Converter
	simOpts   []runtime.Option
	valOpts   []validator.Option
	listeners []DiffListener
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithConverter sets the collaborator used by Convert. Defaults to convert.NewLocal().
func WithConverter(c ports.Converter) Option {
	return func(m *Manager) {
		m.converter = c
	}
}

// WithSimulatorOptions are applied to every simulator the Manager builds
// (hooks, history).
func WithSimulatorOptions(opts ...runtime.Option) Option {
	return func(m *Manager) {
		m.simOpts = append(m.simOpts, opts...)
	}
}

// WithValidatorOptions are applied whenever a stored definition is parsed.
func WithValidatorOptions(opts ...validator.Option) Option {
	return func(m *Manager) {
		m.valOpts = append(m.valOpts, opts...)
	}
}

// WithDiffListener registers a listener for simulation changes.
func WithDiffListener(fn DiffListener) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, fn)
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.converter == nil {
		m.converter = convert.NewLocal(convert.WithLogger(m.logger))
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Start validates def and begins a new run of input. An existing session
// with the same ID is replaced and its RunID advanced.
func (m *Manager) Start(ctx context.Context, sessionID string, def domain.Definition, mode domain.Mode, input string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", domain.ErrInvalidDefinition)
	}
	if def.Mode == "" {
		def.Mode = mode
	}
	a, err := validator.Parse(def, m.valOpts...)
	if err != nil {
		return nil, err
	}

	var out *domain.Session
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		prev, err := m.loadOptional(ctx, sessionID)
		if err != nil {
			return err
		}
		var prevSim *domain.Simulation
		runID := uint64(1)
		if prev != nil {
			prevSim = &prev.Simulation
			runID = prev.Simulation.RunID + 1
		}

		sim, err := runtime.NewSimulator(ctx, a, mode, input, m.simulatorOptions(runtime.WithRunID(runID))...)
		if err != nil {
			return err
		}
		out, err = m.save(ctx, sessionID, def, prevSim, sim.Snapshot())
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.DebugContext(ctx, "session started", "session_id", sessionID, "run_id", out.Simulation.RunID, "mode", out.Simulation.Mode)
	return out, nil
}

// Forward consumes the next symbol of the session's run.
func (m *Manager) Forward(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.mutate(ctx, sessionID, func(ctx context.Context, s *runtime.Simulator) {
		s.Forward(ctx)
	})
}

// Back undoes the last consumed symbol.
func (m *Manager) Back(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.mutate(ctx, sessionID, func(ctx context.Context, s *runtime.Simulator) {
		s.Back(ctx)
	})
}

// Reset restarts the run on the same input under a new RunID, so conversions
// requested before the reset are discarded.
func (m *Manager) Reset(ctx context.Context, sessionID string) (*domain.Session, error) {
	var out *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		a, err := validator.Parse(sess.Definition, m.valOpts...)
		if err != nil {
			return err
		}
		prev := sess.Simulation
		sim, err := runtime.NewSimulator(ctx, a, prev.Mode, prev.Input, m.simulatorOptions(runtime.WithRunID(prev.RunID+1))...)
		if err != nil {
			return err
		}
		out, err = m.save(ctx, sessionID, sess.Definition, &prev, sim.Snapshot())
		return err
	})
	return out, err
}

// Convert applies a conversion to the session's automaton and restarts the
// run on the result. The converter is called without holding the session
// lock; if the session was restarted meanwhile the result is dropped and
// domain.ErrStaleResponse returned. Any failure leaves the session untouched.
func (m *Manager) Convert(ctx context.Context, sessionID string, kind domain.Conversion) (*domain.Session, error) {
	if kind == domain.ConversionRegexToNFA {
		return nil, fmt.Errorf("%w: %s does not apply to a session", domain.ErrUnknownConversion, kind)
	}

	var (
		runID uint64
		doc   domain.Document
	)
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		runID = sess.Simulation.RunID
		doc, err = codec.FromDefinition(sess.Definition, m.valOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	result, err := convert.Apply(ctx, m.converter, convert.Request{Kind: kind, Document: doc})
	if err != nil {
		m.logger.WarnContext(ctx, "conversion failed", "session_id", sessionID, "conversion", kind, "err", err)
		return nil, err
	}
	def, err := codec.ToDefinition(result)
	if err != nil {
		return nil, fmt.Errorf("converter returned an unusable document: %w", err)
	}
	a, err := validator.Parse(def, m.valOpts...)
	if err != nil {
		return nil, fmt.Errorf("converter returned an invalid automaton: %w", err)
	}

	var out *domain.Session
	err = m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.Simulation.RunID != runID {
			return fmt.Errorf("%w: run %d replaced by run %d", domain.ErrStaleResponse, runID, sess.Simulation.RunID)
		}

		prev := sess.Simulation
		sim, err := runtime.NewSimulator(ctx, a, a.Mode(), prev.Input, m.simulatorOptions(runtime.WithRunID(prev.RunID+1))...)
		if err != nil {
			return err
		}
		out, err = m.save(ctx, sessionID, def, &prev, sim.Snapshot())
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.InfoContext(ctx, "session converted", "session_id", sessionID, "conversion", kind, "states", len(a.States))
	return out, nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, sessionID)
		return err
	})
	return sess, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

func (m *Manager) mutate(ctx context.Context, sessionID string, op func(context.Context, *runtime.Simulator)) (*domain.Session, error) {
	var out *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		a, err := validator.Parse(sess.Definition, m.valOpts...)
		if err != nil {
			return fmt.Errorf("stored definition no longer validates: %w", err)
		}
		sim, err := runtime.Resume(a, sess.Simulation, m.simulatorOptions()...)
		if err != nil {
			return err
		}
		op(ctx, sim)
		out, err = m.save(ctx, sessionID, sess.Definition, &sess.Simulation, sim.Snapshot())
		return err
	})
	return out, err
}

func (m *Manager) simulatorOptions(extra ...runtime.Option) []runtime.Option {
	opts := make([]runtime.Option, 0, len(m.simOpts)+len(extra)+1)
	opts = append(opts, runtime.WithLogger(m.logger))
	opts = append(opts, m.simOpts...)
	return append(opts, extra...)
}

// save must be called under the session lock.
func (m *Manager) save(ctx context.Context, sessionID string, def domain.Definition, prev *domain.Simulation, sim domain.Simulation) (*domain.Session, error) {
	sess := &domain.Session{
		ID:         sessionID,
		Definition: def,
		Simulation: sim,
		UpdatedAt:  m.now(),
	}
	if err := m.store.Save(ctx, sessionID, sess); err != nil {
		return nil, fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}
	if diff := domain.Diff(sessionID, prev, &sess.Simulation); diff != nil {
		for _, fn := range m.listeners {
			fn(ctx, diff)
		}
	}
	return sess, nil
}

func (m *Manager) loadOptional(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := m.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check session existence: %w", err)
	}
	return sess, nil
}
