package automata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// Simulator steps through a single run. See NewSimulator and Engine.Simulate.
type Simulator = runtime.Simulator

// Engine is the high-level entry point for the automata library.
// It wraps the validator, the execution engines and the converters behind a
// single configuration.
type Engine struct {
	converter  ports.Converter
	catalog    ports.Catalog
	history    ports.HistoryRecorder
	hooks      domain.LifecycleHooks
	duplicates validator.DuplicatePolicy
	onInvalid  func(error)
	onConvert  func(domain.Conversion, time.Duration, error)
	logger     *slog.Logger
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks. Repeated calls accumulate.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHistory replaces the default in-memory history.
func WithHistory(h ports.HistoryRecorder) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithConverter replaces the in-process converter, e.g. with a backend client.
func WithConverter(c ports.Converter) Option {
	return func(e *Engine) {
		e.converter = c
	}
}

// WithCatalog replaces the built-in example catalog.
func WithCatalog(c ports.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithDuplicatePolicy sets how conflicting DFA transitions are treated.
func WithDuplicatePolicy(p validator.DuplicatePolicy) Option {
	return func(e *Engine) {
		e.duplicates = p
	}
}

// WithValidationObserver is called with every rejected definition.
func WithValidationObserver(fn func(error)) Option {
	return func(e *Engine) {
		e.onInvalid = fn
	}
}

// WithConversionObserver is called after every conversion.
func WithConversionObserver(fn func(domain.Conversion, time.Duration, error)) Option {
	return func(e *Engine) {
		e.onConvert = fn
	}
}

// New initializes an Engine. Without options it converts in process, keeps
// the last domain.DefaultHistoryLimit results in memory and serves the
// built-in catalog.
func New(opts ...Option) *Engine {
	e := &Engine{duplicates: validator.DuplicatesOverwrite}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.history == nil {
		e.history = memory.NewHistory(domain.DefaultHistoryLimit)
	}
	if e.catalog == nil {
		e.catalog = memory.Builtin()
	}
	if e.converter == nil {
		e.converter = convert.NewLocal(convert.WithLogger(e.logger), convert.WithDuplicatePolicy(e.duplicates))
	}

	recOpts := []convert.RecordingOption{convert.WithRecordingLogger(e.logger)}
	if e.onConvert != nil {
		recOpts = append(recOpts, convert.WithObserver(e.onConvert))
	}
	e.converter = convert.NewRecording(e.converter, e.history, recOpts...)
	return e
}

// Validate checks def and builds the automaton.
func (e *Engine) Validate(def domain.Definition) (*domain.Automaton, error) {
	a, err := validator.Parse(def, e.ValidatorOptions()...)
	if err != nil {
		if e.onInvalid != nil {
			e.onInvalid(err)
		}
		e.logger.Debug("definition rejected", "err", err)
		return nil, err
	}
	return a, nil
}

// ValidatorOptions returns the options Validate applies, for components that
// parse definitions on their own.
func (e *Engine) ValidatorOptions() []validator.Option {
	return []validator.Option{
		validator.WithDuplicatePolicy(e.duplicates),
		validator.WithLogger(e.logger),
	}
}

// SimulatorOptions returns the hooks, history and logger every simulator of
// this engine runs with.
func (e *Engine) SimulatorOptions() []runtime.Option {
	return []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithHistory(e.history),
	}
}

// Simulate validates def and returns a simulator positioned before the first
// symbol of input. An empty mode follows the definition.
func (e *Engine) Simulate(ctx context.Context, def domain.Definition, mode domain.Mode, input string) (*Simulator, error) {
	if def.Mode == "" {
		def.Mode = mode
	}
	a, err := e.Validate(def)
	if err != nil {
		return nil, err
	}
	return runtime.NewSimulator(ctx, a, mode, input, e.SimulatorOptions()...)
}

// Result is the outcome of a whole-string evaluation.
type Result struct {
	Mode     domain.Mode       `json:"mode"`
	Input    string            `json:"input"`
	Accepted bool              `json:"accepted"`
	DeadEnd  bool              `json:"dead_end"`
	Consumed int               `json:"consumed"`
	Final    domain.StateSet   `json:"final"`
	Trace    []domain.StateSet `json:"trace"`
	Formula  string            `json:"formula"`
}

// Process evaluates input in one go. It drives the same simulator as the
// step-by-step mode, so hooks fire and the result is recorded in history.
func (e *Engine) Process(ctx context.Context, def domain.Definition, mode domain.Mode, input string) (*Result, error) {
	sim, err := e.Simulate(ctx, def, mode, input)
	if err != nil {
		return nil, err
	}
	snap := sim.Snapshot()
	for !snap.Finished {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap = sim.Forward(ctx)
	}

	consumed := snap.Position
	if snap.DeadEnd {
		consumed--
	}
	// A DFA stops on the last state it reached; the simulator's trailing
	// empty snapshot only marks the missing transition.
	if snap.DeadEnd && snap.Mode == domain.ModeDFA && len(snap.Trace) > 1 {
		snap.Trace = snap.Trace[:len(snap.Trace)-1]
		snap.Current = snap.Trace[len(snap.Trace)-1]
	}
	return &Result{
		Mode:     snap.Mode,
		Input:    snap.Input,
		Accepted: snap.Accepted,
		DeadEnd:  snap.DeadEnd,
		Consumed: consumed,
		Final:    snap.Current,
		Trace:    snap.Trace,
		Formula:  runtime.Formula(snap),
	}, nil
}

// BatchResult is the verdict for one input of a batch.
type BatchResult struct {
	Input    string   `json:"input"`
	Accepted bool     `json:"accepted"`
	DeadEnd  bool     `json:"dead_end"`
	Final    []string `json:"final"`
}

// Batch evaluates every input against a. Batches skip hooks and history.
func (e *Engine) Batch(ctx context.Context, a *domain.Automaton, inputs []string) ([]BatchResult, error) {
	out := make([]BatchResult, 0, len(inputs))
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r := BatchResult{Input: in}
		if a.Mode() == domain.ModeDFA {
			res, err := runtime.ProcessDFA(a, in)
			if err != nil {
				return nil, err
			}
			// On a dead end FinalState is the last state reached.
			r.Accepted, r.DeadEnd = res.Accepted, res.DeadEnd
			r.Final = []string{res.FinalState}
		} else {
			res := runtime.ProcessNFA(a, in)
			r.Accepted, r.DeadEnd = res.Accepted, res.DeadEnd
			r.Final = a.Ordered(res.FinalStates)
		}
		out = append(out, r)
	}
	e.logger.DebugContext(ctx, "batch evaluated", "inputs", len(inputs))
	return out, nil
}

// Convert runs a conversion through the configured converter and records it.
func (e *Engine) Convert(ctx context.Context, req convert.Request) (domain.Document, error) {
	doc, err := convert.Apply(ctx, e.converter, req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%s failed: %w", req.Kind.Operation(), err)
	}
	return doc, nil
}

// Converter returns the recording converter used by Convert.
func (e *Engine) Converter() ports.Converter {
	return e.converter
}

// Catalog returns the example catalog.
func (e *Engine) Catalog() ports.Catalog {
	return e.catalog
}

// History returns the retained results, oldest first.
func (e *Engine) History(ctx context.Context) ([]domain.HistoryEntry, error) {
	return e.history.List(ctx)
}

// HistoryRecorder returns the recorder shared by simulators and converters.
func (e *Engine) HistoryRecorder() ports.HistoryRecorder {
	return e.history
}

// Formula renders the trace of sim as "q0 --1--> q1 (ACCEPTED)".
func Formula(sim domain.Simulation) string {
	return runtime.Formula(sim)
}
