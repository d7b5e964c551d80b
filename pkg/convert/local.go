// Package convert holds the automaton transformations that sit outside the
// simulator: subset construction, DFA minimization and regex compilation.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// Local runs conversions in process. It implements ports.Converter.
type Local struct {
	logger     *slog.Logger
	duplicates validator.DuplicatePolicy
}

// Option configures a Local converter.
type Option func(*Local)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Local) {
		l.logger = logger
	}
}

// WithDuplicatePolicy controls how incoming documents with conflicting DFA
// transitions are validated.
func WithDuplicatePolicy(p validator.DuplicatePolicy) Option {
	return func(l *Local) {
		l.duplicates = p
	}
}

// NewLocal creates an in-process converter.
func NewLocal(opts ...Option) *Local {
	l := &Local{logger: logging.NewNop(), duplicates: validator.DuplicatesOverwrite}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ ports.Converter = (*Local)(nil)

func (l *Local) NFAToDFA(ctx context.Context, doc domain.Document) (domain.Document, error) {
	a, err := l.parse(doc)
	if err != nil {
		return domain.Document{}, err
	}
	dfa, err := Determinize(a)
	if err != nil {
		return domain.Document{}, err
	}
	l.logger.DebugContext(ctx, "determinized", "states_in", len(a.States), "states_out", len(dfa.States))
	return codec.FromAutomaton(dfa), nil
}

func (l *Local) Minimize(ctx context.Context, doc domain.Document) (domain.Document, error) {
	a, err := l.parse(doc)
	if err != nil {
		return domain.Document{}, err
	}
	minimal, err := Minimize(a)
	if err != nil {
		return domain.Document{}, err
	}
	l.logger.DebugContext(ctx, "minimized", "states_in", len(a.States), "states_out", len(minimal.States))
	return codec.FromAutomaton(minimal), nil
}

func (l *Local) RegexToNFA(ctx context.Context, expr string) (domain.Document, error) {
	a, err := FromRegex(expr)
	if err != nil {
		return domain.Document{}, err
	}
	l.logger.DebugContext(ctx, "compiled regex", "regex", expr, "states", len(a.States))
	return codec.FromAutomaton(a), nil
}

func (l *Local) parse(doc domain.Document) (*domain.Automaton, error) {
	return codec.ToAutomaton(doc, validator.WithDuplicatePolicy(l.duplicates), validator.WithLogger(l.logger))
}

// Request is the input of a single conversion.
type Request struct {
	Kind     domain.Conversion
	Document domain.Document // nfa-to-dfa, minimize
	Regex    string          // regex-to-nfa
}

// Apply dispatches req to the matching Converter method.
func Apply(ctx context.Context, c ports.Converter, req Request) (domain.Document, error) {
	switch req.Kind {
	case domain.ConversionNFAToDFA:
		return c.NFAToDFA(ctx, req.Document)
	case domain.ConversionMinimize:
		return c.Minimize(ctx, req.Document)
	case domain.ConversionRegexToNFA:
		return c.RegexToNFA(ctx, req.Regex)
	default:
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrUnknownConversion, req.Kind)
	}
}

// Recording wraps a converter and records every successful conversion.
type Recording struct {
	next     ports.Converter
	recorder ports.HistoryRecorder
	observe  func(kind domain.Conversion, d time.Duration, err error)
	logger   *slog.Logger
	now      func() time.Time
}

// RecordingOption configures a Recording converter.
type RecordingOption func(*Recording)

// WithObserver is called after every conversion, successful or not.
func WithObserver(fn func(kind domain.Conversion, d time.Duration, err error)) RecordingOption {
	return func(r *Recording) {
		r.observe = fn
	}
}

// WithRecordingLogger sets the logger used to report history failures.
func WithRecordingLogger(logger *slog.Logger) RecordingOption {
	return func(r *Recording) {
		r.logger = logger
	}
}

// NewRecording decorates next. A nil recorder disables history.
func NewRecording(next ports.Converter, recorder ports.HistoryRecorder, opts ...RecordingOption) *Recording {
	r := &Recording{next: next, recorder: recorder, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ ports.Converter = (*Recording)(nil)

func (r *Recording) NFAToDFA(ctx context.Context, doc domain.Document) (domain.Document, error) {
	return r.do(ctx, domain.ConversionNFAToDFA, summarize(doc), func() (domain.Document, error) {
		return r.next.NFAToDFA(ctx, doc)
	})
}

func (r *Recording) Minimize(ctx context.Context, doc domain.Document) (domain.Document, error) {
	return r.do(ctx, domain.ConversionMinimize, summarize(doc), func() (domain.Document, error) {
		return r.next.Minimize(ctx, doc)
	})
}

func (r *Recording) RegexToNFA(ctx context.Context, expr string) (domain.Document, error) {
	return r.do(ctx, domain.ConversionRegexToNFA, map[string]any{"regex": expr}, func() (domain.Document, error) {
		return r.next.RegexToNFA(ctx, expr)
	})
}

func (r *Recording) do(ctx context.Context, kind domain.Conversion, inputs map[string]any, call func() (domain.Document, error)) (domain.Document, error) {
	started := r.now()
	out, err := call()
	if r.observe != nil {
		r.observe(kind, r.now().Sub(started), err)
	}
	if err != nil || r.recorder == nil {
		return out, err
	}

	entry := domain.HistoryEntry{
		Topic:     domain.TopicAutomata,
		Operation: kind.Operation(),
		Inputs:    inputs,
		Answer:    summarize(out),
		Timestamp: r.now(),
	}
	if recErr := r.recorder.Record(ctx, entry); recErr != nil {
		r.logger.WarnContext(ctx, "failed to record conversion", "conversion", kind, "err", recErr)
	}
	return out, nil
}

func summarize(doc domain.Document) map[string]any {
	return map[string]any{
		"type":          doc.Type,
		"states":        doc.States,
		"alphabet":      doc.Alphabet,
		"start_state":   doc.StartState,
		"accept_states": doc.AcceptStates,
	}
}
