package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/automata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "automata"

// Metrics exports simulator and converter activity to Prometheus.
type Metrics struct {
	runs        *prometheus.CounterVec
	steps       *prometheus.CounterVec
	validations *prometheus.CounterVec
	conversions *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "runs_total",
				Help:      "Finished simulation runs by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "steps_total",
				Help:      "Simulator steps by mode and direction.",
			},
			[]string{"mode", "direction"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "validation_failures_total",
				Help:      "Rejected definitions by offending field.",
			},
			[]string{"field"},
		),
		conversions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Duration of automaton conversions.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"conversion", "result"},
		),
	}

	for _, c := range []prometheus.Collector{m.runs, m.steps, m.validations, m.conversions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records runs and steps.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStep: func(_ context.Context, e *domain.StepEvent) {
			m.steps.WithLabelValues(string(e.Mode), string(e.Direction)).Inc()
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			m.runs.WithLabelValues(string(e.Mode), Outcome(e.Accepted, e.DeadEnd)).Inc()
		},
	}
}

// ObserveValidation counts a failed validation. Other errors are ignored.
func (m *Metrics) ObserveValidation(err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		m.validations.WithLabelValues(verr.Field).Inc()
	}
}

// ObserveConversion records a conversion duration. Its signature matches
// convert.WithObserver.
func (m *Metrics) ObserveConversion(kind domain.Conversion, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.conversions.WithLabelValues(string(kind), result).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Outcome labels a finished run.
func Outcome(accepted, deadEnd bool) string {
	switch {
	case accepted:
		return "accepted"
	case deadEnd:
		return "dead_end"
	default:
		return "rejected"
	}
}
