package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/internal/validator"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var singleA = domain.Definition{
	States:       "q0,q1",
	Alphabet:     "a,b",
	StartState:   "q0",
	AcceptStates: "q1",
	Transitions:  "q0,a,q1",
}

func TestMetrics_Hooks(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	opts := runtime.WithLifecycleHooks(m.Hooks())

	accepted, err := runtime.Initialize(ctx, singleA, "", "a", opts)
	require.NoError(t, err)
	accepted.Forward(ctx)
	accepted.Back(ctx)
	accepted.Forward(ctx)

	dead, err := runtime.Initialize(ctx, singleA, "", "b", opts)
	require.NoError(t, err)
	dead.Forward(ctx)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("dfa", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dfa", "dead_end")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.steps.WithLabelValues("dfa", "forward")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.steps.WithLabelValues("dfa", "back")))
}

func TestMetrics_Validation(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	bad := singleA
	bad.AcceptStates = ""
	_, verr := validator.Parse(bad)
	require.Error(t, verr)

	m.ObserveValidation(verr)
	m.ObserveValidation(errors.New("unrelated"))
	m.ObserveValidation(nil)

	assert.Equal(t, 1, testutil.CollectAndCount(m.validations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validations.WithLabelValues("accept_states")))
}

func TestMetrics_Conversions(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveConversion(domain.ConversionMinimize, 3*time.Millisecond, nil)
	m.ObserveConversion(domain.ConversionMinimize, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(m.conversions))
}

func TestMetrics_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	m.ObserveConversion(domain.ConversionNFAToDFA, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "automata_conversion_duration_seconds"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "accepted", Outcome(true, false))
	assert.Equal(t, "dead_end", Outcome(false, true))
	assert.Equal(t, "rejected", Outcome(false, false))
}
