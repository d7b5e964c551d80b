package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/pkg/adapters/backend"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv, err := NewServer(automata.New(), nil, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeInto[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestLoadSpec(t *testing.T) {
	spec, err := LoadSpec(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", spec.Info.Version)
	assert.NotNil(t, spec.Paths.Find("/sessions/{id}/convert/{kind}"))
}

func TestHealthInfoAndDocs(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	status, body = call(t, http.MethodGet, ts.URL+"/info", nil)
	require.Equal(t, http.StatusOK, status)
	info := decodeInto[map[string]string](t, body)
	assert.Equal(t, automata.Version, info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	status, body = call(t, http.MethodGet, ts.URL+"/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "openapi: 3.0.3")

	status, body = call(t, http.MethodGet, ts.URL+"/swagger", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "swagger-ui")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/process", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestValidate(t *testing.T) {
	ts := newTestServer(t)

	partial := domain.Definition{
		States:       "q0,q1",
		Alphabet:     "a,b",
		StartState:   "q0",
		AcceptStates: "q1",
		Transitions:  "q0,a,q1",
	}
	status, body := call(t, http.MethodPost, ts.URL+"/validate", partial)
	require.Equal(t, http.StatusOK, status, string(body))
	resp := decodeInto[ValidateResponse](t, body)
	assert.True(t, resp.Valid)
	assert.Equal(t, domain.ModeDFA, resp.Automaton.Type)
	assert.Equal(t, []string{"q0,b", "q1,a", "q1,b"}, resp.Missing)

	bad := endsIn01
	bad.Transitions = "q0,0,q1\nq0,1,q9"
	status, body = call(t, http.MethodPost, ts.URL+"/validate", bad)
	require.Equal(t, http.StatusBadRequest, status)
	errResp := decodeInto[backend.ErrorResponse](t, body)
	assert.Equal(t, "transitions", errResp.Field)
	assert.Equal(t, 2, errResp.Line)
	assert.Equal(t, backend.CodeInvalidDefinition, errResp.Code)

	status, body = call(t, http.MethodPost, ts.URL+"/validate", "not an object")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, backend.CodeBadRequest, decodeInto[backend.ErrorResponse](t, body).Code)
}

func TestProcess(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, http.MethodPost, ts.URL+"/process", RunRequest{Definition: endsIn01, Input: "1001"})
	require.Equal(t, http.StatusOK, status, string(body))
	res := decodeInto[automata.Result](t, body)
	assert.True(t, res.Accepted)
	assert.Equal(t, "q0 --1--> q0 --0--> q1 --0--> q1 --1--> q2 (ACCEPTED)", res.Formula)

	status, body = call(t, http.MethodPost, ts.URL+"/process", RunRequest{Definition: endsInAB, Mode: "DFA", Input: "ab"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, backend.CodeModeMismatch, decodeInto[backend.ErrorResponse](t, body).Code)

	status, _ = call(t, http.MethodPost, ts.URL+"/process", RunRequest{Definition: endsIn01, Mode: "pda"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProcess_InputLimit(t *testing.T) {
	ts := newTestServer(t, WithMaxInputSize(2))

	status, body := call(t, http.MethodPost, ts.URL+"/process", RunRequest{Definition: endsIn01, Input: "1001"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decodeInto[backend.ErrorResponse](t, body).Error, "exceeds maximum")
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, http.MethodPost, ts.URL+"/batch", BatchRequest{
		Definition: endsInAB,
		Inputs:     []string{"ab", "ba", "aab"},
	})
	require.Equal(t, http.StatusOK, status, string(body))
	resp := decodeInto[struct {
		Results []automata.BatchResult `json:"results"`
	}](t, body)
	require.Len(t, resp.Results, 3)
	assert.True(t, resp.Results[0].Accepted)
	assert.False(t, resp.Results[1].Accepted)
	assert.True(t, resp.Results[2].Accepted)
}

func TestConvertEndpoints(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, http.MethodPost, ts.URL+"/convert/regex-to-nfa", backend.RegexRequest{Regex: "ab"})
	require.Equal(t, http.StatusOK, status, string(body))
	nfa := decodeInto[domain.Document](t, body)
	assert.Equal(t, domain.ModeNFA, nfa.Type)
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, nfa.States)

	status, body = call(t, http.MethodPost, ts.URL+"/convert/determinize", nfa)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, domain.ModeDFA, decodeInto[domain.Document](t, body).Type)

	status, body = call(t, http.MethodPost, ts.URL+"/convert/minimize", nfa)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, backend.CodeModeMismatch, decodeInto[backend.ErrorResponse](t, body).Code)

	status, body = call(t, http.MethodPost, ts.URL+"/convert/regex-to-nfa", backend.RegexRequest{Regex: "(a"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, backend.CodeInvalidRegex, decodeInto[backend.ErrorResponse](t, body).Code)

	status, body = call(t, http.MethodPost, ts.URL+"/convert/pumping", nfa)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, backend.CodeUnknownConversion, decodeInto[backend.ErrorResponse](t, body).Code)
}

// The conversion endpoints are the contract backend.Client speaks, so an
// engine can use another server as its converter.
func TestBackendClientRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	client, err := backend.New(ts.URL)
	require.NoError(t, err)

	remote := automata.New(automata.WithConverter(client))
	nfa, err := remote.Convert(ctx, convert.Request{Kind: domain.ConversionRegexToNFA, Regex: "a(b|c)*"})
	require.NoError(t, err)
	dfa, err := remote.Convert(ctx, convert.Request{Kind: domain.ConversionNFAToDFA, Document: nfa})
	require.NoError(t, err)
	min, err := remote.Convert(ctx, convert.Request{Kind: domain.ConversionMinimize, Document: dfa})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(min.States), len(dfa.States))

	entries, err := remote.History(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	_, err = client.Minimize(ctx, nfa)
	assert.ErrorIs(t, err, domain.ErrModeMismatch)

	_, err = client.RegexToNFA(ctx, "a**)")
	assert.ErrorIs(t, err, domain.ErrInvalidRegex)

	bad := domain.Document{
		Type:         domain.ModeDFA,
		States:       []string{"q0"},
		Alphabet:     []string{"a"},
		StartState:   "q9",
		AcceptStates: []string{"q0"},
		Transitions:  map[string]any{"q0,a": "q0"},
	}
	_, err = client.NFAToDFA(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidDefinition)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "start_state", verr.Field)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	base := ts.URL + "/sessions/s1"

	status, body := call(t, http.MethodPut, base, RunRequest{Definition: endsInAB, Input: "ab"})
	require.Equal(t, http.StatusOK, status, string(body))
	sess := decodeInto[SessionResponse](t, body)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, uint64(1), sess.Simulation.RunID)
	assert.Equal(t, "q0", sess.Formula)

	status, body = call(t, http.MethodPost, base+"/forward", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	sess = decodeInto[SessionResponse](t, body)
	assert.True(t, sess.Simulation.Current.Equal(domain.NewStateSet("q0", "q1")))

	status, body = call(t, http.MethodPost, base+"/back", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeInto[SessionResponse](t, body).Simulation.Position)

	status, body = call(t, http.MethodPost, base+"/convert/nfa-to-dfa", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	sess = decodeInto[SessionResponse](t, body)
	assert.Equal(t, uint64(2), sess.Simulation.RunID)
	assert.Equal(t, domain.ModeDFA, sess.Simulation.Mode)
	assert.Contains(t, sess.Definition.States, "{q0}")

	status, _ = call(t, http.MethodPost, base+"/convert/regex-to-nfa", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, uint64(3), decodeInto[SessionResponse](t, body).Simulation.RunID)

	status, body = call(t, http.MethodGet, ts.URL+"/sessions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sessions":["s1"]}`, string(body))

	status, _ = call(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = call(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, backend.CodeNotFound, decodeInto[backend.ErrorResponse](t, body).Code)

	status, _ = call(t, http.MethodPost, base+"/forward", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = call(t, http.MethodPost, base+"/sideways", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubscribeEvents(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, http.MethodPut, ts.URL+"/sessions/live", RunRequest{Definition: endsIn01, Input: "01"})
	require.Equal(t, http.StatusOK, status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sessions/live/events?watch=position,trace", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	nextData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok && data != "connected" {
				return data
			}
		}
	}

	initial := decodeInto[domain.SimulationDiff](t, []byte(nextData()))
	require.NotNil(t, initial.RunID)
	assert.Equal(t, uint64(1), *initial.RunID)

	status, _ = call(t, http.MethodPost, ts.URL+"/sessions/live/forward", nil)
	require.Equal(t, http.StatusOK, status)

	diff := decodeInto[domain.SimulationDiff](t, []byte(nextData()))
	assert.Equal(t, "live", diff.SessionID)
	require.NotNil(t, diff.Position)
	assert.Equal(t, 1, *diff.Position)
	require.NotNil(t, diff.Trace)
	assert.Equal(t, 1, diff.Trace.Length)
	assert.Nil(t, diff.RunID)
}

func TestSubscribeEvents_MissingSession(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, http.MethodGet, ts.URL+"/sessions/ghost/events", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWatches(t *testing.T) {
	pos := 2
	diff := &domain.SimulationDiff{SessionID: "s", Position: &pos}

	assert.True(t, watches(diff, nil))
	assert.True(t, watches(diff, []string{"status", " position"}))
	assert.False(t, watches(diff, []string{"trace", "run"}))
}

func TestHistoryCatalogAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "automata_test_total"}))
	ts := newTestServer(t, WithGatherer(reg))

	for _, in := range []string{"01", "10"} {
		status, _ := call(t, http.MethodPost, ts.URL+"/process", RunRequest{Definition: endsIn01, Input: in})
		require.Equal(t, http.StatusOK, status)
	}

	status, body := call(t, http.MethodGet, ts.URL+"/history?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	history := decodeInto[struct {
		Entries []domain.HistoryEntry `json:"entries"`
	}](t, body)
	require.Len(t, history.Entries, 1)
	assert.Equal(t, "10", history.Entries[0].Inputs["input_string"])

	status, _ = call(t, http.MethodGet, ts.URL+"/history?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, http.MethodGet, ts.URL+"/catalog", nil)
	require.Equal(t, http.StatusOK, status)
	catalog := decodeInto[struct {
		Entries []domain.CatalogEntry `json:"entries"`
	}](t, body)
	assert.Len(t, catalog.Entries, 4)

	status, body = call(t, http.MethodGet, ts.URL+"/catalog/even-zeros", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "even-zeros", decodeInto[domain.CatalogEntry](t, body).Name)

	status, _ = call(t, http.MethodGet, ts.URL+"/catalog/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = call(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "automata_test_total")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound, backend.CodeNotFound},
		{domain.ErrStaleResponse, http.StatusConflict, backend.CodeStale},
		{domain.ErrEmptyLanguage, http.StatusUnprocessableEntity, backend.CodeEmptyLanguage},
		{&domain.ValidationError{Field: "states", Reason: "states are required"}, http.StatusBadRequest, backend.CodeInvalidDefinition},
		{&backend.Error{Status: 503, Message: "down"}, http.StatusBadGateway, backend.CodeBackend},
		{errors.New("boom"), http.StatusInternalServerError, backend.CodeInternal},
	}
	for _, tt := range tests {
		status, body := classify(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.code, body.Code, tt.err.Error())
	}
}
