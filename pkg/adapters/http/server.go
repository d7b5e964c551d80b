package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/adapters/backend"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/observability"
	"github.com/aretw0/automata/pkg/runner"
	"github.com/aretw0/automata/pkg/session"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

//go:embed openapi.yaml
var openAPISpec []byte

// DefaultMaxBodySize caps request bodies.
const DefaultMaxBodySize = 1 << 20

// errBadRequest marks malformed requests (bad JSON, bad parameters).
var errBadRequest = errors.New("bad request")

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// RawSpec returns the embedded OpenAPI document.
func RawSpec() []byte {
	return openAPISpec
}

// Server exposes an Engine and a session Manager over HTTP.
type Server struct {
	engine    *automata.Engine
	sessions  *session.Manager
	streams   *StreamManager
	gatherer  prometheus.Gatherer
	spec      *openapi3.T
	sanitizer runner.Sanitizer
	maxBody   int64
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams sets the manager serving /sessions/{id}/events. It must be the
// one registered as the session manager's diff listener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxInputSize bounds simulation input strings.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.sanitizer.MaxSize = n
	}
}

// NewServer builds a server. A nil sessions manager is replaced by an
// in-memory one sharing the engine's converter, hooks and history.
func NewServer(engine *automata.Engine, sessions *session.Manager, opts ...Option) (*Server, error) {
	s := &Server{
		engine:   engine,
		sessions: sessions,
		maxBody:  DefaultMaxBodySize,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(memory.NewStore(),
			session.WithLogger(s.logger),
			session.WithConverter(engine.Converter()),
			session.WithSimulatorOptions(engine.SimulatorOptions()...),
			session.WithValidatorOptions(engine.ValidatorOptions()...),
			session.WithDiffListener(s.streams.Publish),
		)
	}

	spec, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}
	s.spec = spec
	return s, nil
}

// Sessions returns the manager behind the /sessions endpoints.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.logRequests)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openAPISpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", observability.Handler(s.gatherer))
	}

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Post("/validate", s.Validate)
	r.Post("/process", s.Process)
	r.Post("/batch", s.Batch)
	r.Post("/convert/{kind}", s.Convert)

	r.Get("/sessions", s.ListSessions)
	r.Put("/sessions/{id}", s.StartSession)
	r.Get("/sessions/{id}", s.GetSession)
	r.Delete("/sessions/{id}", s.DeleteSession)
	r.Get("/sessions/{id}/events", s.SubscribeEvents)
	r.Post("/sessions/{id}/convert/{kind}", s.ConvertSession)
	r.Post("/sessions/{id}/{step}", s.StepSession)

	r.Get("/history", s.GetHistory)
	r.Get("/catalog", s.ListCatalog)
	r.Get("/catalog/{name}", s.GetCatalogEntry)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "http request",
			"method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"duration", time.Since(started), "request_id", middleware.GetReqID(r.Context()))
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Automata API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// RunRequest is the body of /process and PUT /sessions/{id}.
type RunRequest struct {
	Definition domain.Definition `json:"definition"`
	Mode       domain.Mode       `json:"mode,omitempty"`
	Input      string            `json:"input"`
}

// BatchRequest is the body of /batch.
type BatchRequest struct {
	Definition domain.Definition `json:"definition"`
	Mode       domain.Mode       `json:"mode,omitempty"`
	Inputs     []string          `json:"inputs"`
}

// ValidateResponse describes an accepted definition.
type ValidateResponse struct {
	Valid     bool            `json:"valid"`
	Automaton domain.Document `json:"automaton"`
	// Missing lists "state,symbol" pairs a partial DFA leaves undefined.
	Missing []string `json:"missing,omitempty"`
}

// SessionResponse is a stored run plus its rendered trace.
type SessionResponse struct {
	domain.Session
	Formula string `json:"formula"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.spec.Info != nil {
		apiVersion = s.spec.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "automata-http",
		"version":     automata.Version,
		"api_version": apiVersion,
	})
}

// Validate handles the POST /validate request.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var def domain.Definition
	if err := s.decode(w, r, &def); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode, err := parseMode(def.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	def.Mode = mode

	a, err := s.engine.Validate(def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := ValidateResponse{Valid: true, Automaton: codec.FromAutomaton(a)}
	for _, k := range a.Missing() {
		resp.Missing = append(resp.Missing, k.State+","+k.Symbol)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// Process handles the POST /process request.
func (s *Server) Process(w http.ResponseWriter, r *http.Request) {
	req, err := s.runRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.Process(r.Context(), req.Definition, req.Mode, req.Input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Batch handles the POST /batch request.
func (s *Server) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if mode != "" {
		req.Definition.Mode = mode
	}
	for i, in := range req.Inputs {
		clean, err := s.sanitizer.Sanitize(in)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("input %d: %w", i, err))
			return
		}
		req.Inputs[i] = clean
	}

	a, err := s.engine.Validate(req.Definition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	results, err := s.engine.Batch(r.Context(), a, req.Inputs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Convert handles the POST /convert/{kind} request. It serves the contract
// backend.Client speaks, so one instance can be the conversion backend of another.
func (s *Server) Convert(w http.ResponseWriter, r *http.Request) {
	kind, err := conversionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	req := convert.Request{Kind: kind}
	if kind == domain.ConversionRegexToNFA {
		var body backend.RegexRequest
		if err := json.Unmarshal(data, &body); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		req.Regex = body.Regex
	} else {
		doc, err := codec.Decode(data, codec.FormatJSON)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		req.Document = doc
	}

	doc, err := s.engine.Convert(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// StartSession handles the PUT /sessions/{id} request.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req, err := s.runRequest(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Start(r.Context(), id, req.Definition, req.Mode, req.Input)
	s.writeSession(w, r, sess, err)
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Load(r.Context(), id)
	s.writeSession(w, r, sess, err)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StepSession handles POST /sessions/{id}/{forward,back,reset}.
func (s *Server) StepSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	step, err := pathParam(r, "step")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var op func(context.Context, string) (*domain.Session, error)
	switch domain.Direction(step) {
	case domain.DirectionForward:
		op = s.sessions.Forward
	case domain.DirectionBack:
		op = s.sessions.Back
	case domain.DirectionReset:
		op = s.sessions.Reset
	default:
		http.NotFound(w, r)
		return
	}
	sess, err := op(r.Context(), id)
	s.writeSession(w, r, sess, err)
}

// ConvertSession handles the POST /sessions/{id}/convert/{kind} request.
func (s *Server) ConvertSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	kind, err := conversionParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Convert(r.Context(), id, kind)
	s.writeSession(w, r, sess, err)
}

// GetHistory handles the GET /history request.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if err := bindQuery(r, "limit", true, &limit); err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.engine.History(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit != nil && *limit > 0 && *limit < len(entries) {
		entries = entries[len(entries)-*limit:]
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ListCatalog handles the GET /catalog request.
func (s *Server) ListCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.Catalog().List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GetCatalogEntry handles the GET /catalog/{name} request.
func (s *Server) GetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "name")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.engine.Catalog().Get(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody)).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) runRequest(w http.ResponseWriter, r *http.Request) (RunRequest, error) {
	var req RunRequest
	if err := s.decode(w, r, &req); err != nil {
		return req, err
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		return req, err
	}
	req.Mode = mode

	clean, err := s.sanitizer.Sanitize(req.Input)
	if err != nil {
		s.logger.WarnContext(r.Context(), "input rejected", "err", err, "size", len(req.Input))
		return req, err
	}
	req.Input = clean
	return req, nil
}

// parseMode normalizes an optional mode; empty stays empty.
func parseMode(m domain.Mode) (domain.Mode, error) {
	if m == "" {
		return "", nil
	}
	return domain.ParseMode(string(m))
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, sess *domain.Session, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{Session: *sess, Formula: automata.Formula(sess.Simulation)})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.DebugContext(r.Context(), "request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	s.writeJSON(w, status, body)
}

// classify maps err onto an HTTP status and the backend error contract.
func classify(err error) (int, backend.ErrorResponse) {
	body := backend.ErrorResponse{Error: err.Error(), Code: backend.CodeFor(err)}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Error, body.Field, body.Line = verr.Reason, verr.Field, verr.Line
	}

	var berr *backend.Error
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrEntryNotFound):
		body.Code = backend.CodeNotFound
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrUnknownConversion):
		return http.StatusNotFound, body
	case errors.Is(err, domain.ErrStaleResponse):
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrModeMismatch), errors.Is(err, domain.ErrEmptyLanguage):
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrInvalidDefinition), errors.Is(err, domain.ErrInvalidRegex):
		return http.StatusBadRequest, body
	case errors.Is(err, errBadRequest), errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		body.Code = backend.CodeBadRequest
		return http.StatusBadRequest, body
	case errors.As(err, &berr):
		body.Code = backend.CodeBackend
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}
