package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/convert"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/runner"
	"github.com/aretw0/automata/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	catalogURI = "automata://catalog"
	historyURI = "automata://history"
)

// DefinitionArgs are the definition fields every tool that builds an automaton accepts.
type DefinitionArgs struct {
	Mode         string `json:"mode,omitempty"`
	States       string `json:"states"`
	Alphabet     string `json:"alphabet"`
	StartState   string `json:"start_state"`
	AcceptStates string `json:"accept_states"`
	Transitions  string `json:"transitions"`
}

func (a DefinitionArgs) definition() (domain.Definition, error) {
	def := domain.Definition{
		States:       a.States,
		Alphabet:     a.Alphabet,
		StartState:   a.StartState,
		AcceptStates: a.AcceptStates,
		Transitions:  a.Transitions,
	}
	if a.Mode != "" {
		mode, err := domain.ParseMode(a.Mode)
		if err != nil {
			return domain.Definition{}, err
		}
		def.Mode = mode
	}
	return def, nil
}

// ValidateArgs are the arguments of the validate tool.
type ValidateArgs struct {
	DefinitionArgs
}

// ProcessArgs are the arguments of the process tool.
type ProcessArgs struct {
	DefinitionArgs
	Input string `json:"input"`
}

// StartArgs are the arguments of the start_session tool.
type StartArgs struct {
	DefinitionArgs
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// StepArgs are the arguments of the step_session tool.
type StepArgs struct {
	SessionID string `json:"session_id"`
	Direction string `json:"direction"`
}

// ConvertArgs are the arguments of the convert tool. Regex is used by
// regex-to-nfa; the other conversions read the definition fields.
type ConvertArgs struct {
	DefinitionArgs
	Kind  string `json:"kind"`
	Regex string `json:"regex,omitempty"`
}

// CatalogArgs are the arguments of the get_catalog_entry tool.
type CatalogArgs struct {
	Name string `json:"name"`
}

// ValidateResult reports whether a definition is usable. Invalid definitions
// are a result, not a tool failure, so the caller can fix the named field.
type ValidateResult struct {
	Valid     bool             `json:"valid"`
	Automaton *domain.Document `json:"automaton,omitempty"`
	Missing   []string         `json:"missing,omitempty"`
	Error     string           `json:"error,omitempty"`
	Field     string           `json:"field,omitempty"`
	Line      int              `json:"line,omitempty"`
}

// SessionResult is a stored run plus its rendered trace.
type SessionResult struct {
	Session domain.Session `json:"session"`
	Formula string         `json:"formula"`
}

// Server wraps the automata Engine and exposes it as an MCP Server.
type Server struct {
	engine    *automata.Engine
	sessions  *session.Manager
	sanitizer runner.Sanitizer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxInputSize caps the input strings the tools accept.
func WithMaxInputSize(n int) Option {
	return func(s *Server) {
		s.sanitizer.MaxSize = n
	}
}

// NewServer creates a new MCP Server instance. A nil sessions manager gets an
// in-memory one bound to engine.
func NewServer(engine *automata.Engine, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("automata-mcp", automata.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(memory.NewStore(),
			session.WithLogger(s.logger),
			session.WithConverter(engine.Converter()),
			session.WithSimulatorOptions(engine.SimulatorOptions()...),
			session.WithValidatorOptions(engine.ValidatorOptions()...),
		)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func definitionParams(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append([]mcp.ToolOption{
		mcp.WithString("mode", mcp.Description("dfa or nfa; defaults to dfa"), mcp.Enum("dfa", "nfa")),
		mcp.WithString("states", mcp.Required(), mcp.Description("Comma separated state names, e.g. q0,q1,q2")),
		mcp.WithString("alphabet", mcp.Required(), mcp.Description("Comma separated symbols, e.g. 0,1")),
		mcp.WithString("start_state", mcp.Required(), mcp.Description("The initial state")),
		mcp.WithString("accept_states", mcp.Required(), mcp.Description("Comma separated accepting states")),
		mcp.WithString("transitions", mcp.Required(), mcp.Description("One state,symbol,next per line; NFA targets are ';' separated and an empty symbol is epsilon")),
	}, opts...)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate", append(definitionParams(),
		mcp.WithDescription("Check an automaton definition and report the first problem with its field and line."),
		mcp.WithOutputSchema[ValidateResult](),
	)...), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("process", append(definitionParams(
		mcp.WithString("input", mcp.Description("The string to evaluate")),
	),
		mcp.WithDescription("Evaluate a whole input string and return the verdict with its trace."),
		mcp.WithOutputSchema[automata.Result](),
	)...), mcp.NewStructuredToolHandler(s.handleProcess))

	s.mcpServer.AddTool(mcp.NewTool("start_session", append(definitionParams(
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session to create or replace")),
		mcp.WithString("input", mcp.Description("The string to step through")),
	),
		mcp.WithDescription("Start a step-by-step run, replacing any previous run of the session."),
		mcp.WithOutputSchema[SessionResult](),
	)...), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("step_session",
		mcp.WithDescription("Move a step-by-step run one symbol forward or back, or reset it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Existing session")),
		mcp.WithString("direction", mcp.Required(), mcp.Enum("forward", "back", "reset")),
		mcp.WithOutputSchema[SessionResult](),
	), mcp.NewStructuredToolHandler(s.handleStep))

	s.mcpServer.AddTool(mcp.NewTool("convert", append(definitionParams(
		mcp.WithString("kind", mcp.Required(), mcp.Enum("nfa-to-dfa", "minimize", "regex-to-nfa")),
		mcp.WithString("regex", mcp.Description("Expression for regex-to-nfa, e.g. (a|b)*abb")),
	),
		mcp.WithDescription("Determinize, minimize, or compile a regular expression. Returns the resulting automaton."),
		mcp.WithOutputSchema[domain.Document](),
	)...), mcp.NewStructuredToolHandler(s.handleConvert))

	s.mcpServer.AddTool(mcp.NewTool("get_catalog_entry",
		mcp.WithDescription("Load a ready-made automaton definition by name."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Entry name, see the automata://catalog resource")),
		mcp.WithOutputSchema[domain.CatalogEntry](),
	), mcp.NewStructuredToolHandler(s.handleCatalogEntry))
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args ValidateArgs) (ValidateResult, error) {
	def, err := args.definition()
	if err != nil {
		return invalid(err), nil
	}
	a, err := s.engine.Validate(def)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidDefinition) {
			return invalid(err), nil
		}
		return ValidateResult{}, err
	}

	doc := codec.FromAutomaton(a)
	res := ValidateResult{Valid: true, Automaton: &doc}
	for _, k := range a.Missing() {
		res.Missing = append(res.Missing, k.State+","+k.Symbol)
	}
	return res, nil
}

func invalid(err error) ValidateResult {
	res := ValidateResult{Error: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		res.Error, res.Field, res.Line = verr.Reason, verr.Field, verr.Line
	}
	return res
}

func (s *Server) handleProcess(ctx context.Context, request mcp.CallToolRequest, args ProcessArgs) (automata.Result, error) {
	def, err := args.definition()
	if err != nil {
		return automata.Result{}, err
	}
	input, err := s.sanitize(ctx, args.Input)
	if err != nil {
		return automata.Result{}, err
	}
	res, err := s.engine.Process(ctx, def, def.Mode, input)
	if err != nil {
		return automata.Result{}, err
	}
	return *res, nil
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args StartArgs) (SessionResult, error) {
	def, err := args.definition()
	if err != nil {
		return SessionResult{}, err
	}
	input, err := s.sanitize(ctx, args.Input)
	if err != nil {
		return SessionResult{}, err
	}
	return sessionResult(s.sessions.Start(ctx, args.SessionID, def, def.Mode, input))
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest, args StepArgs) (SessionResult, error) {
	switch args.Direction {
	case "forward":
		return sessionResult(s.sessions.Forward(ctx, args.SessionID))
	case "back":
		return sessionResult(s.sessions.Back(ctx, args.SessionID))
	case "reset":
		return sessionResult(s.sessions.Reset(ctx, args.SessionID))
	default:
		return SessionResult{}, fmt.Errorf("unknown direction %q", args.Direction)
	}
}

func sessionResult(sess *domain.Session, err error) (SessionResult, error) {
	if err != nil {
		return SessionResult{}, err
	}
	return SessionResult{Session: *sess, Formula: automata.Formula(sess.Simulation)}, nil
}

func (s *Server) handleConvert(ctx context.Context, request mcp.CallToolRequest, args ConvertArgs) (domain.Document, error) {
	kind, err := domain.ParseConversion(args.Kind)
	if err != nil {
		return domain.Document{}, err
	}

	req := convert.Request{Kind: kind, Regex: args.Regex}
	if kind != domain.ConversionRegexToNFA {
		def, err := args.definition()
		if err != nil {
			return domain.Document{}, err
		}
		a, err := s.engine.Validate(def)
		if err != nil {
			return domain.Document{}, err
		}
		req.Document = codec.FromAutomaton(a)
	}
	return s.engine.Convert(ctx, req)
}

func (s *Server) handleCatalogEntry(ctx context.Context, request mcp.CallToolRequest, args CatalogArgs) (domain.CatalogEntry, error) {
	return s.engine.Catalog().Get(ctx, args.Name)
}

func (s *Server) sanitize(ctx context.Context, input string) (string, error) {
	clean, err := s.sanitizer.Sanitize(input)
	if err != nil {
		s.logger.WarnContext(ctx, "MCP: input rejected", "error", err, "size", len(input))
		return "", fmt.Errorf("input rejected: %w", err)
	}
	return clean, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(catalogURI, "Automaton Catalog",
		mcp.WithResourceDescription("Ready-made automaton definitions with sample inputs"),
		mcp.WithMIMEType("application/json"),
	), s.readCatalog)

	s.mcpServer.AddResource(mcp.NewResource(historyURI, "Computation History",
		mcp.WithResourceDescription("The most recent runs and conversions, oldest first"),
		mcp.WithMIMEType("application/json"),
	), s.readHistory)
}

func (s *Server) readCatalog(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries, err := s.engine.Catalog().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return jsonResource(catalogURI, entries)
}

func (s *Server) readHistory(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	entries, err := s.engine.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return jsonResource(historyURI, entries)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
