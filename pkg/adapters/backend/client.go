// Package backend implements ports.Converter against a remote conversion
// service speaking the /convert/* JSON contract.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/automata/internal/logging"
	"github.com/aretw0/automata/pkg/codec"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/ports"
)

// DefaultTimeout bounds a single conversion request.
const DefaultTimeout = 10 * time.Second

// maxResponseSize caps the body read from the backend.
const maxResponseSize = 4 << 20

// Error is a non-2xx answer from the backend.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("conversion backend returned %d: %s", e.Status, e.Message)
}

// Is matches the domain sentinel named by Code.
func (e *Error) Is(target error) bool {
	sentinel, ok := codes[e.Code]
	return ok && target == sentinel
}

// Error codes shared with the server side of the contract.
const (
	CodeInvalidDefinition = "invalid_definition"
	CodeInvalidRegex      = "invalid_regex"
	CodeModeMismatch      = "mode_mismatch"
	CodeEmptyLanguage     = "empty_language"
	CodeUnknownConversion = "unknown_conversion"
	CodeNotFound          = "not_found"
	CodeStale             = "stale_response"
	CodeBadRequest        = "bad_request"
	CodeBackend           = "backend_error"
	CodeInternal          = "internal"
)

var codes = map[string]error{
	CodeInvalidDefinition: domain.ErrInvalidDefinition,
	CodeInvalidRegex:      domain.ErrInvalidRegex,
	CodeModeMismatch:      domain.ErrModeMismatch,
	CodeEmptyLanguage:     domain.ErrEmptyLanguage,
	CodeUnknownConversion: domain.ErrUnknownConversion,
	CodeStale:             domain.ErrStaleResponse,
}

// CodeFor returns the contract code of err.
func CodeFor(err error) string {
	for code, sentinel := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeInternal
}

// Client calls a remote converter.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ ports.Converter = (*Client)(nil)

func (c *Client) NFAToDFA(ctx context.Context, doc domain.Document) (domain.Document, error) {
	return c.post(ctx, domain.ConversionNFAToDFA, doc)
}

func (c *Client) Minimize(ctx context.Context, doc domain.Document) (domain.Document, error) {
	return c.post(ctx, domain.ConversionMinimize, doc)
}

// RegexRequest is the body of /convert/regex-to-nfa.
type RegexRequest struct {
	Regex string `json:"regex"`
}

func (c *Client) RegexToNFA(ctx context.Context, expr string) (domain.Document, error) {
	return c.post(ctx, domain.ConversionRegexToNFA, RegexRequest{Regex: expr})
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func (c *Client) post(ctx context.Context, kind domain.Conversion, body any) (domain.Document, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("convert", string(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return domain.Document{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("conversion backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.Document{}, fmt.Errorf("failed to read backend response: %w", err)
	}
	c.logger.DebugContext(ctx, "backend conversion",
		"conversion", kind, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Document{}, decodeError(resp.StatusCode, data)
	}

	doc, err := codec.Decode(data, codec.FormatJSON)
	if err != nil {
		return domain.Document{}, fmt.Errorf("malformed backend response: %w", err)
	}
	return doc, nil
}

func decodeError(status int, data []byte) error {
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &Error{Status: status, Message: msg}
	}
	e := &Error{Status: status, Code: body.Code, Message: body.Error}
	if body.Field != "" {
		return errors.Join(e, &domain.ValidationError{Field: body.Field, Line: body.Line, Reason: body.Error})
	}
	return e
}
