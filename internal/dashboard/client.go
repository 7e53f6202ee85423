package dashboard

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
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"recstatus-dashboard/internal/platform/metrics"

	"github.com/google/uuid"
)

// Keys used in the KeyValueStore.
const (
	TokenKey = "auth_token"
	ThemeKey = "theme"
)

// DefaultRequestTimeout bounds every upstream call unless overridden.
const DefaultRequestTimeout = 10 * time.Second

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 8 << 20

// HTTPDoer is the transport capability. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// KeyValueStore is the persistent string store holding session state.
type KeyValueStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Notifier surfaces user-facing messages.
type Notifier interface {
	Success(msg string)
	Warning(msg string)
	Error(msg string)
}

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the aggregator API root, e.g. "http://localhost:8000".
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient HTTPDoer
	// Store holds the bearer token under TokenKey. Required.
	Store KeyValueStore
	// Timeout is the default per-request timeout (DefaultRequestTimeout if zero).
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Client performs authenticated calls against the recorder aggregator API and
// classifies every failure into a Kind.
type Client struct {
	baseURL string
	http    HTTPDoer
	store   KeyValueStore
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	mu             sync.RWMutex
	onUnauthorized []func() bool
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("dashboard: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("dashboard: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Store == nil {
		return nil, errors.New("dashboard: Store is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		store:   cfg.Store,
		timeout: timeout,
		log:     log.With(slog.String("component", "client")),
		metrics: cfg.Metrics,
	}, nil
}

// OnUnauthorized registers fn to run whenever a response comes back 401.
// Hooks run before the AuthExpired error is returned; fn reports whether it
// already told the user, in which case callers skip their own notification.
func (c *Client) OnUnauthorized(fn func() bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// RequestOptions tune a single call.
type RequestOptions struct {
	Method string
	// Body is JSON-encoded when non-nil.
	Body  any
	Query url.Values
	// Timeout overrides the client default.
	Timeout time.Duration
	// ErrorLabel prefixes the fallback "<label>: <status>" message.
	ErrorLabel string
	// Anonymous sends no bearer token and treats 401 as an ordinary error
	// response. Used by the login endpoints.
	Anonymous bool
}

// Do performs the request and returns the raw response body. A 2xx
// response with an empty or non-JSON body yields a nil payload and no error.
func (c *Client) Do(ctx context.Context, path string, opts RequestOptions) ([]byte, error) {
	body, err := c.do(ctx, path, opts)
	if err != nil && c.metrics != nil {
		c.metrics.IncUpstreamError(KindOf(err).String())
	}
	return body, err
}

func (c *Client) do(ctx context.Context, path string, opts RequestOptions) ([]byte, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	label := opts.ErrorLabel
	if label == "" {
		label = "request failed"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, newError(KindUnknown, "encode request body: "+err.Error(), err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	requestURL := c.baseURL + path
	if len(opts.Query) > 0 {
		requestURL += "?" + opts.Query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, newError(KindUnknown, err.Error(), err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", requestID)
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !opts.Anonymous {
		if token, ok := c.bearerToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.log.With(
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		classified := classifyTransport(ctx, err)
		log.Warn("upstream request failed", slog.String("kind", classified.Kind.String()), slog.String("error", err.Error()))
		return nil, classified
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !opts.Anonymous {
		log.Warn("upstream rejected credentials")
		notified := c.invalidateSession()
		return nil, &Error{Kind: KindAuthExpired, Message: msgAuthExpired, Status: resp.StatusCode, notified: notified}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &Error{Kind: KindRateLimited, Message: msgRateLimited, Status: resp.StatusCode}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		classified := classifyTransport(ctx, err)
		log.Warn("reading upstream response failed", slog.String("kind", classified.Kind.String()), slog.String("error", err.Error()))
		return nil, classified
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseErrorResponse(resp.StatusCode, payload, label)
		log.Debug("upstream error response",
			slog.Int("status", resp.StatusCode),
			slog.String("kind", apiErr.Kind.String()),
			slog.String("error", apiErr.Message))
		return nil, apiErr
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		log.Warn("upstream response is not valid JSON", slog.String("body", truncate(string(trimmed), 100)))
		return nil, nil
	}
	return trimmed, nil
}

// bearerToken reads the stored token. The literal strings "undefined" and
// "null" are leftovers of a corrupted session and are removed.
func (c *Client) bearerToken() (string, bool) {
	token, ok := c.store.Get(TokenKey)
	if !ok || token == "" {
		return "", false
	}
	if token == "undefined" || token == "null" {
		c.log.Warn("found invalid stored token, clearing it")
		if err := c.store.Remove(TokenKey); err != nil {
			c.log.Error("clear invalid token failed", slog.String("error", err.Error()))
		}
		return "", false
	}
	return token, true
}

func (c *Client) invalidateSession() bool {
	if err := c.store.Remove(TokenKey); err != nil {
		c.log.Error("clear token failed", slog.String("error", err.Error()))
	}
	c.mu.RLock()
	hooks := append([]func() bool{}, c.onUnauthorized...)
	c.mu.RUnlock()
	notified := false
	for _, fn := range hooks {
		if fn() {
			notified = true
		}
	}
	return notified
}

// classifyTransport maps a failure to obtain a response. ctx is the
// request-scoped context carrying the timeout.
func classifyTransport(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return newError(KindTimeout, msgTimeout, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return newError(KindUnknown, context.Canceled.Error(), err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(KindUnreachable, msgUnreachable, err)
	}
	return newError(KindUnknown, err.Error(), err)
}

// fieldError is one entry of a validation detail list.
type fieldError struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseErrorResponse turns a non-2xx body into an Error. A detail list
// becomes a KindValidation error; anything else is KindServer.
func parseErrorResponse(status int, body []byte, label string) *Error {
	fallback := &Error{Kind: KindServer, Message: fmt.Sprintf("%s: %d", label, status), Status: status}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &payload) != nil {
		return fallback
	}

	if len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
			return &Error{Kind: KindServer, Message: detail, Status: status}
		}
		var entries []json.RawMessage
		if json.Unmarshal(payload.Detail, &entries) == nil && len(entries) > 0 {
			parts := make([]string, 0, len(entries))
			for _, raw := range entries {
				parts = append(parts, renderFieldError(raw))
			}
			return &Error{Kind: KindValidation, Message: strings.Join(parts, "; "), Status: status}
		}
	}
	if payload.Message != "" {
		return &Error{Kind: KindServer, Message: payload.Message, Status: status}
	}
	return fallback
}

func renderFieldError(raw json.RawMessage) string {
	var fe fieldError
	if json.Unmarshal(raw, &fe) != nil {
		return string(raw)
	}
	if len(fe.Loc) > 0 && fe.Msg != "" {
		loc := make([]string, len(fe.Loc))
		for i, part := range fe.Loc {
			loc[i] = locPart(part)
		}
		return strings.Join(loc, ".") + ": " + fe.Msg
	}
	if fe.Msg != "" {
		return fe.Msg
	}
	return string(raw)
}

// locPart renders one loc element. JSON numbers decode as float64, so whole
// indices are printed without an exponent.
func locPart(part any) string {
	if f, ok := part.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(part)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
