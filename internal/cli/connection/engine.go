package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
	"github.com/yndnr/salesdesk-go/internal/telemetry/metric"
)

// Descriptor describes one logical request. It is not modified by Execute.
type Descriptor struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
	// Timeout bounds each attempt. Zero means the engine default.
	Timeout time.Duration
	// MaxAttempts overrides the retry policy budget when positive.
	MaxAttempts int
}

// Response is a successful (2xx) result.
type Response = domain.Response

// HTTPTransport sends a single HTTP request. *http.Client satisfies it.
type HTTPTransport interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionStore is the part of the session the engine needs: one read per
// attempt and the 401 invalidation.
type SessionStore interface {
	Get() domain.Session
	Invalidate(ctx context.Context) bool
}

// Navigator sends the user back to the login entry point.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

// RedirectToLogin implements Navigator.
func (f NavigatorFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Engine executes API requests against the backend.
type Engine struct {
	baseURL   string
	session   SessionStore
	transport HTTPTransport
	clock     Clock
	navigator Navigator
	policy    RetryPolicy
	timeout   time.Duration
	limiter   *rate.Limiter
	metrics   *metric.Registry
	logger    logger.Logger
	userAgent string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTransport sets the HTTP transport.
func WithTransport(t HTTPTransport) Option {
	return func(e *Engine) { e.transport = t }
}

// WithClock sets the clock used for backoff waits.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithNavigator sets the login redirect target.
func WithNavigator(n Navigator) Option {
	return func(e *Engine) { e.navigator = n }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithTimeout sets the default per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRateLimit paces attempts to rps per second. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Engine) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(e *Engine) { e.userAgent = ua }
}

// NewEngine creates an engine for baseURL. A missing scheme defaults to http.
func NewEngine(baseURL string, session SessionStore, opts ...Option) (*Engine, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("connection: base URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("connection: invalid base URL: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("connection: session store is required")
	}

	e := &Engine{
		baseURL:   strings.TrimRight(baseURL, "/"),
		session:   session,
		transport: http.DefaultClient,
		clock:     realClock{},
		policy:    DefaultRetryPolicy(),
		timeout:   DefaultTimeout,
		logger:    logger.Default(),
		userAgent: buildinfo.UserAgent("salesdesk-cli"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BaseURL returns the resolved base URL.
func (e *Engine) BaseURL() string {
	return e.baseURL
}

// Execute runs d with the retry policy. Failures are *domain.NormalizedError;
// only the last attempt's error is returned.
func (e *Engine) Execute(ctx context.Context, d Descriptor) (*Response, error) {
	method := strings.ToUpper(d.Method)
	if method == "" {
		method = http.MethodGet
	}
	if !allowedMethods[method] {
		return nil, fmt.Errorf("connection: unsupported method %q", d.Method)
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	maxAttempts := e.policy.attempts(d.MaxAttempts)

	reqID := domain.GenerateRequestID()
	log := e.logger.With("request_id", reqID, "method", method, "path", d.Path)
	start := e.clock.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.recordRetry(method)
			// A cancelled wait keeps the previous attempt's error.
			if err := e.clock.Sleep(ctx, e.policy.Delay(attempt)); err != nil {
				break
			}
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				if lastErr == nil {
					lastErr = NormalizeTransportError(err)
				}
				break
			}
		}

		e.recordAttempt(method)
		resp, err := e.attempt(ctx, method, d, timeout, reqID)
		if err == nil {
			log.Debug("request succeeded", "attempt", attempt, "status", resp.Status)
			e.recordRequest(method, "ok", start)
			return resp, nil
		}

		lastErr = err
		log.Debug("attempt failed", "attempt", attempt, "error", err)

		if domain.IsKind(err, domain.KindAuthExpired) {
			e.handleUnauthorized(ctx, log)
			break
		}
		if ctx.Err() != nil || !e.policy.ShouldRetry(err) {
			break
		}
	}

	outcome := string(domain.KindOf(lastErr))
	if outcome == "" {
		outcome = "error"
	}
	e.recordRequest(method, outcome, start)
	log.Warn("request failed", "error", lastErr)
	return nil, lastErr
}

// attempt performs one HTTP exchange under its own timeout.
func (e *Engine) attempt(ctx context.Context, method string, d Descriptor, timeout time.Duration, reqID string) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := e.newRequest(actx, method, d, reqID)
	if err != nil {
		return nil, err
	}

	httpResp, err := e.transport.Do(req)
	if err != nil {
		return nil, NormalizeTransportError(err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NormalizeTransportError(err)
	}

	body, decodeErr := decodeBody(httpResp.Header.Get("Content-Type"), raw)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if decodeErr != nil {
			body = string(raw)
		}
		return nil, NormalizeStatus(httpResp.StatusCode, body)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Raw:    raw,
		Body:   body,
	}, nil
}

// newRequest builds a fresh request. The session is read exactly once here.
func (e *Engine) newRequest(ctx context.Context, method string, d Descriptor, reqID string) (*http.Request, error) {
	target := e.baseURL + d.Path
	if len(d.Query) > 0 {
		target += "?" + d.Query.Encode()
	}

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("connection: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}
	if sess := e.session.Get(); sess.HasToken() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("X-Request-ID", reqID)

	return req, nil
}

func (e *Engine) handleUnauthorized(ctx context.Context, log logger.Logger) {
	if !e.session.Invalidate(ctx) {
		return
	}
	log.Warn("session rejected by backend, redirecting to login")
	if e.metrics != nil {
		e.metrics.IncSessionInvalidated()
	}
	if e.navigator != nil {
		e.navigator.RedirectToLogin(ctx)
	}
}

// Get issues a GET.
func (e *Engine) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return e.Execute(ctx, Descriptor{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST with a JSON body.
func (e *Engine) Post(ctx context.Context, path string, body any) (*Response, error) {
	return e.send(ctx, http.MethodPost, path, body)
}

// Put issues a PUT with a JSON body.
func (e *Engine) Put(ctx context.Context, path string, body any) (*Response, error) {
	return e.send(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH with a JSON body.
func (e *Engine) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return e.send(ctx, http.MethodPatch, path, body)
}

// Delete issues a DELETE.
func (e *Engine) Delete(ctx context.Context, path string) (*Response, error) {
	return e.Execute(ctx, Descriptor{Method: http.MethodDelete, Path: path})
}

func (e *Engine) send(ctx context.Context, method, path string, body any) (*Response, error) {
	d := Descriptor{Method: method, Path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("connection: marshal body: %w", err)
		}
		d.Body = data
	}
	return e.Execute(ctx, d)
}

func (e *Engine) recordAttempt(method string) {
	if e.metrics != nil {
		e.metrics.RecordAttempt(method)
	}
}

func (e *Engine) recordRetry(method string) {
	if e.metrics != nil {
		e.metrics.RecordRetry(method)
	}
}

func (e *Engine) recordRequest(method, outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordRequest(method, outcome, e.clock.Now().Sub(start))
	}
}
