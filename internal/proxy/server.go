package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yndnr/salesdesk-go/internal/cli/config"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
	"github.com/yndnr/salesdesk-go/internal/telemetry/metric"
)

// APIPrefix is the path prefix forwarded to the upstream.
const APIPrefix = "/api"

// Server is the dev proxy HTTP server.
type Server struct {
	addr     string
	upstream *url.URL

	logger    logger.Logger
	metrics   *metric.Registry
	transport http.RoundTripper

	cors    atomic.Pointer[cors.Cors]
	origins atomic.Pointer[[]string]

	router     chi.Router
	httpServer *http.Server
	listener   net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics sets the metrics registry served on /metrics.
func WithMetrics(r *metric.Registry) Option {
	return func(s *Server) { s.metrics = r }
}

// WithTransport sets the upstream round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Server) { s.transport = rt }
}

// New creates a proxy for cfg. It does not listen until Start.
func New(cfg config.ProxyConfig, opts ...Option) (*Server, error) {
	upstream, err := url.Parse(cfg.Upstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", cfg.Upstream)
	}

	s := &Server{
		addr:     cfg.Addr,
		upstream: upstream,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.metrics == nil {
		s.metrics = metric.NewRegistry()
	}
	if s.transport == nil {
		s.transport = http.DefaultTransport
	}

	s.SetAllowedOrigins(cfg.AllowedOrigins)
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		requestID,
		s.accessLog,
		s.corsHandler,
	)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	api := s.reverseProxy()
	r.Handle(APIPrefix, api)
	r.Handle(APIPrefix+"/*", api)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Route not found"})
	})
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Upstream returns the backend URL.
func (s *Server) Upstream() *url.URL {
	u := *s.upstream
	return &u
}

// reverseProxy forwards /api/* to the upstream without the prefix. The
// Host header is rewritten to the upstream's.
func (s *Server) reverseProxy() http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = stripPrefix(pr.In.URL.Path)
			pr.Out.URL.RawPath = ""
			pr.SetURL(s.upstream)
			pr.SetXForwarded()
		},
		Transport: s.transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			s.logger.Warn("upstream request failed",
				"request_id", middleware.GetReqID(r.Context()),
				"path", r.URL.Path,
				"error", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"success": false,
				"message": "upstream unavailable",
			})
		},
	}
}

// stripPrefix removes APIPrefix; "/api" alone maps to "/".
func stripPrefix(path string) string {
	rest := strings.TrimPrefix(path, APIPrefix)
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	return rest
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"upstream": s.upstream.String(),
	})
}

// SetAllowedOrigins replaces the CORS origin list. Safe for concurrent use.
func (s *Server) SetAllowedOrigins(origins []string) {
	origins = append([]string(nil), origins...)
	s.cors.Store(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	s.origins.Store(&origins)
}

// AllowedOrigins returns the current CORS origin list.
func (s *Server) AllowedOrigins() []string {
	return append([]string(nil), *s.origins.Load()...)
}

// Reload applies the reloadable parts of a new configuration: CORS origins
// and log level. Address and upstream changes need a restart.
func (s *Server) Reload(cfg *config.CLIConfig) {
	s.SetAllowedOrigins(cfg.Proxy.AllowedOrigins)
	if cfg.Log.Level != "" {
		logger.SetLevel(cfg.Log.Level)
	}
	if cfg.Proxy.Addr != s.addr || cfg.Proxy.Upstream != s.upstream.String() {
		s.logger.Warn("proxy.addr and proxy.upstream changes need a restart")
	}
	s.logger.Info("proxy config reloaded", "allowed_origins", cfg.Proxy.AllowedOrigins, "log_level", cfg.Log.Level)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("proxy server error", "error", err)
		}
	}()
	s.logger.Info("proxy listening", "addr", ln.Addr().String(), "upstream", s.upstream.String())
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
