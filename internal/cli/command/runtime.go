package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/yndnr/salesdesk-go/internal/cli/config"
	"github.com/yndnr/salesdesk-go/internal/cli/connection"
	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/core/service"
	"github.com/yndnr/salesdesk-go/internal/core/session"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/salesdesk-go/internal/storage"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
	"github.com/yndnr/salesdesk-go/internal/telemetry/metric"
)

// RuntimeOptions are the global flag values that shape a Runtime.
type RuntimeOptions struct {
	ConfigPath string
	// APIURL overrides the resolved base URL when set.
	APIURL string
	// Overrides are dotted config keys set from flags.
	Overrides map[string]any

	Out    io.Writer
	ErrOut io.Writer
}

// Runtime is everything a command needs, built once per invocation (or
// once per shell).
type Runtime struct {
	Config     *config.CLIConfig
	ConfigPath string

	Logger    logger.Logger
	Metrics   *metric.Registry
	KV        storage.KV
	Session   *session.PersistentStore
	Engine    *connection.Engine
	Auth      *service.AuthService
	Resources *service.ResourceService

	Out    io.Writer
	ErrOut io.Writer

	refs        int
	closeOnce   sync.Once
	unsubscribe func()
}

// NewRuntime loads configuration and wires storage, session, engine and
// services.
func NewRuntime(ctx context.Context, opts RuntimeOptions) (*Runtime, error) {
	// 1. Configuration
	cfg, err := config.Load(opts.ConfigPath, opts.Overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	rt := &Runtime{
		Config:     cfg,
		ConfigPath: opts.ConfigPath,
		Out:        opts.Out,
		ErrOut:     opts.ErrOut,
		Metrics:    metric.NewRegistry(),
	}

	// 2. Logging to stderr
	logCfg := cfg.Log
	logCfg.Output = opts.ErrOut
	rt.Logger, err = logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// 3. Session storage
	kvCfg := cfg.KVConfig()
	kvCfg.Metrics = rt.Metrics.Registerer()
	rt.KV, err = storage.Open(ctx, kvCfg, rt.Logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("open session storage: %w", err)
	}
	rt.Session, err = session.Open(ctx, rt.KV, session.WithLogger(rt.Logger))
	if err != nil {
		rt.KV.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}
	rt.unsubscribe = rt.Session.OnChange(func(ev session.Event) {
		rt.Metrics.RecordSessionEvent(string(ev.Type))
		rt.Logger.Debug("session changed", "event", string(ev.Type))
	})
	rt.Metrics.Registerer().MustRegister(metric.NewSessionCollector(rt.Session.Get))

	// 4. Request engine
	client, err := connection.NewTransport(connection.TransportConfig{
		CAFile:             cfg.API.CAFile,
		InsecureSkipVerify: cfg.API.InsecureSkipVerify,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("build transport: %w", err)
	}

	policy := connection.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.API.MaxAttempts
	policy.BaseDelay = cfg.API.BaseDelay

	rt.Engine, err = connection.NewEngine(cfg.ResolveBaseURL(opts.APIURL), rt.Session,
		connection.WithTransport(client),
		connection.WithRetryPolicy(policy),
		connection.WithTimeout(cfg.API.Timeout),
		connection.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
		connection.WithMetrics(rt.Metrics),
		connection.WithLogger(rt.Logger),
		connection.WithUserAgent(buildinfo.UserAgent("salesdesk-cli")),
		connection.WithNavigator(connection.NavigatorFunc(rt.redirectToLogin)),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}

	// 5. Services
	rt.Auth = service.NewAuthService(rt.Engine, rt.Session, rt.Logger)
	rt.Resources = service.NewResourceService(rt.Engine, rt.Metrics, rt.Logger)

	return rt, nil
}

// redirectToLogin is the CLI's login entry point: tell the user.
func (r *Runtime) redirectToLogin(context.Context) {
	fmt.Fprintln(r.ErrOut, "Session expired. Run 'salesdesk-cli login' to sign in again.")
}

// Close releases the session storage. Safe to call more than once.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.unsubscribe != nil {
			r.unsubscribe()
		}
		if r.KV != nil {
			err = r.KV.Close()
		}
	})
	return err
}

// withTimeout bounds a whole command. Retries and backoff happen inside it,
// so it allows every attempt plus the waits between them.
func (r *Runtime) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	api := r.Config.API
	budget := time.Duration(api.MaxAttempts) * api.Timeout
	for n := 2; n <= api.MaxAttempts; n++ {
		budget += api.BaseDelay * time.Duration(n-1)
	}
	return context.WithTimeout(parent, budget+5*time.Second)
}

// requireLogin fails fast when no token is held.
func (r *Runtime) requireLogin() error {
	if !r.Session.Get().HasToken() {
		return domain.ErrNotLoggedIn
	}
	return nil
}

var errRuntimeMissing = errors.New("command runtime not initialized")
