package connection

import (
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/salesdesk-go/internal/infra/tlsroots"
)

// TransportConfig configures the HTTP client used by the engine.
type TransportConfig struct {
	// CAFile is an extra PEM bundle or directory trusted besides system roots.
	CAFile string
	// InsecureSkipVerify disables certificate checks (local development only).
	InsecureSkipVerify bool
	MaxIdleConns       int
	IdleConnTimeout    time.Duration
}

// NewTransport builds the *http.Client used as HTTPTransport. It has no
// client-level timeout; the engine bounds every attempt with a context.
func NewTransport(cfg TransportConfig) (*http.Client, error) {
	pool, err := tlsroots.Load(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("load CA roots: %w", err)
	}

	tlsCfg := pool.TLSConfig()
	tlsCfg.InsecureSkipVerify = cfg.InsecureSkipVerify

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	if cfg.MaxIdleConns > 0 {
		tr.MaxIdleConns = cfg.MaxIdleConns
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout > 0 {
		tr.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &http.Client{Transport: tr}, nil
}
