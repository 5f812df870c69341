package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
)

// SessionCollector reports the current session state at scrape time.
type SessionCollector struct {
	state func() domain.Session

	authenticated *prometheus.Desc
	identified    *prometheus.Desc
}

// NewSessionCollector creates a collector reading state on every scrape.
func NewSessionCollector(state func() domain.Session) *SessionCollector {
	return &SessionCollector{
		state: state,
		authenticated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "authenticated"),
			"1 when a bearer token is held.",
			nil, nil,
		),
		identified: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", "user_loaded"),
			"1 when the user identity is known.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.authenticated
	ch <- c.identified
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.state()
	ch <- prometheus.MustNewConstMetric(c.authenticated, prometheus.GaugeValue, boolValue(s.HasToken()))
	ch <- prometheus.MustNewConstMetric(c.identified, prometheus.GaugeValue, boolValue(s.User != nil))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
