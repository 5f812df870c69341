// Package metric provides Prometheus metrics for salesdesk.
//
//   - prometheus.go: registry, metric families and the /metrics handler
//   - collector.go: session state collector
//
// The proxy serves the registry at /metrics; the CLI exposes it from the
// interactive shell when --metrics-addr is set.
package metric
