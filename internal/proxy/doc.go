// Package proxy implements salesdesk-proxy, the development API proxy.
//
// The console's dev server talks to "/api" on its own origin; the proxy
// forwards /api/* to the backend with the prefix stripped and answers
// CORS preflights for the configured origins. It also serves /healthz and
// Prometheus metrics on /metrics.
//
// Allowed origins can be swapped at runtime with Reload, which the
// binary wires to a config file watcher.
package proxy
