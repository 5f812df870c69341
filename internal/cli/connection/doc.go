// Package connection is the request engine between the CLI and the sales
// backend.
//
//   - engine.go: Execute with per-attempt timeout, auth header and retry
//   - retry.go: RetryPolicy and the injectable Clock
//   - normalize.go: classification of every failure into domain.NormalizedError
//   - transport.go: *http.Client construction with custom CA roots
//
// A 401 clears the session through the injected store and triggers a single
// redirect to login no matter how many requests observe it.
package connection
