// Package logger provides structured logging for salesdesk.
//
// It wraps log/slog:
//
//   - logger.go: logger construction, levels and the process-wide default
//   - context.go: context propagation of loggers and request IDs
//   - redact.go: masking of bearer tokens, credentials and passwords
//
// The CLI logs to stderr in text form so stdout stays reserved for
// command output. The proxy logs JSON.
package logger
