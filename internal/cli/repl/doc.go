// Package repl provides the interactive shell for salesdesk-cli.
//
//   - repl.go: read loop, line splitting and dispatch to an Executor
//   - completer.go: command and resource suggestions
//   - history.go: command history persistence
//
// The REPL does not know the command set itself; the caller passes an
// Executor that runs one argument vector, typically by re-entering the
// urfave/cli application.
package repl
