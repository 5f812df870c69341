// Package command wires salesdesk-cli subcommands to the request engine
// and services.
//
// Every invocation shares one lazily built Runtime (config, logger,
// session store, engine, services). The shell re-enters the same
// urfave/cli application per line, and the Runtime is reused so the
// session store is opened once.
package command
