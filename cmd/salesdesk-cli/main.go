// Package main provides the entry point for salesdesk-cli.
//
// salesdesk-cli is the command-line client for the retail admin API,
// supporting both single-command mode and an interactive shell.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yndnr/salesdesk-go/internal/cli/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := command.App()
	err := app.RunContext(ctx, os.Args)
	stop()

	if err != nil {
		command.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
