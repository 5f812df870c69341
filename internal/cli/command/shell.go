package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/repl"
	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Description: `Runs commands line by line against one session and one request engine.
Global flags given to 'shell' apply to every line.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address while the shell runs (e.g. 127.0.0.1:9464)",
			},
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file",
				Value: repl.DefaultHistoryFile(),
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	// Opened here so every line shares the session store.
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	if addr := c.String("metrics-addr"); addr != "" {
		stop, err := serveMetrics(rt, addr)
		if err != nil {
			return err
		}
		defer stop()
	}

	history := repl.NewHistory(c.String("history-file"))
	if err := history.Load(); err != nil {
		rt.Logger.Warn("load history failed", "error", err)
	}

	// Commands that prompt must read from the REPL's buffer.
	input := bufio.NewReader(c.App.Reader)
	prevReader := c.App.Reader
	c.App.Reader = input
	defer func() { c.App.Reader = prevReader }()

	r := repl.New(repl.Config{
		Input:     input,
		Output:    c.App.Writer,
		Completer: repl.NewCompleter(CompletionWords(c.App)),
		History:   history,
		Exec: func(ctx context.Context, args []string) error {
			argv := append([]string{c.App.Name}, args...)
			if err := c.App.RunContext(ctx, argv); err != nil {
				PrintError(c.App.ErrWriter, err)
			}
			return nil
		},
	})

	fmt.Fprintf(c.App.Writer, "salesdesk-cli %s. Type 'help' for commands, 'exit' to leave.\n", buildinfo.Version)
	runErr := r.Run(c.Context)

	if err := history.Save(); err != nil {
		rt.Logger.Warn("save history failed", "error", err)
	}
	return runErr
}

// serveMetrics exposes the runtime's registry until stop is called.
func serveMetrics(rt *Runtime, addr string) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.Logger.Error("metrics server failed", "error", err)
		}
	}()
	fmt.Fprintf(rt.ErrOut, "Serving metrics on http://%s/metrics\n", ln.Addr())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// resourceCommands take RESOURCE as their first argument.
var resourceCommands = map[string]bool{
	"list": true, "get": true, "create": true, "update": true, "delete": true,
}

// CompletionWords returns the command lines the shell completes: commands,
// aliases, subcommands and "<command> <resource>" pairs.
func CompletionWords(app *cli.App) []string {
	var words []string
	for _, cmd := range app.Commands {
		if cmd.Hidden || cmd.Name == "shell" {
			continue
		}
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			words = append(words, name)
			for _, sub := range cmd.Subcommands {
				words = append(words, name+" "+sub.Name)
			}
			if resourceCommands[cmd.Name] {
				for _, r := range domain.ResourceNames() {
					words = append(words, name+" "+string(r))
				}
			}
		}
	}
	return words
}
