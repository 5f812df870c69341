package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/config"
	"github.com/yndnr/salesdesk-go/internal/cli/output"
	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
	"github.com/yndnr/salesdesk-go/internal/storage"
)

const runtimeKey = "runtime"

// App creates the CLI application bound to the process streams.
func App() *cli.App {
	return NewApp(os.Stdout, os.Stderr, os.Stdin)
}

// NewApp creates the CLI application with explicit streams.
func NewApp(out, errOut io.Writer, in io.Reader) *cli.App {
	app := &cli.App{
		Name:                 "salesdesk-cli",
		Usage:                "Retail admin console API client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Writer:               out,
		ErrWriter:            errOut,
		Reader:               in,
		Metadata:             map[string]any{},
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			HealthCommand(),
			ResourcesCommand(),
			ListCommand(),
			GetCommand(),
			CreateCommand(),
			UpdateCommand(),
			DeleteCommand(),
			ConfigCommand(),
			ShellCommand(),
			VersionCommand(),
		},
		Before: before,
		After:  after,
		// Errors are printed by the caller; never os.Exit from inside the shell.
		ExitErrHandler: func(*cli.Context, error) {},
	}

	return app
}

// globalFlags returns the global CLI flags. None has a default so that
// unset flags leave the configuration file in charge.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file path",
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:  "api-url",
			Usage: "API base URL (overrides env and api.url)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (all columns, nested values)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging on stderr",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-attempt request timeout (e.g. 10s)",
		},
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "Attempts per request, including the first",
		},
		&cli.StringFlag{
			Name:  "session-dir",
			Usage: "Directory holding the persisted session",
		},
		&cli.BoolFlag{
			Name:  "ephemeral",
			Usage: "Keep the session in memory only",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigPath string
	APIURL     string
	Output     string
	Wide       bool
	Verbose    bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigPath: c.String("config"),
		APIURL:     c.String("api-url"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
	}
}

// configOverrides maps explicitly set flags to config keys.
func configOverrides(c *cli.Context) map[string]any {
	o := map[string]any{}
	if c.IsSet("output") {
		o["output.format"] = c.String("output")
	}
	if c.IsSet("wide") {
		o["output.wide"] = c.Bool("wide")
	}
	if c.Bool("verbose") {
		o["log.level"] = "debug"
	}
	if c.IsSet("timeout") {
		o["api.timeout"] = c.Duration("timeout").String()
	}
	if c.IsSet("max-attempts") {
		o["api.max_attempts"] = c.Int("max-attempts")
	}
	if c.IsSet("session-dir") {
		o["session.dir"] = c.String("session-dir")
	}
	if c.Bool("ephemeral") {
		o["session.backend"] = storage.BackendMemory
	}
	return o
}

// lazyRuntime defers opening the session store until a command needs it,
// so help and version work while another process holds the store.
type lazyRuntime struct {
	opts  RuntimeOptions
	rt    *Runtime
	depth int
}

func before(c *cli.Context) error {
	if h, ok := c.App.Metadata[runtimeKey].(*lazyRuntime); ok {
		// Nested run from the shell reuses the outer runtime.
		h.depth++
		return nil
	}
	flags := ParseGlobalFlags(c)
	c.App.Metadata[runtimeKey] = &lazyRuntime{
		opts: RuntimeOptions{
			ConfigPath: flags.ConfigPath,
			APIURL:     flags.APIURL,
			Overrides:  configOverrides(c),
			Out:        c.App.Writer,
			ErrOut:     c.App.ErrWriter,
		},
		depth: 1,
	}
	return nil
}

func after(c *cli.Context) error {
	h, ok := c.App.Metadata[runtimeKey].(*lazyRuntime)
	if !ok {
		return nil
	}
	h.depth--
	if h.depth > 0 {
		return nil
	}
	delete(c.App.Metadata, runtimeKey)
	if h.rt != nil {
		return h.rt.Close()
	}
	return nil
}

// GetRuntime returns the invocation's runtime, building it on first use.
func GetRuntime(c *cli.Context) (*Runtime, error) {
	h, ok := c.App.Metadata[runtimeKey].(*lazyRuntime)
	if !ok {
		return nil, errRuntimeMissing
	}
	if h.rt == nil {
		rt, err := NewRuntime(c.Context, h.opts)
		if err != nil {
			return nil, err
		}
		h.rt = rt
	}
	return h.rt, nil
}

// formatterFor picks the output format: flag on this invocation, then config.
func formatterFor(c *cli.Context, rt *Runtime) (output.Formatter, output.Format, error) {
	name := rt.Config.Output.Format
	if c.IsSet("output") {
		name = c.String("output")
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	wide := rt.Config.Output.Wide || c.Bool("wide")
	return output.NewFormatter(format, wide), format, nil
}

// render writes data in the selected format.
func render(c *cli.Context, rt *Runtime, data any) error {
	f, _, err := formatterFor(c, rt)
	if err != nil {
		return err
	}
	return f.Format(c.App.Writer, data)
}

// FormatError turns an error into a one-line message for humans.
func FormatError(err error) string {
	ne, ok := domain.AsNormalized(err)
	if !ok {
		return err.Error()
	}
	switch ne.Kind {
	case domain.KindAuthExpired:
		return "session expired: run 'salesdesk-cli login'"
	case domain.KindTimeout:
		return "request timed out"
	case domain.KindNetwork:
		return "cannot reach API: " + ne.Message
	case domain.KindHTTPStatus:
		return fmt.Sprintf("API error (%d): %s", ne.HTTPStatus, ne.Message)
	case domain.KindDecode:
		return "unexpected API response: " + ne.Message
	default:
		return ne.Error()
	}
}

// PrintError prints an error message to w.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "error: %s\n", FormatError(err))
}

// IsUsageError reports errors caused by bad arguments rather than the API.
func IsUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
