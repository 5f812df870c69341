package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/config"
	"github.com/yndnr/salesdesk-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration (file, .env, environment, flags)",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the config file path",
				Action: configPath,
			},
			{
				Name:      "set",
				Usage:     "Set a key in the config file",
				ArgsUsage: "KEY VALUE",
				Action:    configSet,
			},
			{
				Name:   "keys",
				Usage:  "List settable keys",
				Action: configKeys,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective configuration",
				Action: configValidate,
			},
		},
	}
}

// effectiveConfig loads the configuration the way a command would see it,
// without opening the session store.
func effectiveConfig(c *cli.Context) (*config.CLIConfig, error) {
	return config.Load(c.String("config"), configOverrides(c))
}

func configShow(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}

	name := cfg.Output.Format
	if c.IsSet("output") {
		name = c.String("output")
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return err
	}
	// A config tree reads poorly as a table.
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format, false).Format(c.App.Writer, cfg.Sanitize())
}

func configPath(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, c.String("config"))
	return nil
}

func configSet(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return usagef("usage: config set KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)
	path := c.String("config")

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	updated, err := config.Set(cfg, key, value)
	if err != nil {
		return usagef("%v", err)
	}
	if err := updated.Verify(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	if err := config.Save(updated, path); err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Set %s in %s\n", key, path)
	return nil
}

func configKeys(c *cli.Context) error {
	for _, k := range config.Keys() {
		fmt.Fprintln(c.App.Writer, k)
	}
	return nil
}

func configValidate(c *cli.Context) error {
	cfg, err := effectiveConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Verify(); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Configuration is valid")
	fmt.Fprintf(c.App.Writer, "API base URL: %s\n", cfg.ResolveBaseURL(c.String("api-url")))
	return nil
}
