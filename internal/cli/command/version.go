package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/output"
	"github.com/yndnr/salesdesk-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			format, err := output.ParseFormat(c.String("output"))
			if err != nil {
				return err
			}
			info := buildinfo.Get()
			if format != output.FormatTable {
				return output.NewFormatter(format, false).Format(c.App.Writer, info)
			}
			fmt.Fprintf(c.App.Writer, "salesdesk-cli %s\n", info.Version)
			fmt.Fprintf(c.App.Writer, "  commit:     %s\n", info.Commit)
			fmt.Fprintf(c.App.Writer, "  built:      %s\n", info.BuildTime)
			fmt.Fprintf(c.App.Writer, "  go version: %s\n", info.GoVersion)
			return nil
		},
	}
}
