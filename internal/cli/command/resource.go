package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/output"
	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/core/service"
)

// ResourcesCommand lists the resource registry.
func ResourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "resources",
		Usage: "Show known resources and their endpoints",
		Action: func(c *cli.Context) error {
			rt, err := GetRuntime(c)
			if err != nil {
				return err
			}
			_, format, err := formatterFor(c, rt)
			if err != nil {
				return err
			}
			if format != output.FormatTable {
				return render(c, rt, resourceRows())
			}

			table := &output.Table{}
			table.SetHeaders("RESOURCE", "PATH", "LIST KEY", "ITEM KEY", "STATUS")
			for _, r := range resourceRows() {
				table.AddRow(r.Name, dash(r.Path), dash(r.ListKey), dash(r.ItemKey), r.Status)
			}
			return table.Render(c.App.Writer)
		},
	}
}

type resourceRow struct {
	Name    string `json:"name" yaml:"name"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
	ListKey string `json:"list_key,omitempty" yaml:"list_key,omitempty"`
	ItemKey string `json:"item_key,omitempty" yaml:"item_key,omitempty"`
	Status  string `json:"status" yaml:"status"`
}

func resourceRows() []resourceRow {
	var rows []resourceRow
	for _, name := range domain.ResourceNames() {
		row := resourceRow{Name: string(name), Status: "local"}
		if m, ok := domain.Resolve(name); ok {
			row.Path, row.ListKey, row.ItemKey, row.Status = m.Path, m.ListKey, m.ItemKey, "mapped"
		}
		rows = append(rows, row)
	}
	return rows
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// resourceArg validates the RESOURCE argument.
func resourceArg(c *cli.Context) (domain.ResourceName, error) {
	raw := c.Args().First()
	if raw == "" {
		return "", usagef("missing RESOURCE argument (see 'salesdesk-cli resources')")
	}
	name := domain.ResourceName(strings.ToLower(raw))
	if !domain.IsKnownResource(name) {
		return "", usagef("unknown resource %q (see 'salesdesk-cli resources')", raw)
	}
	return name, nil
}

// idArg returns the ID argument at position i.
func idArg(c *cli.Context, i int) (string, error) {
	id := c.Args().Get(i)
	if id == "" {
		return "", usagef("missing ID argument")
	}
	return id, nil
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Aliases:   []string{"ls"},
		Usage:     "List a resource",
		ArgsUsage: "RESOURCE",
		Description: `Lists a resource. Backend failures and resources without an endpoint
produce an empty list rather than an error.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "active", Usage: "Filter by active flag (true/false)"},
			&cli.StringFlag{Name: "platform", Usage: "Filter by platform"},
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Free-text search"},
			&cli.IntFlag{Name: "page", Usage: "Page number"},
			&cli.IntFlag{Name: "limit", Usage: "Page size"},
		},
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	name, err := resourceArg(c)
	if err != nil {
		return err
	}
	_, format, err := formatterFor(c, rt)
	if err != nil {
		return err
	}

	filters := service.Filters{}
	for _, f := range []string{"active", "platform", "search"} {
		if c.IsSet(f) {
			filters[f] = c.String(f)
		}
	}
	params := service.ListParams{Page: c.Int("page"), Limit: c.Int("limit")}

	ctx, cancel := rt.withTimeout(c.Context)
	defer cancel()

	var result service.ListResult
	_ = output.Spin(rt.ErrOut, "Loading "+string(name), func() error {
		result = rt.Resources.List(ctx, string(name), params, filters)
		return nil
	})

	if format != output.FormatTable {
		return render(c, rt, result)
	}
	if len(result.Items) == 0 {
		fmt.Fprintf(c.App.Writer, "No %s found\n", name)
		return nil
	}
	if err := render(c, rt, result.Items); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "\nTotal: %d\n", result.Total)
	return nil
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one entity",
		ArgsUsage: "RESOURCE ID",
		Action: func(c *cli.Context) error {
			rt, name, err := resourceRuntime(c)
			if err != nil {
				return err
			}
			id, err := idArg(c, 1)
			if err != nil {
				return err
			}

			ctx, cancel := rt.withTimeout(c.Context)
			defer cancel()

			var rec service.Record
			err = output.Spin(rt.ErrOut, "Loading "+string(name), func() error {
				var gerr error
				rec, gerr = rt.Resources.Get(ctx, string(name), id)
				return gerr
			})
			if err != nil {
				return err
			}
			return render(c, rt, rec)
		},
	}
}

// payloadFlags are shared by create and update.
func payloadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "Field as key=value (repeatable); JSON scalars are decoded",
		},
		&cli.StringFlag{
			Name:  "json",
			Usage: "Whole payload as a JSON object; --data entries are applied on top",
		},
	}
}

// CreateCommand returns the create command.
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create an entity",
		ArgsUsage: "RESOURCE",
		Flags:     payloadFlags(),
		Action: func(c *cli.Context) error {
			rt, name, err := resourceRuntime(c)
			if err != nil {
				return err
			}
			payload, err := parsePayload(c)
			if err != nil {
				return err
			}

			ctx, cancel := rt.withTimeout(c.Context)
			defer cancel()

			var rec service.Record
			err = output.Spin(rt.ErrOut, "Creating", func() error {
				var cerr error
				rec, cerr = rt.Resources.Create(ctx, string(name), payload)
				return cerr
			})
			if err != nil {
				return err
			}
			return render(c, rt, rec)
		},
	}
}

// UpdateCommand returns the update command.
func UpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update an entity",
		ArgsUsage: "RESOURCE ID",
		Flags:     payloadFlags(),
		Action: func(c *cli.Context) error {
			rt, name, err := resourceRuntime(c)
			if err != nil {
				return err
			}
			id, err := idArg(c, 1)
			if err != nil {
				return err
			}
			payload, err := parsePayload(c)
			if err != nil {
				return err
			}

			ctx, cancel := rt.withTimeout(c.Context)
			defer cancel()

			var rec service.Record
			err = output.Spin(rt.ErrOut, "Updating", func() error {
				var uerr error
				rec, uerr = rt.Resources.Update(ctx, string(name), id, payload)
				return uerr
			})
			if err != nil {
				return err
			}
			return render(c, rt, rec)
		},
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete an entity",
		ArgsUsage: "RESOURCE ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation",
			},
		},
		Action: func(c *cli.Context) error {
			rt, name, err := resourceRuntime(c)
			if err != nil {
				return err
			}
			id, err := idArg(c, 1)
			if err != nil {
				return err
			}

			if !c.Bool("force") {
				answer, err := readLine(c, fmt.Sprintf("Delete %s %s? [y/N] ", name, id))
				if err != nil {
					return err
				}
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(c.App.Writer, "Aborted")
					return nil
				}
			}

			ctx, cancel := rt.withTimeout(c.Context)
			defer cancel()

			err = output.Spin(rt.ErrOut, "Deleting", func() error {
				_, derr := rt.Resources.Delete(ctx, string(name), id)
				return derr
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Deleted %s %s\n", name, id)
			return nil
		},
	}
}

func resourceRuntime(c *cli.Context) (*Runtime, domain.ResourceName, error) {
	rt, err := GetRuntime(c)
	if err != nil {
		return nil, "", err
	}
	name, err := resourceArg(c)
	if err != nil {
		return nil, "", err
	}
	return rt, name, nil
}

// parsePayload merges --json and --data into one record.
func parsePayload(c *cli.Context) (service.Record, error) {
	payload := service.Record{}
	if raw := c.String("json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, usagef("--json: %v", err)
		}
	}
	for _, kv := range c.StringSlice("data") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, usagef("--data %q: expected key=value", kv)
		}
		payload[key] = parseScalar(value)
	}
	return payload, nil
}

// parseScalar decodes numbers, booleans and null; anything else stays a
// string.
func parseScalar(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch v.(type) {
	case float64, bool, nil:
		return v
	default:
		return s
	}
}
