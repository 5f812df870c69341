package command

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/salesdesk-go/internal/cli/output"
	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the session",
		Description: `Authenticates against /auth/login and persists the returned token.

The password is taken from --password, then $SALESDESK_PASSWORD, then
the first line of standard input.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password",
				EnvVars: []string{"SALESDESK_PASSWORD"},
			},
		},
		Action: loginAction,
	}
}

func loginAction(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}

	password := c.String("password")
	if password == "" {
		password, err = readLine(c, "Password: ")
		if err != nil {
			return err
		}
	}

	ctx, cancel := rt.withTimeout(c.Context)
	defer cancel()

	var user *domain.User
	err = output.Spin(rt.ErrOut, "Signing in", func() error {
		var lerr error
		user, lerr = rt.Auth.Login(ctx, c.String("email"), password)
		return lerr
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Logged in as %s\n", user.DisplayName())
	return nil
}

// readLine prompts on stderr and reads one line from the app's input.
func readLine(c *cli.Context, prompt string) (string, error) {
	if c.App.ErrWriter != nil {
		fmt.Fprint(c.App.ErrWriter, prompt)
	}
	br, ok := c.App.Reader.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(c.App.Reader)
	}
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", usagef("no input: %v", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Clear the stored session",
		Action: func(c *cli.Context) error {
			rt, err := GetRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.Auth.Logout(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "Logged out")
			return nil
		},
	}
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remote",
				Usage: "Ask the backend (/auth/me) instead of the stored session",
			},
		},
		Action: whoamiAction,
	}
}

// whoamiView is the printable form of a session.
type whoamiView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

func whoamiAction(c *cli.Context) error {
	rt, err := GetRuntime(c)
	if err != nil {
		return err
	}
	if err := rt.requireLogin(); err != nil {
		return err
	}

	user := rt.Auth.Current().User
	if c.Bool("remote") {
		ctx, cancel := rt.withTimeout(c.Context)
		defer cancel()
		err = output.Spin(rt.ErrOut, "Checking session", func() error {
			var merr error
			user, merr = rt.Auth.Me(ctx)
			return merr
		})
		if err != nil {
			return err
		}
	}

	view := whoamiView{Token: logger.RedactToken(rt.Auth.Current().Token)}
	if user != nil {
		view.ID, view.Email, view.Name, view.Role = user.ID, user.Email, user.Name, user.Role
	}
	return render(c, rt, view)
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check backend reachability",
		Action: func(c *cli.Context) error {
			rt, err := GetRuntime(c)
			if err != nil {
				return err
			}
			ctx, cancel := rt.withTimeout(c.Context)
			defer cancel()

			var body any
			err = output.Spin(rt.ErrOut, "Checking health", func() error {
				var herr error
				body, herr = rt.Auth.Health(ctx)
				return herr
			})
			if err != nil {
				return err
			}
			if body == nil {
				body = map[string]any{"status": "ok"}
			}
			return render(c, rt, body)
		},
	}
}
