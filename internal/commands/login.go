package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"juggler/internal/auth"
	"juggler/internal/config"
	"juggler/internal/exitcode"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	port int
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Authorize access to Google Tasks" }
func (c *LoginCmd) Usage() string     { return "juggler login [--port <n>]" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.port, "port", config.DefaultLoginPort, "")
}

func (c *LoginCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if c.port < 0 || c.port > 65535 {
		fmt.Fprintf(errOut, "error: invalid port: %d\n", c.port)
		return exitcode.UserError
	}

	if err := env.Login(ctx, env, c.port, errOut); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserDenied):
			fmt.Fprintln(errOut, "error: authorization was denied")
		case errors.Is(err, auth.ErrCallbackTimeout):
			fmt.Fprintln(errOut, "error: timed out waiting for the browser callback")
		case errors.Is(err, auth.ErrCallbackStateMismatch):
			fmt.Fprintln(errOut, "error: callback state mismatch, try again")
		default:
			fmt.Fprintf(errOut, "error: login failed: %v\n", err)
		}
		return exitcode.AuthError
	}

	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok (run: juggler sync google-tasks)")
	}
	return exitcode.Success
}
