package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"juggler/internal/exitcode"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command. It always succeeds, whether
// or not a credential was stored.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Remove the stored credential" }
func (c *LogoutCmd) Usage() string     { return "juggler logout" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	_, present, err := env.Creds.Get()
	if err != nil {
		fmt.Fprintf(errOut, "error: credential store: %v\n", err)
		return exitcode.AuthError
	}

	if err := env.Creds.Delete(); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove credential: %v\n", err)
		return exitcode.AuthError
	}

	if !env.Config.Quiet {
		if present {
			fmt.Fprintln(out, "ok")
		} else {
			fmt.Fprintln(out, "not logged in")
		}
	}
	return exitcode.Success
}
