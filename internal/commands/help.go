package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"juggler/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "juggler help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  juggler                            List local tasks
  juggler list [common flags]        List local tasks
  juggler sync google-tasks [common flags] [--dry-run] [--debug-auth]
                                     Push local tasks to Google Tasks
  juggler login [common flags] [--port <n>]
                                     Authorize access to Google Tasks
  juggler logout [common flags]      Remove the stored credential
  juggler help                       Print usage
  juggler version                    Print version

Common flags:
  --dir <dir>      Override data directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
