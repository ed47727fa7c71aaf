package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"juggler/internal/exitcode"
	"juggler/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command: print the local snapshot.
// Handles both `juggler` (no args) and `juggler list`.
type ListCmd struct{}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return nil }
func (c *ListCmd) Synopsis() string  { return "List local tasks" }
func (c *ListCmd) Usage() string     { return "juggler list" }
func (c *ListCmd) NeedsAuth() bool   { return false }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	tasks, err := env.Store.Load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if len(tasks) == 0 {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	for i, t := range tasks {
		output.FormatLocalTask(out, i+1, t)
	}
	return exitcode.Success
}
