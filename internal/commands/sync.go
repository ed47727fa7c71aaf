package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"juggler/internal/auth"
	"juggler/internal/exitcode"
	"juggler/internal/output"
	"juggler/internal/reconcile"
	"juggler/internal/task"
)

// syncBackend is the only backend the sync command knows.
const syncBackend = "google-tasks"

func init() {
	Register(&SyncCmd{})
}

// SyncCmd implements the sync command: one reconciliation pass pushing
// the local snapshot to the remote list.
type SyncCmd struct {
	dryRun    bool
	debugAuth bool
}

func (c *SyncCmd) Name() string      { return "sync" }
func (c *SyncCmd) Aliases() []string { return nil }
func (c *SyncCmd) Synopsis() string  { return "Push local tasks to the remote list" }
func (c *SyncCmd) Usage() string {
	return "juggler sync google-tasks [--dry-run] [--debug-auth]"
}
func (c *SyncCmd) NeedsAuth() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.dryRun, "dry-run", false, "")
	fs.BoolVar(&c.debugAuth, "debug-auth", false, "")
}

func (c *SyncCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintf(errOut, "error: sync backend required (try: juggler sync %s)\n", syncBackend)
		return exitcode.UserError
	}
	if len(args) > 1 || args[0] != syncBackend {
		fmt.Fprintf(errOut, "error: unknown sync backend: %s\n", strings.Join(args, " "))
		return exitcode.UserError
	}

	if c.debugAuth {
		diag, err := auth.Diagnose(env.Creds)
		if err != nil {
			fmt.Fprintf(errOut, "error: credential store: %v\n", err)
			return exitcode.AuthError
		}
		output.FormatDiagnostics(errOut, diag)
	}

	locals, err := env.Store.Load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	gw, err := env.Gateway(ctx, env, c.dryRun)
	if err != nil {
		return reportGatewayFailure(errOut, err)
	}

	eng := reconcile.New(gw, reconcile.Config{DryRun: c.dryRun, Logger: env.Logger})
	res, runErr := eng.Run(ctx, locals)

	// Persist whatever completed, even on a failed pass, so the next
	// run resumes instead of recreating.
	if res != nil && !c.dryRun {
		if err := c.persist(env, locals, res); err != nil {
			fmt.Fprintf(errOut, "error: saving local snapshot: %v\n", err)
			return exitcode.UserError
		}
	}

	if runErr != nil {
		fmt.Fprintf(errOut, "error: sync failed: %v\n", runErr)
		if errors.Is(runErr, auth.ErrNoCredential) || errors.Is(runErr, auth.ErrInvalidGrant) {
			return exitcode.AuthError
		}
		return exitcode.BackendError
	}

	if !env.Config.Quiet {
		output.FormatChangeLog(out, res, c.dryRun)
	}
	return exitcode.Success
}

// persist archives the previous snapshot and saves the new one, but only
// when a create changed some task's linkage; updates and deletes leave
// the local file as it was.
func (c *SyncCmd) persist(env *Env, before []task.Local, res *reconcile.Result) error {
	if !linksChanged(before, res.Tasks) {
		return nil
	}
	if err := env.Store.Archive(env.Clock.Now()); err != nil {
		return err
	}
	return env.Store.Save(res.Tasks)
}

func linksChanged(before, after []task.Local) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i].RemoteID != after[i].RemoteID {
			return true
		}
	}
	return false
}

func reportGatewayFailure(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, auth.ErrNoCredential):
		fmt.Fprintln(errOut, "error: not logged in (run: juggler login)")
		return exitcode.AuthError
	case errors.Is(err, auth.ErrInvalidGrant):
		fmt.Fprintln(errOut, "error: stored credential was rejected (run: juggler login)")
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}
