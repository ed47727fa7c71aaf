// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"
	"log/slog"

	"juggler/internal/clock"
	"juggler/internal/config"
	"juggler/internal/credstore"
	"juggler/internal/reconcile"
	"juggler/internal/store"
)

// GatewayFactory builds the remote gateway for one sync invocation. It
// acquires an access token up front, so a stale or missing credential
// surfaces here as a typed auth error.
type GatewayFactory func(ctx context.Context, env *Env, dryRun bool) (reconcile.Gateway, error)

// LoginFunc runs the interactive authorization flow, printing the
// consent URL to prompt.
type LoginFunc func(ctx context.Context, env *Env, port int, prompt io.Writer) error

// Env carries the collaborators commands run against. Tests swap in
// fakes; main wires the real implementations.
type Env struct {
	Config  *config.Config
	Store   *store.Store
	Creds   credstore.Store
	Clock   clock.Clock
	Logger  *slog.Logger
	Gateway GatewayFactory
	Login   LoginFunc
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a stored
	// credential. help, version, list, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}
