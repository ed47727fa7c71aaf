// Package main is the entry point for the juggler CLI.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/oauth2"

	"juggler/internal/auth"
	"juggler/internal/cli"
	"juggler/internal/clock"
	"juggler/internal/commands"
	"juggler/internal/config"
	"juggler/internal/credstore"
	"juggler/internal/gateway"
	"juggler/internal/reconcile"
	"juggler/internal/store"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newEnv)

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

// newEnv wires the real credential store, clock, and gateway. The
// logger is left nil so the dispatcher attaches one bound to stderr.
func newEnv(ctx context.Context, cfg *config.Config) (*commands.Env, error) {
	return &commands.Env{
		Config:  cfg,
		Store:   store.New(cfg),
		Creds:   credstore.Keyring{},
		Clock:   clock.System{},
		Gateway: newGateway,
		Login:   runLogin,
	}, nil
}

// newGateway acquires an access token up front so a missing or rejected
// credential surfaces as a typed auth error before any task traffic.
func newGateway(ctx context.Context, env *commands.Env, dryRun bool) (reconcile.Gateway, error) {
	oauthCfg, err := env.Config.OAuthConfig()
	if err != nil {
		return nil, err
	}
	mgr := auth.NewManager(oauthCfg, env.Creds, env.Clock, env.Logger)
	if _, err := mgr.AccessToken(ctx); err != nil {
		return nil, err
	}
	httpClient := oauth2.NewClient(ctx, mgr.TokenSource(ctx))
	return gateway.New(ctx, httpClient, gateway.Config{
		DryRun: dryRun,
		Logger: env.Logger,
	})
}

func runLogin(ctx context.Context, env *commands.Env, port int, prompt io.Writer) error {
	oauthCfg, err := env.Config.OAuthConfig()
	if err != nil {
		return err
	}
	mgr := auth.NewManager(oauthCfg, env.Creds, env.Clock, env.Logger)
	return mgr.Login(ctx, port, prompt)
}
