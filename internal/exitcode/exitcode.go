// Package exitcode defines exit codes for the CLI.
package exitcode

// Exit codes, grouped by who has to act on the failure.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, bad flag, bad file).
	UserError = 1

	// AuthError indicates an auth/config error; re-running login is the
	// usual fix.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3
)
