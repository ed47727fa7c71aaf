// Package config resolves the juggler data directory, the fixed sync
// constants, and the OAuth client configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// AppName is the application directory name.
	AppName = "juggler"

	// DirEnv overrides the data directory when set.
	DirEnv = "JUGGLER_DIR"

	// ClientSecretEnv overrides the embedded OAuth client secret.
	ClientSecretEnv = "JUGGLER_CLIENT_SECRET"

	// TasksFile is the local task snapshot filename.
	TasksFile = "TODOs.yaml"

	// ArchiveDir is the snapshot archive directory name.
	ArchiveDir = "archive"

	// ClientFile is the optional OAuth client override filename. When
	// present it is parsed as a standard Google client-credentials JSON
	// and replaces the embedded client entirely.
	ClientFile = "google_oauth_client.json"

	// ListName is the remote task list all sync operations target.
	ListName = "juggler"

	// DefaultLoginPort is the default OAuth callback port.
	DefaultLoginPort = 8080

	// TasksScope is the OAuth scope required for task operations.
	TasksScope = "https://www.googleapis.com/auth/tasks"

	authURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL = "https://oauth2.googleapis.com/token"

	// Embedded desktop-app OAuth client. Native-app client values are not
	// confidential; the PKCE exchange protects the flow.
	defaultClientID     = "427291927957-9bon53siil65sgblb6hi846n53ddpte3.apps.googleusercontent.com"
	defaultClientSecret = "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"
)

// Config holds resolved paths and settings.
type Config struct {
	// Dir is the data directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New creates a Config. An empty dir falls back to JUGGLER_DIR, then to
// ~/.juggler.
func New(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	return &Config{Dir: dir}, nil
}

// DefaultDir returns the default data directory: JUGGLER_DIR if set,
// otherwise $HOME/.juggler.
func DefaultDir() string {
	if env := os.Getenv(DirEnv); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fall back to a relative directory if home can't be determined
		return "." + AppName
	}
	return filepath.Join(home, "."+AppName)
}

// TasksPath returns the path to the local task snapshot.
func (c *Config) TasksPath() string {
	return filepath.Join(c.Dir, TasksFile)
}

// ArchivePath returns the path to the snapshot archive directory.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Dir, ArchiveDir)
}

// ClientPath returns the path to the OAuth client override file.
func (c *Config) ClientPath() string {
	return filepath.Join(c.Dir, ClientFile)
}

// EnsureDir creates the data directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// OAuthConfig returns the OAuth client configuration. The embedded
// desktop client is used unless google_oauth_client.json exists in the
// data directory; JUGGLER_CLIENT_SECRET replaces just the embedded
// secret.
func (c *Config) OAuthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.ClientPath())
	if err == nil {
		cfg, err := google.ConfigFromJSON(data, TasksScope)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ClientFile, err)
		}
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", ClientFile, err)
	}

	secret := defaultClientSecret
	if env := os.Getenv(ClientSecretEnv); env != "" {
		secret = env
	}
	return &oauth2.Config{
		ClientID:     defaultClientID,
		ClientSecret: secret,
		Scopes:       []string{TasksScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}, nil
}
