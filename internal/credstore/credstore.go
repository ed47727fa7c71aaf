// Package credstore persists the OAuth refresh credential in the
// operating system keyring.
package credstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// Service is the keyring service name.
	Service = "juggler"

	// Account is the keyring account the credential is stored under.
	Account = "refresh-token"
)

// Store reads and writes the persisted refresh credential.
type Store interface {
	// Get returns the stored secret. ok is false when nothing is stored.
	Get() (secret string, ok bool, err error)

	// Set stores the secret, replacing any previous value.
	Set(secret string) error

	// Delete removes the stored secret. Deleting when nothing is stored
	// is not an error.
	Delete() error
}

// Keyring is a Store backed by the OS keyring.
type Keyring struct{}

// Get implements Store.
func (Keyring) Get() (string, bool, error) {
	secret, err := keyring.Get(Service, Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring get: %w", err)
	}
	return secret, true, nil
}

// Set implements Store.
func (Keyring) Set(secret string) error {
	if err := keyring.Set(Service, Account, secret); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Delete implements Store.
func (Keyring) Delete() error {
	err := keyring.Delete(Service, Account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}
