package testutil

import "sync"

// FakeCredStore is an in-memory credential store for testing.
type FakeCredStore struct {
	mu      sync.Mutex
	Secret  string
	Present bool

	// Error injection for testing.
	GetErr    error
	SetErr    error
	DeleteErr error

	SetCalls    int
	DeleteCalls int
}

// Get implements credstore.Store.
func (f *FakeCredStore) Get() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return "", false, f.GetErr
	}
	return f.Secret, f.Present, nil
}

// Set implements credstore.Store.
func (f *FakeCredStore) Set(secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SetCalls++
	if f.SetErr != nil {
		return f.SetErr
	}
	f.Secret = secret
	f.Present = true
	return nil
}

// Delete implements credstore.Store.
func (f *FakeCredStore) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Secret = ""
	f.Present = false
	return nil
}
