// Package testutil provides testing fakes and helpers.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"juggler/internal/task"
)

// FakeGateway is an in-memory stand-in for the remote task list. It
// mirrors the real gateway's dry-run behavior: operations return
// placeholder ids and leave the remote state untouched.
type FakeGateway struct {
	mu     sync.Mutex
	tasks  map[string]task.Remote
	nextID int

	// DryRun switches the fake into intent-only mode.
	DryRun bool

	// Error injection for testing.
	FetchErr  error
	CreateErr error
	UpdateErr error
	DeleteErr error

	// CreateErrAfter delays CreateErr until that many creates have
	// succeeded. Zero means CreateErr fires on the first create.
	CreateErrAfter int

	FetchCalls  int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

// NewFakeGateway creates an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{tasks: make(map[string]task.Remote)}
}

// Seed places a remote task directly into the fake list.
func (f *FakeGateway) Seed(r task.Remote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[r.ID] = r
}

// Remote returns a copy of the current remote state keyed by id.
func (f *FakeGateway) Remote() map[string]task.Remote {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]task.Remote, len(f.tasks))
	for id, r := range f.tasks {
		out[id] = r
	}
	return out
}

// FetchAll returns the remote tasks in unspecified order.
func (f *FakeGateway) FetchAll(ctx context.Context) ([]task.Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	out := make([]task.Remote, 0, len(f.tasks))
	for _, r := range f.tasks {
		out = append(out, r)
	}
	return out, nil
}

// Create adds a task and returns its id.
func (f *FakeGateway) Create(ctx context.Context, desired task.Desired) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil && f.CreateCalls > f.CreateErrAfter {
		return "", f.CreateErr
	}
	f.nextID++
	if f.DryRun {
		return fmt.Sprintf("dry-run-%d", f.nextID), nil
	}
	id := fmt.Sprintf("remote-%d", f.nextID)
	f.tasks[id] = task.Remote{
		ID:     id,
		Title:  desired.Title,
		Notes:  desired.Notes,
		Status: desired.Status,
		Due:    desired.Due,
	}
	return id, nil
}

// Update overwrites all fields of an existing task.
func (f *FakeGateway) Update(ctx context.Context, remoteID string, desired task.Desired) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if f.DryRun {
		return nil
	}
	if _, ok := f.tasks[remoteID]; !ok {
		return fmt.Errorf("update %s: not found", remoteID)
	}
	f.tasks[remoteID] = task.Remote{
		ID:     remoteID,
		Title:  desired.Title,
		Notes:  desired.Notes,
		Status: desired.Status,
		Due:    desired.Due,
	}
	return nil
}

// Delete removes a task.
func (f *FakeGateway) Delete(ctx context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if f.DryRun {
		return nil
	}
	if _, ok := f.tasks[remoteID]; !ok {
		return fmt.Errorf("delete %s: not found", remoteID)
	}
	delete(f.tasks, remoteID)
	return nil
}
