// Package reconcile computes and applies the one-way diff that makes the
// remote task list match the local snapshot. Local state is authoritative;
// remote edits are overwritten, and remote tasks are deleted only when
// they carry the ownership marker.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"juggler/internal/logging"
	"juggler/internal/task"
)

// DefaultWorkers bounds concurrent remote operations. Operations target
// disjoint remote ids, so they never race against the same record.
const DefaultWorkers = 4

// Gateway is the remote surface the engine drives.
type Gateway interface {
	FetchAll(ctx context.Context) ([]task.Remote, error)
	Create(ctx context.Context, desired task.Desired) (string, error)
	Update(ctx context.Context, remoteID string, desired task.Desired) error
	Delete(ctx context.Context, remoteID string) error
}

// Action identifies one kind of remote change.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records one remote operation the pass applied, or would apply
// when the gateway runs in dry-run mode.
type Change struct {
	Action   Action
	Title    string
	RemoteID string
}

// Result reports the outcome of one pass. On a partial failure it holds
// everything that completed before the abort.
type Result struct {
	// Tasks is the snapshot for the caller to persist, with linkage
	// updated for every create that went through.
	Tasks []task.Local

	// Changes lists applied operations: creates and updates in local
	// snapshot order, then deletes in remote id order.
	Changes []Change

	// Unchanged counts linked tasks already in sync.
	Unchanged int

	// Foreign counts unowned remote tasks left untouched.
	Foreign int
}

// Error is the failure of one pass: the first gateway error hit, the
// operation that hit it, and the change log accumulated before the
// abort. Run pairs it with a partial Result holding the same changes.
type Error struct {
	// Op is the operation attempted: "fetch", "create", "update", or
	// "delete".
	Op string

	// Title and RemoteID identify the task involved, when known.
	Title    string
	RemoteID string

	// Applied lists the changes that completed before the abort.
	Applied []Change

	// Err is the underlying gateway error.
	Err error
}

func (e *Error) Error() string {
	op := e.Op
	switch {
	case e.Op == "fetch":
		op = "fetch remote snapshot"
	case e.RemoteID != "":
		op = fmt.Sprintf("%s task %s", e.Op, e.RemoteID)
	case e.Title != "":
		op = fmt.Sprintf("%s %q", e.Op, e.Title)
	}
	return op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Engine drives reconciliation passes against one gateway.
type Engine struct {
	gw      Gateway
	logger  *slog.Logger
	dryRun  bool
	workers int
}

// Config configures an Engine.
type Config struct {
	// DryRun suppresses local linkage writeback so the returned snapshot
	// is identical to the input. The gateway must be in dry-run mode too.
	DryRun bool

	// Workers bounds concurrent remote operations. Defaults to
	// DefaultWorkers.
	Workers int

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// New creates an Engine.
func New(gw Gateway, cfg Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		gw:      gw,
		logger:  logger,
		dryRun:  cfg.DryRun,
		workers: workers,
	}
}

type createOp struct {
	index   int
	desired task.Desired
	id      string
	done    bool
}

type updateOp struct {
	remoteID string
	desired  task.Desired
	done     bool
}

type deleteOp struct {
	remoteID string
	title    string
	done     bool
}

// Run executes one pass: fetch the full remote snapshot, diff it against
// locals, and apply creates, updates, then deletes. On a gateway failure
// the rest of the pass is abandoned and the error is an *Error; nothing
// is rolled back, and the returned Result reflects every operation that
// completed, so persisting it lets the next pass resume without
// duplicating work.
func (e *Engine) Run(ctx context.Context, locals []task.Local) (*Result, error) {
	remotes, err := e.gw.FetchAll(ctx)
	if err != nil {
		return nil, &Error{Op: "fetch", Err: err}
	}

	byID := make(map[string]task.Remote, len(remotes))
	for _, r := range remotes {
		byID[r.ID] = r
	}

	res := &Result{Tasks: make([]task.Local, len(locals))}
	copy(res.Tasks, locals)

	// Plan. Identity is the remote_id link alone; title text never
	// matches a local task to a remote one.
	claimed := make(map[string]bool, len(locals))
	var creates []createOp
	var updates []updateOp
	for i, l := range res.Tasks {
		desired := task.DesiredOf(l)
		if l.RemoteID != "" {
			if r, ok := byID[l.RemoteID]; ok && !claimed[l.RemoteID] {
				claimed[l.RemoteID] = true
				if desired.Matches(r) {
					res.Unchanged++
				} else {
					updates = append(updates, updateOp{remoteID: l.RemoteID, desired: desired})
				}
				continue
			}
			// The link points at a task that is gone remotely, or that
			// an earlier local task already claims. Recreate it under a
			// fresh id.
		}
		creates = append(creates, createOp{index: i, desired: desired})
	}

	var deletes []deleteOp
	for _, r := range remotes {
		if claimed[r.ID] {
			continue
		}
		if !task.IsOwned(r.Notes) {
			res.Foreign++
			e.logger.Debug("leaving unowned remote task",
				logging.RemoteID(r.ID),
				logging.Title(r.Title))
			continue
		}
		deletes = append(deletes, deleteOp{remoteID: r.ID, title: r.Title})
	}
	// Deletes run in id order so the operation set is deterministic
	// regardless of fetch order.
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].remoteID < deletes[j].remoteID })

	e.logger.Debug("reconciliation plan",
		slog.Int("creates", len(creates)),
		slog.Int("updates", len(updates)),
		slog.Int("deletes", len(deletes)),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("foreign", res.Foreign))

	// Apply creates and updates together; they touch disjoint remote
	// ids. Deletes wait until both finish so an aborted pass errs toward
	// leaving extra tasks behind rather than losing changes.
	applyErr := e.applyWrites(ctx, creates, updates)
	if applyErr == nil {
		applyErr = e.applyDeletes(ctx, deletes)
	}

	for _, op := range creates {
		if !op.done {
			continue
		}
		if !e.dryRun {
			res.Tasks[op.index].RemoteID = op.id
		}
		res.Changes = append(res.Changes, Change{Action: ActionCreate, Title: op.desired.Title, RemoteID: op.id})
	}
	for _, op := range updates {
		if op.done {
			res.Changes = append(res.Changes, Change{Action: ActionUpdate, Title: op.desired.Title, RemoteID: op.remoteID})
		}
	}
	for _, op := range deletes {
		if op.done {
			res.Changes = append(res.Changes, Change{Action: ActionDelete, Title: op.title, RemoteID: op.remoteID})
		}
	}

	if applyErr != nil {
		var rerr *Error
		if errors.As(applyErr, &rerr) {
			rerr.Applied = res.Changes
		}
		return res, applyErr
	}

	e.logger.Info("reconciliation pass complete",
		slog.Int("applied", len(res.Changes)),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("foreign", res.Foreign),
		logging.DryRun(e.dryRun))
	return res, nil
}

func (e *Engine) applyWrites(ctx context.Context, creates []createOp, updates []updateOp) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)

	for i := range creates {
		op := &creates[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := e.gw.Create(ctx, op.desired)
			if err != nil {
				return &Error{Op: "create", Title: op.desired.Title, Err: err}
			}
			op.id = id
			op.done = true
			return nil
		})
	}
	for i := range updates {
		op := &updates[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.gw.Update(ctx, op.remoteID, op.desired); err != nil {
				return &Error{Op: "update", Title: op.desired.Title, RemoteID: op.remoteID, Err: err}
			}
			op.done = true
			return nil
		})
	}
	return eg.Wait()
}

func (e *Engine) applyDeletes(ctx context.Context, deletes []deleteOp) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)

	for i := range deletes {
		op := &deletes[i]
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.gw.Delete(ctx, op.remoteID); err != nil {
				return &Error{Op: "delete", Title: op.title, RemoteID: op.remoteID, Err: err}
			}
			op.done = true
			return nil
		})
	}
	return eg.Wait()
}
