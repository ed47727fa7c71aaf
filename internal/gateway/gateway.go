// Package gateway applies desired task state to the remote Google Tasks
// list: paginated reads plus create, update, and delete, with dry-run
// short-circuiting and bounded retries on transient failures.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"juggler/internal/config"
	"juggler/internal/logging"
	"juggler/internal/task"
)

const (
	// PageSize is the number of items per list page.
	PageSize = 100

	// APITimeout bounds each individual API call.
	APITimeout = 5 * time.Second

	// maxAttempts bounds retries of one operation on transient failures.
	maxAttempts = 4
)

// Errors reported by the gateway. HTTP 429 and 5xx responses are retried
// before surfacing; everything else fails the call immediately.
var (
	ErrListNotFound      = errors.New("task list not found")
	ErrRateLimited       = errors.New("rate limited by remote")
	ErrMalformedResponse = errors.New("malformed remote response")
)

// HTTPError reports a remote HTTP failure outside the recognized
// categories.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote returned HTTP %d", e.Status)
}

// Config configures a Gateway.
type Config struct {
	// ListName is the remote list all operations target. Defaults to
	// the fixed sync list.
	ListName string

	// DryRun makes every write return a synthesized result and log the
	// intended action without touching the remote list.
	DryRun bool

	// Endpoint overrides the API base URL. Tests point it at a local
	// server.
	Endpoint string

	// Logger receives the audit log. Defaults to a discard logger.
	Logger *slog.Logger
}

// Gateway translates desired task state into Google Tasks API calls
// against one fixed named list.
type Gateway struct {
	svc      *tasks.Service
	listName string
	dryRun   bool
	logger   *slog.Logger

	retryInterval time.Duration

	mu     sync.Mutex
	listID string
}

// New creates a Gateway. httpClient must already carry authorization;
// the gateway never sees credentials itself.
func New(ctx context.Context, httpClient *http.Client, cfg Config) (*Gateway, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}

	listName := cfg.ListName
	if listName == "" {
		listName = config.ListName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gateway{
		svc:           svc,
		listName:      listName,
		dryRun:        cfg.DryRun,
		logger:        logger,
		retryInterval: 500 * time.Millisecond,
	}, nil
}

// FetchAll returns every task on the list, following pagination cursors
// until exhausted. Completed and hidden tasks are included so done items
// stay visible to the caller's diff.
func (g *Gateway) FetchAll(ctx context.Context) ([]task.Remote, error) {
	listID, err := g.ensureList(ctx)
	if err != nil {
		return nil, err
	}

	var result []task.Remote
	pageToken := ""
	for {
		var resp *tasks.Tasks
		err := g.retry(ctx, "tasks.list", func(callCtx context.Context) error {
			var err error
			resp, err = g.svc.Tasks.List(listID).
				MaxResults(PageSize).
				ShowCompleted(true).
				ShowHidden(true).
				PageToken(pageToken).
				Context(callCtx).
				Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, item := range resp.Items {
			remote, err := toRemote(item)
			if err != nil {
				return nil, fmt.Errorf("list tasks: %w", err)
			}
			result = append(result, remote)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	g.logger.Debug("fetched remote snapshot",
		logging.Operation("tasks.list"),
		slog.String(logging.KeyList, g.listName),
		slog.Int("count", len(result)))
	return result, nil
}

// Create inserts a new task and returns its server-assigned id. In
// dry-run it returns a placeholder id and only logs the intent.
func (g *Gateway) Create(ctx context.Context, desired task.Desired) (string, error) {
	if g.dryRun {
		id := "dry-run-" + uuid.NewString()
		g.logger.Info("would create task",
			logging.Operation("tasks.insert"),
			logging.DryRun(true),
			logging.RemoteID(id),
			logging.Title(desired.Title))
		return id, nil
	}

	listID, err := g.ensureList(ctx)
	if err != nil {
		return "", err
	}

	var created *tasks.Task
	err = g.retry(ctx, "tasks.insert", func(callCtx context.Context) error {
		var err error
		created, err = g.svc.Tasks.Insert(listID, fromDesired(desired)).Context(callCtx).Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("create task: missing id: %w", ErrMalformedResponse)
	}

	g.logger.Info("created task",
		logging.Operation("tasks.insert"),
		logging.RemoteID(created.Id),
		logging.Title(desired.Title))
	return created.Id, nil
}

// Update overwrites every synced field of an existing task, clearing
// remote values the desired state no longer carries. In dry-run it only
// logs the intent.
func (g *Gateway) Update(ctx context.Context, remoteID string, desired task.Desired) error {
	if g.dryRun {
		g.logger.Info("would update task",
			logging.Operation("tasks.update"),
			logging.DryRun(true),
			logging.RemoteID(remoteID),
			logging.Title(desired.Title))
		return nil
	}

	listID, err := g.ensureList(ctx)
	if err != nil {
		return err
	}

	payload := fromDesired(desired)
	payload.Id = remoteID
	if desired.Due.IsZero() {
		payload.NullFields = append(payload.NullFields, "Due")
	}
	if desired.Status == task.StatusPending {
		// Flipping a task back open requires clearing its completion
		// stamp as well.
		payload.NullFields = append(payload.NullFields, "Completed")
	}

	err = g.retry(ctx, "tasks.update", func(callCtx context.Context) error {
		_, err := g.svc.Tasks.Update(listID, remoteID, payload).Context(callCtx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("update task %s: %w", remoteID, err)
	}

	g.logger.Info("updated task",
		logging.Operation("tasks.update"),
		logging.RemoteID(remoteID),
		logging.Title(desired.Title))
	return nil
}

// Delete removes a task. In dry-run it only logs the intent.
func (g *Gateway) Delete(ctx context.Context, remoteID string) error {
	if g.dryRun {
		g.logger.Info("would delete task",
			logging.Operation("tasks.delete"),
			logging.DryRun(true),
			logging.RemoteID(remoteID))
		return nil
	}

	listID, err := g.ensureList(ctx)
	if err != nil {
		return err
	}

	err = g.retry(ctx, "tasks.delete", func(callCtx context.Context) error {
		return g.svc.Tasks.Delete(listID, remoteID).Context(callCtx).Do()
	})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", remoteID, err)
	}

	g.logger.Info("deleted task",
		logging.Operation("tasks.delete"),
		logging.RemoteID(remoteID))
	return nil
}

// ensureList resolves the configured list name to its id, paging through
// the tasklists collection. The result is memoized for the life of the
// gateway.
func (g *Gateway) ensureList(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listID != "" {
		return g.listID, nil
	}

	pageToken := ""
	for {
		var resp *tasks.TaskLists
		err := g.retry(ctx, "tasklists.list", func(callCtx context.Context) error {
			var err error
			resp, err = g.svc.Tasklists.List().
				MaxResults(PageSize).
				PageToken(pageToken).
				Context(callCtx).
				Do()
			return err
		})
		if err != nil {
			return "", fmt.Errorf("resolve list %q: %w", g.listName, err)
		}
		for _, l := range resp.Items {
			if l.Title == g.listName {
				g.listID = l.Id
				return g.listID, nil
			}
		}
		if resp.NextPageToken == "" {
			return "", fmt.Errorf("resolve list %q: %w", g.listName, ErrListNotFound)
		}
		pageToken = resp.NextPageToken
	}
}

// retry runs one API call with a per-attempt timeout, retrying rate
// limits and server errors with exponential backoff.
func (g *Gateway) retry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	attempt := func() (struct{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, APITimeout)
		defer cancel()

		err := call(callCtx)
		if err == nil {
			return struct{}{}, nil
		}
		err = classify(err)
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		g.logger.Warn("transient remote failure",
			logging.Operation(op),
			logging.Err(err))
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryInterval
	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxAttempts))
	return err
}

// classify maps transport and API errors onto the gateway's error set.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return ErrRateLimited
		case apiErr.Code == http.StatusForbidden && rateLimitReason(apiErr):
			return ErrRateLimited
		default:
			return &HTTPError{Status: apiErr.Code}
		}
	}

	// Truncated bodies surface as io.ErrUnexpectedEOF from the decoder.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}

func rateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
			return true
		}
	}
	return false
}

func retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status >= 500
}

// toRemote converts an API task into the unified remote model, with the
// due date normalized to its UTC calendar day.
func toRemote(t *tasks.Task) (task.Remote, error) {
	if t.Id == "" {
		return task.Remote{}, fmt.Errorf("task missing id: %w", ErrMalformedResponse)
	}
	r := task.Remote{
		ID:     t.Id,
		Title:  t.Title,
		Notes:  t.Notes,
		Status: t.Status,
	}
	if t.Due != "" {
		due, err := time.Parse(time.RFC3339, t.Due)
		if err != nil {
			return task.Remote{}, fmt.Errorf("task %s: bad due %q: %w", t.Id, t.Due, ErrMalformedResponse)
		}
		r.Due = task.NormalizeDue(due)
	}
	return r, nil
}

// fromDesired builds the API payload for a desired state.
func fromDesired(d task.Desired) *tasks.Task {
	t := &tasks.Task{
		Title:  d.Title,
		Notes:  d.Notes,
		Status: d.Status,
	}
	if !d.Due.IsZero() {
		t.Due = d.Due.Format(time.RFC3339)
	}
	return t
}
