package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"juggler/internal/logging"
	"juggler/internal/task"
)

func newTestGateway(t *testing.T, endpoint string, cfg Config) *Gateway {
	t.Helper()
	cfg.Endpoint = endpoint
	g, err := New(context.Background(), &http.Client{}, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.retryInterval = time.Millisecond
	return g
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

// singleList answers the tasklists collection with one matching list.
func singleList(t *testing.T, mux *http.ServeMux) {
	mux.HandleFunc("/tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{"id": "L1", "title": "juggler"}},
		})
	})
}

func TestFetchAllPaginates(t *testing.T) {
	var listsCalls atomic.Int64
	var tasksQuery url.Values

	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		listsCalls.Add(1)
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(t, w, map[string]any{
				"items":         []map[string]any{{"id": "zzz", "title": "groceries"}},
				"nextPageToken": "lists-2",
			})
		case "lists-2":
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{{"id": "L1", "title": "juggler"}},
			})
		default:
			t.Errorf("unexpected lists pageToken %q", r.URL.Query().Get("pageToken"))
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if tasksQuery == nil {
			tasksQuery = r.URL.Query()
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "t1", "title": "j: one", "status": "needsAction", "due": "2024-06-01T15:30:00.000Z"},
					{"id": "t2", "title": "j: two", "status": "completed"},
				},
				"nextPageToken": "tasks-2",
			})
		case "tasks-2":
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "t3", "title": "loose end", "status": "needsAction"},
				},
			})
		default:
			t.Errorf("unexpected tasks pageToken %q", r.URL.Query().Get("pageToken"))
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	got, err := g.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	wantIDs := []string{"t1", "t2", "t3"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d tasks, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("task %d id = %q, want %q", i, got[i].ID, id)
		}
	}

	// Due dates come back pinned to their UTC calendar day.
	wantDue := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got[0].Due.Equal(wantDue) {
		t.Errorf("t1 due = %v, want %v", got[0].Due, wantDue)
	}
	if got[1].Status != task.StatusCompleted {
		t.Errorf("t2 status = %q, want %q", got[1].Status, task.StatusCompleted)
	}

	if tasksQuery.Get("showCompleted") != "true" || tasksQuery.Get("showHidden") != "true" {
		t.Errorf("tasks query = %v, want showCompleted=true and showHidden=true", tasksQuery)
	}

	// The list id is memoized, so a second fetch must not touch the
	// tasklists collection again.
	if _, err := g.FetchAll(context.Background()); err != nil {
		t.Fatalf("second FetchAll: %v", err)
	}
	if n := listsCalls.Load(); n != 2 {
		t.Errorf("tasklists requests = %d, want 2 (both pages, once)", n)
	}
}

func TestFetchAllListMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tasks/v1/users/@me/lists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{"id": "zzz", "title": "groceries"}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	_, err := g.FetchAll(context.Background())
	if !errors.Is(err, ErrListNotFound) {
		t.Fatalf("FetchAll error = %v, want ErrListNotFound", err)
	}
}

func TestCreateMapsFields(t *testing.T) {
	var body []byte
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ = io.ReadAll(r.Body)
		writeJSON(t, w, map[string]any{"id": "new-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var logBuf bytes.Buffer
	g := newTestGateway(t, srv.URL, Config{Logger: logging.New(&logBuf, true)})

	desired := task.Desired{
		Title:  "j: buy milk",
		Notes:  "errand\n\n" + task.OwnershipMarker,
		Status: task.StatusPending,
		Due:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := g.Create(context.Background(), desired)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "new-1" {
		t.Errorf("id = %q, want %q", id, "new-1")
	}

	var sent struct {
		Title  string `json:"title"`
		Notes  string `json:"notes"`
		Status string `json:"status"`
		Due    string `json:"due"`
	}
	if err := json.Unmarshal(body, &sent); err != nil {
		t.Fatalf("decode insert body: %v", err)
	}
	if sent.Title != desired.Title {
		t.Errorf("sent title = %q, want %q", sent.Title, desired.Title)
	}
	if sent.Notes != desired.Notes {
		t.Errorf("sent notes = %q, want %q", sent.Notes, desired.Notes)
	}
	if sent.Status != task.StatusPending {
		t.Errorf("sent status = %q, want %q", sent.Status, task.StatusPending)
	}
	if sent.Due != "2024-06-01T00:00:00Z" {
		t.Errorf("sent due = %q, want UTC midnight", sent.Due)
	}

	out := logBuf.String()
	if !strings.Contains(out, "remote_id=new-1") || !strings.Contains(out, "operation=tasks.insert") {
		t.Errorf("audit log missing create record:\n%s", out)
	}
}

func TestDryRunShortCircuits(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{DryRun: true})
	ctx := context.Background()
	desired := task.Desired{Title: "j: anything", Status: task.StatusPending}

	id1, err := g.Create(ctx, desired)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id2, err := g.Create(ctx, desired)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(id1, "dry-run-") {
		t.Errorf("id = %q, want dry-run prefix", id1)
	}
	if id1 == id2 {
		t.Errorf("placeholder ids collide: %q", id1)
	}
	if err := g.Update(ctx, "t1", desired); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := g.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("dry run issued %d requests, want 0", n)
	}
}

func TestUpdateClearsRemovedFields(t *testing.T) {
	var method string
	var body []byte
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks/t9", func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ = io.ReadAll(r.Body)
		writeJSON(t, w, map[string]any{"id": "t9"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	desired := task.Desired{Title: "j: reopened", Status: task.StatusPending}
	if err := g.Update(context.Background(), "t9", desired); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if method != http.MethodPut {
		t.Errorf("method = %s, want PUT", method)
	}
	// A cleared due date and a reopened status must null the remote
	// fields explicitly; omitting them would leave stale values behind.
	if !strings.Contains(string(body), `"due":null`) {
		t.Errorf("update body lacks due null: %s", body)
	}
	if !strings.Contains(string(body), `"completed":null`) {
		t.Errorf("update body lacks completed null: %s", body)
	}
}

func TestCreateRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, map[string]any{"id": "new-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	id, err := g.Create(context.Background(), task.Desired{Title: "j: x", Status: task.StatusPending})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "new-1" {
		t.Errorf("id = %q, want %q", id, "new-1")
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}

func TestCreateRetriesQuotaDenial(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			io.WriteString(w, `{"error":{"code":403,"message":"quota","errors":[{"reason":"userRateLimitExceeded"}]}}`)
			return
		}
		writeJSON(t, w, map[string]any{"id": "new-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	if _, err := g.Create(context.Background(), task.Desired{Title: "j: x", Status: task.StatusPending}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want 2", n)
	}
}

func TestCreateRateLimitExhausted(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	_, err := g.Create(context.Background(), task.Desired{Title: "j: x", Status: task.StatusPending})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Create error = %v, want ErrRateLimited", err)
	}
	if n := attempts.Load(); n != maxAttempts {
		t.Errorf("attempts = %d, want %d", n, maxAttempts)
	}
}

func TestFetchAllServerErrorSurfaced(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	_, err := g.FetchAll(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusInternalServerError {
		t.Fatalf("FetchAll error = %v, want HTTP 500", err)
	}
	if n := attempts.Load(); n != maxAttempts {
		t.Errorf("attempts = %d, want %d", n, maxAttempts)
	}
}

func TestUpdateNotFoundNotRetried(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks/gone", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	err := g.Update(context.Background(), "gone", task.Desired{Title: "j: x", Status: task.StatusPending})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("Update error = %v, want HTTP 404", err)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestFetchAllMalformedResponse(t *testing.T) {
	var attempts atomic.Int64
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"items": [`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	_, err := g.FetchAll(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("FetchAll error = %v, want ErrMalformedResponse", err)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestFetchAllBadDueRejected(t *testing.T) {
	mux := http.NewServeMux()
	singleList(t, mux)
	mux.HandleFunc("/tasks/v1/lists/L1/tasks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{"id": "t1", "title": "j: x", "status": "needsAction", "due": "June 1st"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv.URL, Config{})
	_, err := g.FetchAll(context.Background())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("FetchAll error = %v, want ErrMalformedResponse", err)
	}
}

func TestAuditLogOmitsNotes(t *testing.T) {
	var buf bytes.Buffer
	g := newTestGateway(t, "", Config{DryRun: true, Logger: logging.New(&buf, true)})

	desired := task.Desired{
		Title:  "j: call bank",
		Notes:  "account 9981\n\n" + task.OwnershipMarker,
		Status: task.StatusPending,
	}
	if _, err := g.Create(context.Background(), desired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "operation=tasks.insert") || !strings.Contains(out, "dry_run=true") {
		t.Errorf("audit log missing intent record:\n%s", out)
	}
	// Notes hold free-form user text and stay out of the log.
	if strings.Contains(out, "9981") {
		t.Errorf("audit log leaked notes content:\n%s", out)
	}
}
