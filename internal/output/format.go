// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"

	"juggler/internal/auth"
	"juggler/internal/reconcile"
	"juggler/internal/task"
)

// FormatLocalTask formats a task line for the list command.
// Format: "{N:>4}  [{x| }] {TITLE}" plus " (due YYYY-MM-DD)" when set.
func FormatLocalTask(w io.Writer, num int, t task.Local) {
	mark := " "
	if t.Done {
		mark = "x"
	}
	line := fmt.Sprintf("%4d  [%s] %s", num, mark, normalizeTitle(t.Title))
	if t.DueDate != nil {
		line += fmt.Sprintf(" (due %s)", t.DueDate.Format("2006-01-02"))
	}
	fmt.Fprintln(w, line)
}

// FormatChangeLog renders the outcome of a reconciliation pass: one line
// per change, then a summary.
func FormatChangeLog(w io.Writer, res *reconcile.Result, dryRun bool) {
	for _, c := range res.Changes {
		fmt.Fprintf(w, "%-13s %s\n", verb(c.Action, dryRun), normalizeTitle(c.Title))
	}
	if len(res.Changes) > 0 {
		fmt.Fprintln(w)
	}

	created, updated, deleted := tally(res.Changes)
	fmt.Fprintf(w, "%d created, %d updated, %d deleted, %d unchanged\n",
		created, updated, deleted, res.Unchanged)
	if res.Foreign > 0 {
		fmt.Fprintf(w, "%d unmanaged remote task(s) left untouched\n", res.Foreign)
	}
	if dryRun {
		fmt.Fprintln(w, "dry run: nothing was applied")
	}
}

// FormatDiagnostics renders the auth debug report.
func FormatDiagnostics(w io.Writer, d auth.Diagnostics) {
	fmt.Fprintf(w, "refresh credential present: %t\n", d.CredentialPresent)
	if d.CredentialPresent {
		fmt.Fprintf(w, "refresh credential length:  %d\n", d.CredentialLen)
	}
}

func verb(a reconcile.Action, dryRun bool) string {
	if dryRun {
		return "would " + string(a)
	}
	switch a {
	case reconcile.ActionCreate:
		return "created"
	case reconcile.ActionUpdate:
		return "updated"
	case reconcile.ActionDelete:
		return "deleted"
	}
	return string(a)
}

func tally(changes []reconcile.Change) (int, int, int) {
	var created, updated, deleted int
	for _, c := range changes {
		switch c.Action {
		case reconcile.ActionCreate:
			created++
		case reconcile.ActionUpdate:
			updated++
		case reconcile.ActionDelete:
			deleted++
		}
	}
	return created, updated, deleted
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.ReplaceAll(title, "\r", " ")
	title = strings.ReplaceAll(title, "\n", " ")

	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}
