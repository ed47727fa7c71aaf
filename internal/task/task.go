// Package task defines the local and remote task models and the rules
// for deriving remote state from local state.
package task

import (
	"strings"
	"time"
)

const (
	// TitlePrefix marks remote task titles written by this tool. It is
	// cosmetic only and carries no ownership meaning.
	TitlePrefix = "j:"

	// OwnershipMarker is the sentinel embedded in the notes field of
	// every remote task this tool creates. It is the sole authority for
	// delete eligibility.
	OwnershipMarker = "JUGGLER_META_OWNED_V1"

	// StatusPending and StatusCompleted are the remote wire values.
	StatusPending   = "needsAction"
	StatusCompleted = "completed"
)

// Local is one task as stored in the local snapshot. The title must be
// non-empty after trimming; everything else is optional.
type Local struct {
	Title    string     `yaml:"title"`
	Comment  string     `yaml:"comment,omitempty"`
	Done     bool       `yaml:"done"`
	DueDate  *time.Time `yaml:"due_date,omitempty"`
	RemoteID string     `yaml:"remote_id,omitempty"`
}

// Remote is one task as it exists on the remote list. Due is date-only,
// normalized to UTC midnight; the zero value means no due date.
type Remote struct {
	ID     string
	Title  string
	Notes  string
	Status string
	Due    time.Time
}

// Desired is the remote state a Local task should have: prefixed title,
// marker-bearing notes, wire status, and normalized due date.
type Desired struct {
	Title  string
	Notes  string
	Status string
	Due    time.Time
}

// DesiredOf derives the desired remote state for l.
func DesiredOf(l Local) Desired {
	d := Desired{
		Title:  TitlePrefix + strings.TrimSpace(l.Title),
		Notes:  EncodeNotes(l.Comment),
		Status: StatusPending,
	}
	if l.Done {
		d.Status = StatusCompleted
	}
	if l.DueDate != nil {
		d.Due = NormalizeDue(*l.DueDate)
	}
	return d
}

// Matches reports whether r already carries the desired state. Due dates
// are compared at UTC calendar-day granularity.
func (d Desired) Matches(r Remote) bool {
	return d.Title == r.Title &&
		d.Notes == r.Notes &&
		d.Status == r.Status &&
		NormalizeDue(d.Due).Equal(NormalizeDue(r.Due))
}

// NormalizeDue truncates t to midnight of its UTC calendar day. The zero
// value passes through unchanged.
func NormalizeDue(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EncodeNotes builds the remote notes field: the user comment followed by
// a blank line and the ownership marker as the final line. An empty
// comment yields just the marker.
func EncodeNotes(comment string) string {
	if comment == "" {
		return OwnershipMarker
	}
	return strings.TrimRight(comment, "\n") + "\n\n" + OwnershipMarker
}

// DecodeNotes splits a remote notes field into the user comment and an
// ownership flag. Only a marker in the reserved trailing position counts;
// notes that merely mention the marker elsewhere are not owned.
func DecodeNotes(notes string) (comment string, owned bool) {
	trimmed := strings.TrimRight(notes, " \t\r\n")
	if trimmed == OwnershipMarker {
		return "", true
	}
	if body, ok := strings.CutSuffix(trimmed, "\n"+OwnershipMarker); ok {
		return strings.TrimRight(body, "\n"), true
	}
	return notes, false
}

// IsOwned reports whether notes carries the ownership marker in its
// reserved trailing position.
func IsOwned(notes string) bool {
	_, owned := DecodeNotes(notes)
	return owned
}
