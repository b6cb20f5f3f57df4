package models

import (
	"regexp"
	"strconv"
	"time"
)

// SyncedTag is the tag written back to a Toggl entry once it has been
// booked in Redmine.
const SyncedTag = "#synced"

var (
	issueRefPattern     = regexp.MustCompile(`#(\d+)`)
	legacyMarkerPattern = regexp.MustCompile(regexp.QuoteMeta(SyncedTag) + `\[[0-9]*\]`)
)

// TogglTimeEntry is a single time entry fetched from Toggl. Immutable once
// fetched; Raw keeps the original payload so a write-back can send the full
// entry body.
type TogglTimeEntry struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	WorkspaceID     int64     `json:"workspace_id"`
	Start           time.Time `json:"start"`
	DurationSeconds int64     `json:"duration"`
	Description     string    `json:"description"`
	Tags            []string  `json:"tags"`

	Raw map[string]interface{} `json:"-"`
}

// Hours returns the tracked duration in hours.
func (e TogglTimeEntry) Hours() float64 {
	return float64(e.DurationSeconds) / 3600
}

// IsRunning reports whether the entry is still being tracked. Toggl encodes
// a running entry as a negative duration.
func (e TogglTimeEntry) IsRunning() bool {
	return e.DurationSeconds <= 0
}

// IssueID returns the Redmine issue number referenced in the description
// (the first "#123" token), or 0 if the description references none.
func (e TogglTimeEntry) IssueID() int64 {
	m := issueRefPattern.FindStringSubmatch(e.Description)
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// DateString returns the entry's start date as YYYY-MM-DD.
func (e TogglTimeEntry) DateString() string {
	return e.Start.Format("2006-01-02")
}

// HasTag reports whether the entry carries the given tag.
func (e TogglTimeEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// StripLegacyMarker removes the old in-description sync marker
// ("#synced[NNN]") that predates tag-based marking.
func StripLegacyMarker(description string) string {
	return legacyMarkerPattern.ReplaceAllString(description, "")
}
