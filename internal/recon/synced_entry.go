// Package recon pairs Toggl time entries with Redmine time entries for a
// single day window and decides which entries still need a write-back.
package recon

import (
	"fmt"
	"math"
	"strings"

	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/timeutil"
)

// Score weights. An issue-reference match must dominate every other factor
// combined, so MinScore equals the issue weight: a pairing is only ever
// committed between entries booked on the same issue, with day, duration
// and description breaking ties.
const (
	scoreIssueMatch  = 100
	scoreSameDay     = 25
	scoreDuration    = 25
	scoreDescription = 10

	// MinScore is the minimum score a combination needs to be committed
	// by ReconciliationSet.Reconcile.
	MinScore = scoreIssueMatch
)

// hoursTolerance is the duration slack treated as equal. Redmine stores
// hours with two decimals.
const hoursTolerance = 0.005

// SyncedEntry wraps one Toggl entry together with its matched Redmine
// entry (if any) and the resolved activity (if any).
type SyncedEntry struct {
	source   models.TogglTimeEntry
	ledger   *models.RedmineTimeEntry
	activity *models.Activity
}

// NewSyncedEntry wraps a Toggl entry. The source is bound for the
// lifetime of the SyncedEntry.
func NewSyncedEntry(source models.TogglTimeEntry) *SyncedEntry {
	return &SyncedEntry{source: source}
}

// Source returns the wrapped Toggl entry.
func (e *SyncedEntry) Source() models.TogglTimeEntry {
	return e.source
}

// Ledger returns the associated Redmine entry. Callers must check
// HasLedgerEntry first.
func (e *SyncedEntry) Ledger() models.RedmineTimeEntry {
	return *e.ledger
}

// SetLedger associates a Redmine entry, replacing any previous
// association. Called by the matcher when committing a winning pairing.
func (e *SyncedEntry) SetLedger(entry models.RedmineTimeEntry) {
	e.ledger = &entry
}

// Activity returns the resolved activity. Callers must check HasActivity
// first.
func (e *SyncedEntry) Activity() models.Activity {
	return *e.activity
}

// SetActivity binds the resolved Redmine activity.
func (e *SyncedEntry) SetActivity(a models.Activity) {
	e.activity = &a
}

// HasLedgerEntry reports whether a Redmine entry has been associated.
func (e *SyncedEntry) HasLedgerEntry() bool {
	return e.ledger != nil
}

// HasActivity reports whether an activity has been resolved.
func (e *SyncedEntry) HasActivity() bool {
	return e.activity != nil
}

// MatchScore rates how well a candidate Redmine entry corresponds to the
// wrapped Toggl entry. Pure function of the two entries, higher is better.
func (e *SyncedEntry) MatchScore(candidate models.RedmineTimeEntry) int {
	score := 0

	if ref := e.source.IssueID(); ref != 0 && ref == candidate.IssueID {
		score += scoreIssueMatch
	}

	if timeutil.SameDay(e.source.Start, candidate.SpentOn) {
		score += scoreSameDay
	}

	diff := math.Abs(e.source.Hours() - candidate.Hours)
	switch {
	case diff <= hoursTolerance:
		score += scoreDuration
	case diff < 1:
		score += int(float64(scoreDuration) * (1 - diff))
	}

	if e.source.Description != "" &&
		models.EscapeAmpersand(e.source.Description) == candidate.Comments {
		score += scoreDescription
	}

	return score
}

// HasChanges reports whether the entry still needs a write-back: true when
// no Redmine entry is associated, or when any synced field differs.
func (e *SyncedEntry) HasChanges() bool {
	if e.ledger == nil {
		return true
	}
	return len(e.changedFields()) > 0
}

// ChangeSummary returns a human-readable list of differing fields. For
// reporting only.
func (e *SyncedEntry) ChangeSummary() string {
	if e.ledger == nil {
		return "no ledger entry"
	}
	return strings.Join(e.changedFields(), ", ")
}

func (e *SyncedEntry) changedFields() []string {
	var changed []string

	if ref := e.source.IssueID(); ref != e.ledger.IssueID {
		changed = append(changed, fmt.Sprintf("issue: #%d -> #%d", e.ledger.IssueID, ref))
	}
	if !timeutil.SameDay(e.source.Start, e.ledger.SpentOn) {
		changed = append(changed, fmt.Sprintf("date: %s -> %s", e.ledger.DateString(), e.source.DateString()))
	}
	if math.Abs(e.source.Hours()-e.ledger.Hours) > hoursTolerance {
		changed = append(changed, fmt.Sprintf("hours: %s -> %s",
			timeutil.FloatToTime(e.ledger.Hours), timeutil.FloatToTime(e.source.Hours())))
	}
	// Activity can only be compared once one has been resolved from the
	// source side.
	if e.activity != nil && e.activity.ID != e.ledger.ActivityID {
		changed = append(changed, fmt.Sprintf("activity: %s -> %s", e.ledger.ActivityName, e.activity.Name))
	}
	if models.EscapeAmpersand(e.source.Description) != e.ledger.Comments {
		changed = append(changed, "description")
	}

	return changed
}
