package sync

import (
	"time"

	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/recon"
)

// Classification is the per-entry verdict after matching.
type Classification int

const (
	// ClassPending entries will be created or updated in Redmine.
	ClassPending Classification = iota
	// ClassSynced entries already have an identical Redmine counterpart.
	ClassSynced
	// ClassNoIssueRef entries carry no "#123" issue reference.
	ClassNoIssueRef
	// ClassUnknownIssue entries reference an issue Redmine does not know.
	ClassUnknownIssue
	// ClassNoActivity entries have no resolvable activity and no default
	// is configured.
	ClassNoActivity
)

func (c Classification) String() string {
	switch c {
	case ClassPending:
		return "pending"
	case ClassSynced:
		return "synced"
	case ClassNoIssueRef:
		return "no issue ref"
	case ClassUnknownIssue:
		return "unknown issue"
	case ClassNoActivity:
		return "no activity"
	default:
		return "unknown"
	}
}

// Outcome is the result of the write-back attempt for a pending entry.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}

// EntryReport is the classification and write-back result for one
// SyncedEntry.
type EntryReport struct {
	Entry        *recon.SyncedEntry
	Class        Classification
	IssueSubject string
	Outcome      Outcome
	Err          string
}

// DayReport collects everything that happened in one day window.
type DayReport struct {
	Day  time.Time
	From time.Time
	To   time.Time

	Entries         []*EntryReport
	UnmatchedLedger []models.RedmineTimeEntry

	// TotalHours sums the day's hours on both sides: all source entries
	// plus Redmine entries with no source counterpart.
	TotalHours float64

	// Confirmed records whether the write phase was approved. False means
	// the day ran as a dry run.
	Confirmed bool
}

// Pending returns the entries eligible for write-back.
func (r *DayReport) Pending() []*EntryReport {
	var pending []*EntryReport
	for _, er := range r.Entries {
		if er.Class == ClassPending {
			pending = append(pending, er)
		}
	}
	return pending
}

// CountByClass returns how many entries got the given classification.
func (r *DayReport) CountByClass(c Classification) int {
	n := 0
	for _, er := range r.Entries {
		if er.Class == c {
			n++
		}
	}
	return n
}

// WrittenCount returns how many entries were created or updated.
func (r *DayReport) WrittenCount() int {
	n := 0
	for _, er := range r.Entries {
		if er.Outcome == OutcomeCreated || er.Outcome == OutcomeUpdated {
			n++
		}
	}
	return n
}

// FailedCount returns how many write-backs failed.
func (r *DayReport) FailedCount() int {
	n := 0
	for _, er := range r.Entries {
		if er.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}
