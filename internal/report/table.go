// Package report renders day reports as console tables.
package report

import (
	"fmt"
	"io"

	"toggl-redmine-sync/internal/sync"
	"toggl-redmine-sync/internal/timeutil"

	"github.com/olekukonko/tablewriter"
)

// RenderDay writes the day's entries and unmatched Redmine entries as a
// table with a total-duration footer.
func RenderDay(w io.Writer, r *sync.DayReport) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Issue", "Subject", "Description", "Duration", "Activity", "Status"})
	table.SetAutoWrapText(false)

	for _, er := range r.Entries {
		source := er.Entry.Source()

		issue := " - "
		if ref := source.IssueID(); ref != 0 {
			issue = fmt.Sprintf("#%d", ref)
		}

		activity := ""
		if er.Entry.HasActivity() {
			activity = er.Entry.Activity().Name
		}

		table.Append([]string{
			issue,
			er.IssueSubject,
			source.Description,
			timeutil.FloatToTime(source.Hours()),
			activity,
			statusText(er),
		})
	}

	for _, le := range r.UnmatchedLedger {
		table.Append([]string{
			fmt.Sprintf("#%d", le.IssueID),
			"",
			le.Comments,
			timeutil.FloatToTime(le.Hours),
			le.ActivityName,
			"NOT IN TOGGL",
		})
	}

	table.SetFooter([]string{"", "", "", timeutil.FloatToTime(r.TotalHours), "", "total"})
	table.Render()
}

func statusText(er *sync.EntryReport) string {
	switch er.Class {
	case sync.ClassSynced:
		return "SYNCED"
	case sync.ClassNoIssueRef:
		return "no issue ID found"
	case sync.ClassUnknownIssue:
		return "issue not available"
	case sync.ClassNoActivity:
		return "no activity"
	case sync.ClassPending:
		switch er.Outcome {
		case sync.OutcomeCreated:
			return "created"
		case sync.OutcomeUpdated:
			return "updated"
		case sync.OutcomeFailed:
			return "FAILED: " + er.Err
		}
		if er.Entry.HasLedgerEntry() {
			return "changed: " + er.Entry.ChangeSummary()
		}
		return "unsynced"
	}
	return ""
}
