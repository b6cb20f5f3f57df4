package sync_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/redmine"
	"toggl-redmine-sync/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testUserID      = int64(7)
	testWorkspaceID = int64(11)
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

type fetchRange struct {
	from, to time.Time
}

type sourceUpdate struct {
	workspaceID int64
	id          int64
	body        map[string]interface{}
}

type fakeSource struct {
	entries   []models.TogglTimeEntry
	fetches   []fetchRange
	updates   []sourceUpdate
	updateErr error
}

func (f *fakeSource) TimeEntriesInRange(_ context.Context, from, to time.Time) ([]models.TogglTimeEntry, error) {
	f.fetches = append(f.fetches, fetchRange{from, to})
	return f.entries, nil
}

func (f *fakeSource) UpdateTimeEntry(_ context.Context, workspaceID, id int64, body map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, sourceUpdate{workspaceID, id, body})
	return nil
}

type fakeLedger struct {
	entries     []models.RedmineTimeEntry
	issues      map[int64]models.Issue
	activities  []models.Activity
	created     []redmine.TimeEntryPayload
	updated     map[int64]redmine.TimeEntryPayload
	failIssueID int64 // create/update calls for this issue fail

	issueCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		issues: map[int64]models.Issue{
			42: {ID: 42, Subject: "Fix the login bug"},
			50: {ID: 50, Subject: "Code reviews"},
		},
		activities: []models.Activity{
			{ID: 9, Name: "Development"},
			{ID: 14, Name: "Support"},
		},
		updated: make(map[int64]redmine.TimeEntryPayload),
	}
}

func (f *fakeLedger) TimeEntries(context.Context, time.Time, int) ([]models.RedmineTimeEntry, error) {
	return f.entries, nil
}

func (f *fakeLedger) CreateTimeEntry(_ context.Context, payload redmine.TimeEntryPayload) (*models.RedmineTimeEntry, error) {
	if payload.IssueID == f.failIssueID {
		return nil, errors.New("422 project archived")
	}
	f.created = append(f.created, payload)
	return &models.RedmineTimeEntry{ID: int64(1000 + len(f.created))}, nil
}

func (f *fakeLedger) UpdateTimeEntry(_ context.Context, id int64, payload redmine.TimeEntryPayload) error {
	if payload.IssueID == f.failIssueID {
		return errors.New("422 project archived")
	}
	f.updated[id] = payload
	return nil
}

func (f *fakeLedger) Issue(_ context.Context, id int64) (*models.Issue, error) {
	f.issueCalls++
	issue, ok := f.issues[id]
	if !ok {
		return nil, redmine.ErrNotFound
	}
	return &issue, nil
}

func (f *fakeLedger) Activities(context.Context) ([]models.Activity, error) {
	return f.activities, nil
}

func newOrchestrator(source *fakeSource, ledger *fakeLedger, defaultActivity string) *sync.Orchestrator {
	return sync.NewOrchestrator(source, ledger, testUserID, testWorkspaceID, defaultActivity, 100, zap.NewNop())
}

func togglEntry(id int64, description string, hours float64, tags ...string) models.TogglTimeEntry {
	return models.TogglTimeEntry{
		ID:              id,
		UserID:          testUserID,
		WorkspaceID:     testWorkspaceID,
		Start:           day.Add(9 * time.Hour),
		DurationSeconds: int64(hours * 3600),
		Description:     description,
		Tags:            tags,
		Raw: map[string]interface{}{
			"id":          id,
			"description": description,
		},
	}
}

func autoConfirm(o *sync.Orchestrator) {
	o.OnConfirm(func(*sync.DayReport) bool { return true })
}

func runOneDay(t *testing.T, o *sync.Orchestrator) *sync.DayReport {
	t.Helper()
	reports, err := o.Run(context.Background(), day, day.Add(23*time.Hour))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	return reports[0]
}

func TestRunRequiresWorkspace(t *testing.T) {
	o := sync.NewOrchestrator(&fakeSource{}, newFakeLedger(), testUserID, 0, "", 100, zap.NewNop())
	_, err := o.Run(context.Background(), day, day.Add(time.Hour))
	assert.ErrorIs(t, err, sync.ErrNoWorkspace)
}

func TestNoActivityAndNoDefaultBlocksEntry(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 2.5),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassNoActivity, report.Entries[0].Class)
	assert.Empty(t, ledger.created)
	assert.Empty(t, source.updates)
}

func TestDefaultActivityCreatesEntry(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 2.5),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassPending, report.Entries[0].Class)
	assert.Equal(t, sync.OutcomeCreated, report.Entries[0].Outcome)
	assert.Equal(t, "Fix the login bug", report.Entries[0].IssueSubject)

	require.Len(t, ledger.created, 1)
	payload := ledger.created[0]
	assert.Equal(t, int64(42), payload.IssueID)
	assert.Equal(t, "2026-03-14", payload.SpentOn)
	assert.InDelta(t, 2.5, payload.Hours, 0.0001)
	assert.Equal(t, int64(9), payload.ActivityID)
	assert.Equal(t, "#42 fix bug", payload.Comments)

	// The Toggl entry is re-tagged with the activity and the sync marker.
	require.Len(t, source.updates, 1)
	update := source.updates[0]
	assert.Equal(t, testWorkspaceID, update.workspaceID)
	assert.Equal(t, int64(1), update.id)
	assert.Equal(t, []string{"Development", models.SyncedTag}, update.body["tags"])
	assert.Equal(t, "#42 fix bug", update.body["description"])
}

func TestAlreadySyncedEntryIsSkipped(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 3, "Development"),
	}}
	ledger := newFakeLedger()
	ledger.entries = []models.RedmineTimeEntry{{
		ID:           100,
		IssueID:      42,
		SpentOn:      day,
		Hours:        3,
		Comments:     "#42 fix bug",
		ActivityID:   9,
		ActivityName: "Development",
	}}
	o := newOrchestrator(source, ledger, "")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassSynced, report.Entries[0].Class)
	assert.True(t, report.Entries[0].Entry.HasLedgerEntry())
	assert.Empty(t, ledger.created)
	assert.Empty(t, ledger.updated)
	assert.Empty(t, source.updates)
}

func TestChangedEntryIsUpdated(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 3, "Development"),
	}}
	ledger := newFakeLedger()
	ledger.entries = []models.RedmineTimeEntry{{
		ID:           100,
		IssueID:      42,
		SpentOn:      day,
		Hours:        2, // differs from the tracked 3h
		Comments:     "#42 fix bug",
		ActivityID:   9,
		ActivityName: "Development",
	}}
	o := newOrchestrator(source, ledger, "")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassPending, report.Entries[0].Class)
	assert.Equal(t, sync.OutcomeUpdated, report.Entries[0].Outcome)

	require.Contains(t, ledger.updated, int64(100))
	assert.InDelta(t, 3.0, ledger.updated[100].Hours, 0.0001)
	assert.Empty(t, ledger.created)
}

func TestFilteredEntriesNeverReachTheSet(t *testing.T) {
	running := togglEntry(1, "#42 still going", 0)
	running.DurationSeconds = -1757436000
	otherUser := togglEntry(2, "#42 not mine", 1)
	otherUser.UserID = 99
	otherWorkspace := togglEntry(3, "#42 elsewhere", 1)
	otherWorkspace.WorkspaceID = 99

	source := &fakeSource{entries: []models.TogglTimeEntry{running, otherUser, otherWorkspace}}
	o := newOrchestrator(source, newFakeLedger(), "Development")
	autoConfirm(o)

	report := runOneDay(t, o)
	assert.Empty(t, report.Entries)
}

func TestUnknownIssueIsNeverWritten(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#9999 mystery work", 1),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassUnknownIssue, report.Entries[0].Class)
	assert.Empty(t, ledger.created)
}

func TestNoIssueRefIsNeverWritten(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "daily standup", 0.25),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	autoConfirm(o)

	report := runOneDay(t, o)

	require.Len(t, report.Entries, 1)
	assert.Equal(t, sync.ClassNoIssueRef, report.Entries[0].Class)
	assert.Empty(t, ledger.created)
}

func TestUnmatchedLedgerEntriesAreReported(t *testing.T) {
	source := &fakeSource{}
	ledger := newFakeLedger()
	ledger.entries = []models.RedmineTimeEntry{{
		ID:      100,
		IssueID: 99,
		SpentOn: day,
		Hours:   1.5,
	}}
	o := newOrchestrator(source, ledger, "")

	report := runOneDay(t, o)

	require.Len(t, report.UnmatchedLedger, 1)
	assert.Equal(t, int64(100), report.UnmatchedLedger[0].ID)
	assert.InDelta(t, 1.5, report.TotalHours, 0.0001)
}

func TestWriteFailureDoesNotAbortTheDay(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 2),
		togglEntry(2, "#50 reviews", 1),
	}}
	ledger := newFakeLedger()
	ledger.failIssueID = 42
	o := newOrchestrator(source, ledger, "Development")
	autoConfirm(o)

	report := runOneDay(t, o)

	assert.Equal(t, 1, report.FailedCount())
	assert.Equal(t, 1, report.WrittenCount())
	require.Len(t, ledger.created, 1)
	assert.Equal(t, int64(50), ledger.created[0].IssueID)

	for _, er := range report.Entries {
		if er.Outcome == sync.OutcomeFailed {
			assert.Contains(t, er.Err, "project archived")
		}
	}
}

func TestNoConfirmMeansDryRun(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 2.5),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	// No ConfirmFunc set: classification happens, writes do not.

	report := runOneDay(t, o)

	assert.False(t, report.Confirmed)
	assert.Equal(t, sync.ClassPending, report.Entries[0].Class)
	assert.Equal(t, sync.OutcomeNone, report.Entries[0].Outcome)
	assert.Empty(t, ledger.created)
	assert.Empty(t, source.updates)
}

func TestDecliningConfirmSkipsWrites(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 2.5),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	o.OnConfirm(func(*sync.DayReport) bool { return false })

	report := runOneDay(t, o)

	assert.False(t, report.Confirmed)
	assert.Empty(t, ledger.created)
}

func TestActivityResolvedFromTags(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 on-call", 1, "urgent", "Support"),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")
	autoConfirm(o)

	runOneDay(t, o)

	require.Len(t, ledger.created, 1)
	// The tag-resolved activity wins over the default.
	assert.Equal(t, int64(14), ledger.created[0].ActivityID)
}

func TestIssueLookupsAreCached(t *testing.T) {
	source := &fakeSource{entries: []models.TogglTimeEntry{
		togglEntry(1, "#42 fix bug", 1),
		togglEntry(2, "#42 more fixing", 2),
		togglEntry(3, "#42 even more", 0.5),
	}}
	ledger := newFakeLedger()
	o := newOrchestrator(source, ledger, "Development")

	runOneDay(t, o)
	assert.Equal(t, 1, ledger.issueCalls)
}

func TestRunWalksDayWindows(t *testing.T) {
	source := &fakeSource{}
	o := newOrchestrator(source, newFakeLedger(), "")

	to := day.AddDate(0, 0, 2).Add(12 * time.Hour)
	reports, err := o.Run(context.Background(), day.Add(10*time.Hour), to)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	require.Len(t, source.fetches, 3)

	// First window starts at the day's beginning even though the range
	// starts mid-day; the last window is clamped to the range end.
	assert.Equal(t, day, source.fetches[0].from)
	assert.Equal(t, day.Add(23*time.Hour+59*time.Minute+59*time.Second), source.fetches[0].to)
	assert.Equal(t, day.AddDate(0, 0, 1), source.fetches[1].from)
	assert.Equal(t, to, source.fetches[2].to)
}
