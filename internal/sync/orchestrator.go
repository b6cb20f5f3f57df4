// Package sync drives the day-by-day reconciliation loop between Toggl
// and Redmine and issues the write-backs.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/recon"
	"toggl-redmine-sync/internal/redmine"
	"toggl-redmine-sync/internal/timeutil"

	"go.uber.org/zap"
)

// createdWith identifies this tool in Toggl's created_with field.
const createdWith = "toggl-redmine-sync"

// ErrNoWorkspace is returned when no Toggl workspace could be resolved
// before the loop starts.
var ErrNoWorkspace = errors.New("sync: no workspace resolved")

// SourceClient is the Toggl-side API surface the orchestrator needs.
type SourceClient interface {
	TimeEntriesInRange(ctx context.Context, from, to time.Time) ([]models.TogglTimeEntry, error)
	UpdateTimeEntry(ctx context.Context, workspaceID, id int64, body map[string]interface{}) error
}

// LedgerClient is the Redmine-side API surface the orchestrator needs.
type LedgerClient interface {
	TimeEntries(ctx context.Context, day time.Time, limit int) ([]models.RedmineTimeEntry, error)
	CreateTimeEntry(ctx context.Context, payload redmine.TimeEntryPayload) (*models.RedmineTimeEntry, error)
	UpdateTimeEntry(ctx context.Context, id int64, payload redmine.TimeEntryPayload) error
	Issue(ctx context.Context, id int64) (*models.Issue, error)
	Activities(ctx context.Context) ([]models.Activity, error)
}

// ConfirmFunc approves a day's write phase. It runs after classification
// with the day's report; returning false skips all writes for that day.
type ConfirmFunc func(*DayReport) bool

// ReportFunc observes a day's report after classification, before the
// confirmation step.
type ReportFunc func(*DayReport)

// Orchestrator runs the reconciliation over a date range, one calendar day
// at a time. Issue and activity lookups are cached for the lifetime of the
// orchestrator, i.e. one run.
type Orchestrator struct {
	source          SourceClient
	ledger          LedgerClient
	userID          int64
	workspaceID     int64
	defaultActivity string
	pageLimit       int
	logger          *zap.Logger

	confirm  ConfirmFunc
	onReport ReportFunc

	issues          map[int64]*models.Issue     // nil value = known missing
	activities      map[string]models.Activity  // lazily loaded, nil until then
	defaultResolved bool
	defaultAct      *models.Activity
}

// NewOrchestrator creates an orchestrator for one run. With no ConfirmFunc
// set, every day runs as a dry run: classification and reporting happen,
// writes do not.
func NewOrchestrator(
	source SourceClient,
	ledger LedgerClient,
	userID int64,
	workspaceID int64,
	defaultActivity string,
	pageLimit int,
	logger *zap.Logger,
) *Orchestrator {
	if pageLimit <= 0 {
		pageLimit = 100
	}
	return &Orchestrator{
		source:          source,
		ledger:          ledger,
		userID:          userID,
		workspaceID:     workspaceID,
		defaultActivity: defaultActivity,
		pageLimit:       pageLimit,
		logger:          logger,
		issues:          make(map[int64]*models.Issue),
	}
}

// OnConfirm sets the confirmation hook for the write phase.
func (o *Orchestrator) OnConfirm(fn ConfirmFunc) {
	o.confirm = fn
}

// OnDayReport sets an observer called with each day's report after
// classification and before confirmation.
func (o *Orchestrator) OnDayReport(fn ReportFunc) {
	o.onReport = fn
}

// Run processes every calendar day in [from, to] and returns the per-day
// reports. Individual entry failures are recorded in the reports; only
// fetch and configuration failures abort the run.
func (o *Orchestrator) Run(ctx context.Context, from, to time.Time) ([]*DayReport, error) {
	if o.workspaceID == 0 {
		return nil, ErrNoWorkspace
	}

	var reports []*DayReport

	dayFrom := timeutil.DayStart(from)
	for dayFrom.Before(to) {
		dayEnd := timeutil.DayEnd(dayFrom)
		if dayEnd.After(to) {
			dayEnd = to
		}

		o.logger.Info("Processing day window",
			zap.Time("from", dayFrom),
			zap.Time("to", dayEnd),
		)

		report, err := o.processDay(ctx, dayFrom, dayEnd)
		if err != nil {
			return reports, fmt.Errorf("day %s: %w", dayFrom.Format("2006-01-02"), err)
		}
		reports = append(reports, report)

		dayFrom = dayEnd.Add(time.Second)
	}

	return reports, nil
}

func (o *Orchestrator) processDay(ctx context.Context, dayFrom, dayEnd time.Time) (*DayReport, error) {
	report := &DayReport{Day: dayFrom, From: dayFrom, To: dayEnd}

	sourceEntries, err := o.source.TimeEntriesInRange(ctx, dayFrom, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source entries: %w", err)
	}

	set := recon.NewReconciliationSet()
	for _, entry := range sourceEntries {
		// Entries of other users or workspaces, and entries still being
		// tracked, never reach the matcher.
		if entry.UserID != o.userID || entry.WorkspaceID != o.workspaceID || entry.IsRunning() {
			continue
		}
		set.AddSource(entry)
	}

	ledgerEntries, err := o.ledger.TimeEntries(ctx, dayFrom, o.pageLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}
	set.Reconcile(ledgerEntries)

	if err := o.classify(ctx, set, report); err != nil {
		return nil, err
	}

	if o.onReport != nil {
		o.onReport(report)
	}

	pending := report.Pending()
	if len(pending) == 0 {
		o.logger.Info("All entries synced", zap.Time("day", dayFrom))
		return report, nil
	}

	if o.confirm == nil || !o.confirm(report) {
		o.logger.Info("Write phase skipped",
			zap.Time("day", dayFrom),
			zap.Int("pending", len(pending)),
		)
		return report, nil
	}
	report.Confirmed = true

	for _, er := range pending {
		o.syncEntry(ctx, er)
	}

	o.logger.Info("Day processed",
		zap.Time("day", dayFrom),
		zap.Int("written", report.WrittenCount()),
		zap.Int("failed", report.FailedCount()),
	)
	return report, nil
}

// classify fills the report with one EntryReport per SyncedEntry, in the
// priority order: no issue ref, already synced, unknown issue, pending
// (activity resolved or default configured), no activity.
func (o *Orchestrator) classify(ctx context.Context, set *recon.ReconciliationSet, report *DayReport) error {
	defaultAct, err := o.resolveDefaultActivity(ctx)
	if err != nil {
		return err
	}

	for _, entry := range set.Entries() {
		if activity, ok, err := o.activityFromTags(ctx, entry.Source().Tags); err != nil {
			return err
		} else if ok {
			entry.SetActivity(activity)
		}

		er := &EntryReport{Entry: entry}
		ref := entry.Source().IssueID()

		var issue *models.Issue
		if ref != 0 {
			if issue, err = o.issue(ctx, ref); err != nil {
				return err
			}
		}

		switch {
		case ref == 0:
			er.Class = ClassNoIssueRef
		case !entry.HasChanges():
			er.Class = ClassSynced
		case issue == nil:
			er.Class = ClassUnknownIssue
		case entry.HasActivity() || defaultAct != nil:
			if !entry.HasActivity() {
				entry.SetActivity(*defaultAct)
			}
			er.Class = ClassPending
		default:
			er.Class = ClassNoActivity
		}

		if issue != nil {
			er.IssueSubject = issue.Subject
		}

		report.Entries = append(report.Entries, er)
		report.TotalHours += entry.Source().Hours()
	}

	report.UnmatchedLedger = set.UnmatchedLedgerEntries()
	for _, le := range report.UnmatchedLedger {
		report.TotalHours += le.Hours
	}
	return nil
}

// syncEntry writes one pending entry to Redmine and, on success, marks the
// Toggl side with the synced tag. Failures are recorded on the report
// entry and never abort the day.
func (o *Orchestrator) syncEntry(ctx context.Context, er *EntryReport) {
	entry := er.Entry
	source := entry.Source()

	payload := redmine.TimeEntryPayload{
		IssueID:    source.IssueID(),
		SpentOn:    source.DateString(),
		Hours:      source.Hours(),
		ActivityID: entry.Activity().ID,
		Comments:   models.EscapeAmpersand(source.Description),
	}

	if entry.HasLedgerEntry() {
		if err := o.ledger.UpdateTimeEntry(ctx, entry.Ledger().ID, payload); err != nil {
			o.recordWriteFailure(er, err)
			return
		}
		er.Outcome = OutcomeUpdated
	} else {
		if _, err := o.ledger.CreateTimeEntry(ctx, payload); err != nil {
			o.recordWriteFailure(er, err)
			return
		}
		er.Outcome = OutcomeCreated
	}

	o.markSourceSynced(ctx, er)
}

func (o *Orchestrator) recordWriteFailure(er *EntryReport, err error) {
	er.Outcome = OutcomeFailed
	er.Err = err.Error()
	source := er.Entry.Source()
	o.logger.Error("Sync failed",
		zap.Int64("entry_id", source.ID),
		zap.Int64("issue_id", source.IssueID()),
		zap.String("description", source.Description),
		zap.Error(err),
	)
}

// markSourceSynced replaces the Toggl entry's tags with the activity name
// and the synced marker.
func (o *Orchestrator) markSourceSynced(ctx context.Context, er *EntryReport) {
	source := er.Entry.Source()

	body := make(map[string]interface{}, len(source.Raw)+2)
	for k, v := range source.Raw {
		body[k] = v
	}
	body["tags"] = []string{er.Entry.Activity().Name, models.SyncedTag}
	body["created_with"] = createdWith

	if err := o.source.UpdateTimeEntry(ctx, source.WorkspaceID, source.ID, body); err != nil {
		er.Err = err.Error()
		o.logger.Error("Failed to tag source entry as synced",
			zap.Int64("entry_id", source.ID),
			zap.Error(err),
		)
	}
}

// issue looks up an issue by ID with a per-run cache. A nil result with
// nil error means the issue does not exist.
func (o *Orchestrator) issue(ctx context.Context, id int64) (*models.Issue, error) {
	if issue, ok := o.issues[id]; ok {
		return issue, nil
	}

	issue, err := o.ledger.Issue(ctx, id)
	if err != nil {
		if errors.Is(err, redmine.ErrNotFound) {
			o.issues[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch issue %d: %w", id, err)
	}

	o.issues[id] = issue
	return issue, nil
}

// activityFromTags resolves the first tag that names a Redmine activity.
func (o *Orchestrator) activityFromTags(ctx context.Context, tags []string) (models.Activity, bool, error) {
	for _, tag := range tags {
		activity, ok, err := o.activityByName(ctx, tag)
		if err != nil {
			return models.Activity{}, false, err
		}
		if ok {
			return activity, true, nil
		}
	}
	return models.Activity{}, false, nil
}

func (o *Orchestrator) activityByName(ctx context.Context, name string) (models.Activity, bool, error) {
	if o.activities == nil {
		list, err := o.ledger.Activities(ctx)
		if err != nil {
			return models.Activity{}, false, fmt.Errorf("failed to fetch activities: %w", err)
		}
		o.activities = make(map[string]models.Activity, len(list))
		for _, a := range list {
			o.activities[a.Name] = a
		}
	}

	activity, ok := o.activities[name]
	return activity, ok, nil
}

func (o *Orchestrator) resolveDefaultActivity(ctx context.Context) (*models.Activity, error) {
	if o.defaultResolved {
		return o.defaultAct, nil
	}
	o.defaultResolved = true

	if o.defaultActivity == "" {
		return nil, nil
	}

	activity, ok, err := o.activityByName(ctx, o.defaultActivity)
	if err != nil {
		o.defaultResolved = false
		return nil, err
	}
	if !ok {
		o.logger.Warn("Configured default activity not found in Redmine",
			zap.String("name", o.defaultActivity),
		)
		return nil, nil
	}

	o.defaultAct = &activity
	return o.defaultAct, nil
}
