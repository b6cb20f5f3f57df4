// Package journal persists per-run and per-day sync outcomes to a local
// sqlite file. The journal is write-only history: the reconciliation core
// never reads it, so runs stay independent of each other.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"toggl-redmine-sync/internal/sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and migrates) the journal database at the given path.
func Open(storagePath string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger,
	}

	if err := j.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Journal opened", zap.String("path", storagePath))
	return j, nil
}

func (j *Journal) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			range_from TIMESTAMP NOT NULL,
			range_to TIMESTAMP NOT NULL,
			finished_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS day_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			day TEXT NOT NULL,
			entries INTEGER NOT NULL,
			synced INTEGER NOT NULL,
			written INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			no_issue_ref INTEGER NOT NULL,
			unknown_issue INTEGER NOT NULL,
			no_activity INTEGER NOT NULL,
			unmatched_ledger INTEGER NOT NULL,
			total_hours REAL NOT NULL,
			confirmed INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_day_reports_run ON day_reports(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_day_reports_day ON day_reports(day)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// RecordRun stores one run with its day reports and returns the generated
// run ID.
func (j *Journal) RecordRun(from, to time.Time, reports []*sync.DayReport) (string, error) {
	runID := uuid.NewString()

	tx, err := j.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, range_from, range_to, finished_at) VALUES (?, ?, ?, ?)`,
		runID, from, to, time.Now(),
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO day_reports (
			run_id, day, entries, synced, written, failed,
			no_issue_ref, unknown_issue, no_activity,
			unmatched_ledger, total_hours, confirmed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range reports {
		if _, err := stmt.Exec(
			runID,
			r.Day.Format("2006-01-02"),
			len(r.Entries),
			r.CountByClass(sync.ClassSynced),
			r.WrittenCount(),
			r.FailedCount(),
			r.CountByClass(sync.ClassNoIssueRef),
			r.CountByClass(sync.ClassUnknownIssue),
			r.CountByClass(sync.ClassNoActivity),
			len(r.UnmatchedLedger),
			r.TotalHours,
			r.Confirmed,
		); err != nil {
			return "", fmt.Errorf("failed to insert day report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	j.logger.Debug("Run recorded",
		zap.String("run_id", runID),
		zap.Int("days", len(reports)),
	)
	return runID, nil
}

// DayCount returns the number of recorded day reports, across all runs.
func (j *Journal) DayCount() (int, error) {
	var count int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM day_reports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count day reports: %w", err)
	}
	return count, nil
}

func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	j.logger.Info("Journal closed")
	return nil
}
