package journal_test

import (
	"path/filepath"
	"testing"
	"time"

	"toggl-redmine-sync/internal/journal"
	"toggl-redmine-sync/internal/models"
	"toggl-redmine-sync/internal/recon"
	"toggl-redmine-sync/internal/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path, zap.NewNop())
	require.NoError(t, err)
	defer j.Close()

	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	entry := recon.NewSyncedEntry(models.TogglTimeEntry{
		ID:              1,
		Description:     "#42 fix bug",
		DurationSeconds: 9000,
		Start:           day.Add(9 * time.Hour),
	})
	report := &sync.DayReport{
		Day:        day,
		From:       day,
		To:         day.Add(23 * time.Hour),
		Entries:    []*sync.EntryReport{{Entry: entry, Class: sync.ClassPending, Outcome: sync.OutcomeCreated}},
		TotalHours: 2.5,
		Confirmed:  true,
	}

	runID, err := j.RecordRun(day, day.Add(23*time.Hour), []*sync.DayReport{report})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	count, err := j.DayCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := journal.Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Close())

	// Reopening runs the migrations again without error.
	j, err = journal.Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Close())
}
