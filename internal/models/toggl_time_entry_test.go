package models_test

import (
	"testing"
	"time"

	"toggl-redmine-sync/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIssueID(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        int64
	}{
		{"simple ref", "#42 fix bug", 42},
		{"ref mid-sentence", "worked on #1234, reviews", 1234},
		{"first ref wins", "#7 and #8", 7},
		{"no ref", "daily standup", 0},
		{"hash without number", "deploy #prod", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := models.TogglTimeEntry{Description: tt.description}
			assert.Equal(t, tt.want, entry.IssueID())
		})
	}
}

func TestHoursAndRunning(t *testing.T) {
	closed := models.TogglTimeEntry{DurationSeconds: 9000}
	assert.InDelta(t, 2.5, closed.Hours(), 0.0001)
	assert.False(t, closed.IsRunning())

	// Toggl encodes a running entry as a negative duration.
	running := models.TogglTimeEntry{DurationSeconds: -1757436000}
	assert.True(t, running.IsRunning())

	zero := models.TogglTimeEntry{DurationSeconds: 0}
	assert.True(t, zero.IsRunning())
}

func TestDateString(t *testing.T) {
	entry := models.TogglTimeEntry{
		Start: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	assert.Equal(t, "2026-03-14", entry.DateString())
}

func TestHasTag(t *testing.T) {
	entry := models.TogglTimeEntry{Tags: []string{"Development", models.SyncedTag}}
	assert.True(t, entry.HasTag(models.SyncedTag))
	assert.True(t, entry.HasTag("Development"))
	assert.False(t, entry.HasTag("Support"))
}

func TestStripLegacyMarker(t *testing.T) {
	assert.Equal(t, "fixed login ", models.StripLegacyMarker("fixed login #synced[123]"))
	assert.Equal(t, "fixed login", models.StripLegacyMarker("fixed login"))
	assert.Equal(t, "a  b", models.StripLegacyMarker("a #synced[] b"))
}

func TestEscapeAmpersand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fish & chips", "fish &amp; chips"},
		{"&", "&amp;"},
		{"a && b", "a &amp;&amp; b"},
		{"already &amp; escaped", "already &amp; escaped"},
		{"a &lt; b", "a &lt; b"},
		{"no ampersand", "no ampersand"},
		{"trailing &", "trailing &amp;"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, models.EscapeAmpersand(tt.in), "input %q", tt.in)
	}
}
