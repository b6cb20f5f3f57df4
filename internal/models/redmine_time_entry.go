package models

import (
	"regexp"
	"strings"
	"time"
)

// RedmineTimeEntry is a read-only snapshot of a booked time entry in
// Redmine, re-fetched for every day window.
type RedmineTimeEntry struct {
	ID           int64
	IssueID      int64
	SpentOn      time.Time // day granularity, no time of day
	Hours        float64
	Comments     string
	ActivityID   int64
	ActivityName string
}

// DateString returns the booking date as YYYY-MM-DD.
func (e RedmineTimeEntry) DateString() string {
	return e.SpentOn.Format("2006-01-02")
}

// Activity is a Redmine time-entry activity enumeration value.
type Activity struct {
	ID   int64
	Name string
}

// Issue is the subset of a Redmine issue needed for reporting and
// reference validation.
type Issue struct {
	ID      int64
	Subject string
}

var entityPattern = regexp.MustCompile(`^&[[:alnum:]]+;`)

// EscapeAmpersand replaces bare ampersands with "&amp;", leaving existing
// entities untouched. Redmine's XML layer rejects unescaped ampersands in
// time-entry comments.
func EscapeAmpersand(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !entityPattern.MatchString(s[i:]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
