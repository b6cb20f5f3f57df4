// Package redmine is a minimal Redmine REST client covering time entries,
// issues and activity enumerations.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"toggl-redmine-sync/internal/models"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("redmine: not found")

// TimeEntryPayload is the write shape for creating or updating a Redmine
// time entry.
type TimeEntryPayload struct {
	IssueID    int64   `json:"issue_id"`
	SpentOn    string  `json:"spent_on"`
	Hours      float64 `json:"hours"`
	ActivityID int64   `json:"activity_id"`
	Comments   string  `json:"comments"`
}

// Client talks to a Redmine installation, authenticating with a static
// API key header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Redmine client for the given installation URL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// wire types

type timeEntryWire struct {
	ID       int64   `json:"id"`
	Hours    float64 `json:"hours"`
	SpentOn  string  `json:"spent_on"`
	Comments string  `json:"comments"`
	Issue    struct {
		ID int64 `json:"id"`
	} `json:"issue"`
	Activity struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"activity"`
}

func (w timeEntryWire) toModel() (models.RedmineTimeEntry, error) {
	spentOn, err := time.Parse("2006-01-02", w.SpentOn)
	if err != nil {
		return models.RedmineTimeEntry{}, fmt.Errorf("bad spent_on %q: %w", w.SpentOn, err)
	}
	return models.RedmineTimeEntry{
		ID:           w.ID,
		IssueID:      w.Issue.ID,
		SpentOn:      spentOn,
		Hours:        w.Hours,
		Comments:     w.Comments,
		ActivityID:   w.Activity.ID,
		ActivityName: w.Activity.Name,
	}, nil
}

// TimeEntries returns the authenticated user's time entries booked on the
// given calendar day.
func (c *Client) TimeEntries(ctx context.Context, day time.Time, limit int) ([]models.RedmineTimeEntry, error) {
	query := url.Values{}
	query.Set("user_id", "me")
	query.Set("spent_on", day.Format("2006-01-02"))
	query.Set("limit", strconv.Itoa(limit))

	var resp struct {
		TimeEntries []timeEntryWire `json:"time_entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/time_entries.json", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}

	entries := make([]models.RedmineTimeEntry, 0, len(resp.TimeEntries))
	for _, wire := range resp.TimeEntries {
		entry, err := wire.toModel()
		if err != nil {
			c.logger.Error("Failed to decode time entry", zap.Error(err), zap.Int64("id", wire.ID))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreateTimeEntry books a new time entry and returns the created record.
func (c *Client) CreateTimeEntry(ctx context.Context, payload TimeEntryPayload) (*models.RedmineTimeEntry, error) {
	body := map[string]interface{}{"time_entry": payload}

	var resp struct {
		TimeEntry timeEntryWire `json:"time_entry"`
	}
	if err := c.do(ctx, http.MethodPost, "/time_entries.json", nil, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create time entry: %w", err)
	}
	if resp.TimeEntry.ID == 0 {
		return nil, fmt.Errorf("create returned no time entry id")
	}

	entry, err := resp.TimeEntry.toModel()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTimeEntry overwrites an existing time entry.
func (c *Client) UpdateTimeEntry(ctx context.Context, id int64, payload TimeEntryPayload) error {
	body := map[string]interface{}{"time_entry": payload}
	path := fmt.Sprintf("/time_entries/%d.json", id)
	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to update time entry %d: %w", id, err)
	}
	return nil
}

// Issue fetches a single issue. Returns ErrNotFound for unknown IDs.
func (c *Client) Issue(ctx context.Context, id int64) (*models.Issue, error) {
	var resp struct {
		Issue struct {
			ID      int64  `json:"id"`
			Subject string `json:"subject"`
		} `json:"issue"`
	}
	path := fmt.Sprintf("/issues/%d.json", id)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &models.Issue{ID: resp.Issue.ID, Subject: resp.Issue.Subject}, nil
}

// Activities returns the time-entry activity enumeration.
func (c *Client) Activities(ctx context.Context) ([]models.Activity, error) {
	var resp struct {
		TimeEntryActivities []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"time_entry_activities"`
	}
	if err := c.do(ctx, http.MethodGet, "/enumerations/time_entry_activities.json", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}

	activities := make([]models.Activity, 0, len(resp.TimeEntryActivities))
	for _, a := range resp.TimeEntryActivities {
		activities = append(activities, models.Activity{ID: a.ID, Name: a.Name})
	}
	return activities, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Redmine-API-Key", c.apiKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Redmine request failed",
			zap.Error(err),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", duration),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &AuthError{
			Message:    fmt.Sprintf("redmine returned status %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{
			Message:    fmt.Sprintf("redmine rejected the entry: %s", string(respBody)),
			StatusCode: resp.StatusCode,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &APIError{
			Message:    fmt.Sprintf("redmine returned status %d: %s", resp.StatusCode, string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// Error types

type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

// ValidationError is returned when Redmine rejects a create or update,
// e.g. because the project is archived.
type ValidationError struct {
	Message    string
	StatusCode int
}

func (e *ValidationError) Error() string {
	return e.Message
}

type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}
