// Package toggl is a minimal Toggl Track API v9 client covering the calls
// the sync needs.
package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"toggl-redmine-sync/internal/models"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public Toggl Track API endpoint.
const DefaultBaseURL = "https://api.track.toggl.com/api/v9"

// Client talks to the Toggl Track API. API tokens are sent via basic auth
// with the fixed "api_token" password.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Toggl client. An empty baseURL selects the public
// API endpoint.
func NewClient(baseURL, apiToken string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*models.TogglUser, error) {
	var user models.TogglUser
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}
	return &user, nil
}

// Workspaces returns the workspaces visible to the authenticated user.
func (c *Client) Workspaces(ctx context.Context) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	if err := c.do(ctx, http.MethodGet, "/workspaces", nil, nil, &workspaces); err != nil {
		return nil, fmt.Errorf("failed to fetch workspaces: %w", err)
	}
	return workspaces, nil
}

// TimeEntriesInRange returns the user's time entries whose start falls in
// [from, to]. The raw payload of each entry is retained for write-back.
func (c *Client) TimeEntriesInRange(ctx context.Context, from, to time.Time) ([]models.TogglTimeEntry, error) {
	query := url.Values{}
	query.Set("start_date", from.Format(time.RFC3339))
	query.Set("end_date", to.Format(time.RFC3339))

	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/me/time_entries", query, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch time entries: %w", err)
	}

	entries := make([]models.TogglTimeEntry, 0, len(raw))
	for _, msg := range raw {
		var entry models.TogglTimeEntry
		if err := json.Unmarshal(msg, &entry); err != nil {
			c.logger.Error("Failed to decode time entry", zap.Error(err))
			continue
		}
		if err := json.Unmarshal(msg, &entry.Raw); err != nil {
			c.logger.Error("Failed to decode raw time entry", zap.Error(err), zap.Int64("id", entry.ID))
			continue
		}
		entries = append(entries, entry)
	}

	c.logger.Debug("Fetched time entries",
		zap.Int("count", len(entries)),
		zap.Time("from", from),
		zap.Time("to", to),
	)
	return entries, nil
}

// UpdateTimeEntry overwrites a time entry with the given body. The body is
// expected to be the entry's raw payload with the changed fields applied.
func (c *Client) UpdateTimeEntry(ctx context.Context, workspaceID, id int64, body map[string]interface{}) error {
	path := fmt.Sprintf("/workspaces/%d/time_entries/%d", workspaceID, id)
	if err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to update time entry %d: %w", id, err)
	}
	return nil
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
	req.SetBasicAuth(c.apiToken, "api_token")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Toggl request failed",
			zap.Error(err),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("duration", duration),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("toggl returned status %d: %s", resp.StatusCode, string(respBody))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthError{Message: errMsg, StatusCode: resp.StatusCode}
		case http.StatusTooManyRequests:
			c.logger.Warn("Toggl rate limited", zap.Int("status_code", resp.StatusCode))
			return &RateLimitError{Message: errMsg, StatusCode: resp.StatusCode}
		default:
			return &APIError{Message: errMsg, StatusCode: resp.StatusCode}
		}
	}

	if out != nil {
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

type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return e.Message
}
