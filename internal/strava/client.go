// Package strava fetches athlete activities from the Strava REST API.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/officecal/internal/activity"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://www.strava.com/api/v3"

// PerPage is the largest page the activities endpoint serves.
const PerPage = 200

// ErrUnauthorized is returned when the access token is rejected.
var ErrUnauthorized = errors.New("strava: access token rejected")

// Source returns the activities that started inside a time window.
type Source interface {
	Activities(ctx context.Context, accessToken string, after, before time.Time) ([]activity.Record, error)
}

// APIError is a non-success response other than 401.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava API error: %d %s", e.StatusCode, e.Body)
}

// Client talks to the athlete activities endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Activities makes a single request for up to PerPage activities with
// after < start < before, both as epoch seconds.
func (c *Client) Activities(ctx context.Context, accessToken string, after, before time.Time) ([]activity.Record, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	q := url.Values{}
	q.Set("after", strconv.FormatInt(after.Unix(), 10))
	q.Set("before", strconv.FormatInt(before.Unix(), 10))
	q.Set("per_page", strconv.Itoa(PerPage))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/athlete/activities?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("strava request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var records []activity.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return records, nil
}
