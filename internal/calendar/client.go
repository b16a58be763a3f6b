package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("calendar api not configured")

// Period is an absolute busy range reported by the external calendar.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is a booking mirrored onto an external calendar.
type Event struct {
	Summary       string    `json:"summary"`
	Description   string    `json:"description,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
}

// Client talks to the external calendar HTTP API. It is both the busy source
// for availability and the event sync target for bookings.
type Client struct {
	hc      *http.Client
	baseURL string
	token   string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (c *Client) FetchBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]Period, error) {
	query := map[string]string{
		"from": from.Format(time.RFC3339),
		"to":   to.Format(time.RFC3339),
	}
	status, body, err := c.do(ctx, http.MethodGet, "/calendars/"+url.PathEscape(calendarRef)+"/busy", query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch busy for %s failed (status=%d)", calendarRef, status)
	}

	var res struct {
		Busy []Period `json:"busy"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode busy response: %w", err)
	}
	return res.Busy, nil
}

// CreateEvent returns the external event id.
func (c *Client) CreateEvent(ctx context.Context, calendarRef string, event Event) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	status, body, err := c.do(ctx, http.MethodPost, "/calendars/"+url.PathEscape(calendarRef)+"/events", nil, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return "", fmt.Errorf("create event on %s failed (status=%d)", calendarRef, status)
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode event response: %w", err)
	}
	if res.ID == "" {
		return "", errors.New("calendar returned an empty event id")
	}
	return res.ID, nil
}

// DeleteEvent reports false when the event no longer exists.
func (c *Client) DeleteEvent(ctx context.Context, calendarRef, eventID string) (bool, error) {
	path := "/calendars/" + url.PathEscape(calendarRef) + "/events/" + url.PathEscape(eventID)
	status, _, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return false, nil
	case status >= 400:
		return false, fmt.Errorf("delete event %s failed (status=%d)", eventID, status)
	}
	return true, nil
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body []byte) (int, []byte, error) {
	if c == nil || c.baseURL == "" {
		return 0, nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if len(query) > 0 {
		q := req.URL.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, data, nil
}
