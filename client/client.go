// Package client is a typed wrapper over the aged-cases REST API. It owns
// no state and no business rules: request/response mapping, the paginated
// envelope, and read retry policy only.
package client

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

	"github.com/chris44528/lux-aged-cases/internal/models"
	"github.com/chris44528/lux-aged-cases/internal/service"
)

// ErrNotFound is returned when the server reports an unknown id.
var ErrNotFound = errors.New("not found")

const (
	maxRetries     = 3
	baseRetryDelay = 1000 * time.Millisecond
	maxRetryDelay  = 30000 * time.Millisecond
)

type Client struct {
	BaseURL    string
	AdminKey   string
	User       string
	HTTPClient *http.Client

	// Sleep is swapped out in tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Page is the paginated envelope. Callers get one page per request; paging
// through further results is explicit via Filters.Offset.
type Page struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// Filters mirrors the list endpoints' query parameters. Zero values are
// omitted from the query string.
type Filters struct {
	Status        string
	Tier          int
	CaseType      string
	MinAgeDays    int
	MaxAgeDays    int
	HasResponded  *bool
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

func (f Filters) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", f.Status)
	set("case_type", f.CaseType)
	set("search", f.Search)
	if f.Tier != 0 {
		q.Set("tier", strconv.Itoa(f.Tier))
	}
	if f.MinAgeDays != 0 {
		q.Set("min_age_days", strconv.Itoa(f.MinAgeDays))
	}
	if f.MaxAgeDays != 0 {
		q.Set("max_age_days", strconv.Itoa(f.MaxAgeDays))
	}
	if f.HasResponded != nil {
		q.Set("has_responded", strconv.FormatBool(*f.HasResponded))
	}
	if f.CreatedAfter != nil {
		q.Set("created_after", f.CreatedAfter.Format(time.RFC3339))
	}
	if f.CreatedBefore != nil {
		q.Set("created_before", f.CreatedBefore.Format(time.RFC3339))
	}
	if f.Limit != 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset != 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// APIError carries the server's error envelope.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) GetAgedCases(ctx context.Context, f Filters) ([]models.AgedCase, int, error) {
	return c.caseList(ctx, "/api/aged-cases/", f)
}

// GetAgedCasesQueue is the queue view: resolved and abandoned cases are
// excluded server-side.
func (c *Client) GetAgedCasesQueue(ctx context.Context, f Filters) ([]models.AgedCase, int, error) {
	return c.caseList(ctx, "/api/aged-cases/queue/", f)
}

func (c *Client) caseList(ctx context.Context, path string, f Filters) ([]models.AgedCase, int, error) {
	var page Page
	if err := c.get(ctx, path, f.query(), &page); err != nil {
		return nil, 0, err
	}
	var cases []models.AgedCase
	if err := json.Unmarshal(page.Results, &cases); err != nil {
		return nil, 0, err
	}
	return cases, page.Count, nil
}

func (c *Client) GetAgedCase(ctx context.Context, id int) (models.AgedCase, error) {
	var out models.AgedCase
	err := c.get(ctx, fmt.Sprintf("/api/aged-cases/%d/", id), nil, &out)
	return out, err
}

func (c *Client) GetMetrics(ctx context.Context) (models.AgedCaseMetrics, error) {
	var out models.AgedCaseMetrics
	err := c.get(ctx, "/api/aged-cases/metrics/", nil, &out)
	return out, err
}

func (c *Client) GetCommunications(ctx context.Context, caseID int) ([]models.AgedCaseCommunication, error) {
	var out struct {
		Results []models.AgedCaseCommunication `json:"results"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/aged-cases/%d/communications/", caseID), nil, &out)
	return out.Results, err
}

func (c *Client) GetHistory(ctx context.Context, caseID int) ([]models.AgedCaseHistory, error) {
	var out struct {
		Results []models.AgedCaseHistory `json:"results"`
	}
	err := c.get(ctx, fmt.Sprintf("/api/aged-cases/%d/history/", caseID), nil, &out)
	return out.Results, err
}

// SendCommunication triggers server-side template selection, rendering
// and dispatch. An empty channel means "auto".
func (c *Client) SendCommunication(ctx context.Context, caseID int, channel string) (models.AgedCaseCommunication, error) {
	if channel == "" {
		channel = models.ChannelAuto
	}
	var out models.AgedCaseCommunication
	err := c.post(ctx, fmt.Sprintf("/api/aged-cases/%d/send_communication/", caseID), map[string]string{"channel": channel}, &out)
	return out, err
}

// ResolveCase is a terminal transition and deliberately not retried:
// calling it twice is not safe.
func (c *Client) ResolveCase(ctx context.Context, caseID int, notes string) error {
	return c.post(ctx, fmt.Sprintf("/api/aged-cases/%d/resolve/", caseID), map[string]string{"notes": notes}, nil)
}

func (c *Client) BulkAction(ctx context.Context, req service.BulkRequest) (service.BulkResult, error) {
	var out service.BulkResult
	err := c.post(ctx, "/api/aged-cases/bulk_action/", req, &out)
	return out, err
}

func (c *Client) TrackClick(ctx context.Context, trackingID, action string) error {
	return c.post(ctx, "/api/aged-cases/track-click/", map[string]string{"tracking_id": trackingID, "action": action}, nil)
}

func (c *Client) GetTemplates(ctx context.Context, tier int, channel string, activeOnly bool) ([]models.AgedCaseTemplate, error) {
	q := url.Values{}
	if tier != 0 {
		q.Set("tier", strconv.Itoa(tier))
	}
	if channel != "" {
		q.Set("channel", channel)
	}
	q.Set("active", strconv.FormatBool(activeOnly))

	var out struct {
		Results []models.AgedCaseTemplate `json:"results"`
	}
	err := c.get(ctx, "/api/aged-case-templates/", q, &out)
	return out.Results, err
}

func (c *Client) GetTemplate(ctx context.Context, id int) (models.AgedCaseTemplate, error) {
	var out models.AgedCaseTemplate
	err := c.get(ctx, fmt.Sprintf("/api/aged-case-templates/%d/", id), nil, &out)
	return out, err
}

func (c *Client) CreateTemplate(ctx context.Context, t models.AgedCaseTemplate) (models.AgedCaseTemplate, error) {
	var out models.AgedCaseTemplate
	err := c.post(ctx, "/api/aged-case-templates/", t, &out)
	return out, err
}

func (c *Client) UpdateTemplate(ctx context.Context, id int, fields map[string]any) (models.AgedCaseTemplate, error) {
	var out models.AgedCaseTemplate
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/aged-case-templates/%d/", id), nil, fields, &out, false)
	return out, err
}

// DeleteTemplate is a hard delete on the server; there is no undo.
func (c *Client) DeleteTemplate(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/aged-case-templates/%d/", id), nil, nil, nil, false)
}

func (c *Client) GetActiveSettings(ctx context.Context) (models.AgedCaseSettings, error) {
	var out models.AgedCaseSettings
	err := c.get(ctx, "/api/aged-case-settings/active/", nil, &out)
	return out, err
}

func (c *Client) GetAllSettings(ctx context.Context) ([]models.AgedCaseSettings, error) {
	var out struct {
		Results []models.AgedCaseSettings `json:"results"`
	}
	err := c.get(ctx, "/api/aged-case-settings/", nil, &out)
	return out.Results, err
}

// UpdateSettings activates a new settings version. The endpoint replaces
// whole versions, so the caller must pass the complete merged object or
// unset fields are lost.
func (c *Client) UpdateSettings(ctx context.Context, s models.AgedCaseSettings) (models.AgedCaseSettings, error) {
	var out models.AgedCaseSettings
	err := c.post(ctx, "/api/aged-case-settings/set_active/", s, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, q, nil, out, true)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out, false)
}

// do issues one request. Reads are retried on transport failure or 5xx
// with exponential backoff capped at 30s; mutations never are.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any, retry bool) error {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	attempts := 1
	if retry {
		attempts = maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.sleep(backoff(attempt - 1))
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.AdminKey != "" {
			req.Header.Set("X-Admin-Key", c.AdminKey)
		}
		if c.User != "" {
			req.Header.Set("X-User", c.User)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		err = decode(resp, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 500 && retry {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

func backoff(attempt int) time.Duration {
	d := baseRetryDelay << attempt
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

func (c *Client) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
