package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Logger is the logging interface used by the backend client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Client talks to the backend REST API.
//
// The backend owns all durable state; this client is a thin, typed wrapper
// over its endpoints with a per-request timeout. It performs no retries;
// callers decide whether a failed command is worth reissuing.
type Client struct {
	baseURL string
	http    *http.Client
	logger  Logger
}

// NewClient creates a backend client. baseURL is the API root without a
// trailing slash, e.g. "http://localhost:8000".
func NewClient(baseURL string, timeout time.Duration, logger Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Health fetches the backend health probe.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sites lists all sites.
func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var out []Site
	if err := c.get(ctx, "/sites", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Site fetches one site by id.
func (c *Client) Site(ctx context.Context, id string) (*Site, error) {
	var out Site
	if err := c.get(ctx, "/sites/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Coordinator fetches one coordinator by id.
func (c *Client) Coordinator(ctx context.Context, id string) (*Coordinator, error) {
	var out Coordinator
	if err := c.get(ctx, "/coordinators/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Node fetches one node by id.
func (c *Client) Node(ctx context.Context, id string) (*Node, error) {
	var out Node
	if err := c.get(ctx, "/nodes/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLight applies a light command to a node.
func (c *Client) SetLight(ctx context.Context, cmd SetLightCommand) error {
	return c.post(ctx, "/set-light", cmd, nil)
}

// SetColorProfile applies a color profile to a zone.
func (c *Client) SetColorProfile(ctx context.Context, cmd ColorProfileCommand) error {
	return c.post(ctx, "/color-profile", cmd, nil)
}

// ApprovePairing accepts or rejects a pairing request.
func (c *Client) ApprovePairing(ctx context.Context, approval PairingApproval) error {
	return c.post(ctx, "/pairing/approve", approval, nil)
}

// StartOTA starts a firmware update job and returns the created job.
func (c *Client) StartOTA(ctx context.Context, req StartOTARequest) (*OTAJob, error) {
	var out OTAJob
	if err := c.post(ctx, "/ota/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OTAStatus lists firmware update jobs.
func (c *Client) OTAStatus(ctx context.Context) ([]OTAJob, error) {
	var out []OTAJob
	if err := c.get(ctx, "/ota/status", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MmwaveHistory fetches recent mmWave frames, optionally filtered by site
// and limited in count (limit <= 0 means backend default).
func (c *Client) MmwaveHistory(ctx context.Context, siteID string, limit int) ([]MmwaveFrame, error) {
	query := url.Values{}
	if siteID != "" {
		query.Set("site_id", siteID)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	var out []MmwaveFrame
	if err := c.get(ctx, "/mmwave/history", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get issues a GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrRequestFailed, err)
	}

	return c.do(req, out)
}

// post issues a POST with a JSON body and decodes the response into out
// when out is non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encoding body: %w", ErrRequestFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes the request and maps the response status to sentinel errors.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s returned %d", ErrServerError, req.URL.Path, resp.StatusCode)
	case resp.StatusCode >= 400:
		detail := readErrorDetail(resp.Body)
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrBadRequest, detail)
		}
		return fmt.Errorf("%w: %s returned %d", ErrBadRequest, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrRequestFailed, err)
	}
	return nil
}

// readErrorDetail extracts an error message from a JSON error body, if any.
func readErrorDetail(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.Error, payload.Message, payload.Detail} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
