// Package client provides an HTTP client for the soilwatch API.
//
// Every endpoint of the server has a method here. Error responses are
// decoded into *Error, which wraps the sentinel that matches its status
// so callers can use errors.Is(err, errors.ErrNotFound) and friends.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/manager"
	"github.com/xtxerr/soilwatch/internal/mirror"
	"github.com/xtxerr/soilwatch/internal/stats"
	"github.com/xtxerr/soilwatch/internal/types"
)

// =============================================================================
// Configuration
// =============================================================================

// Config holds client configuration.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8000".
	BaseURL string

	// Timeout bounds one request including retries.
	Timeout time.Duration

	// RetryCount is the number of retries of a failed GET.
	RetryCount int
}

// DefaultConfig returns default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8000",
		Timeout:    30 * time.Second,
		RetryCount: 2,
	}
}

// =============================================================================
// Errors
// =============================================================================

// Error is an error response returned by the server.
type Error struct {
	StatusCode int      `json:"-"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Unwrap returns the sentinel matching the response status.
func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusConflict:
		return errors.ErrConflict
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return errors.ErrInvalidInput
	default:
		return errors.ErrInternal
	}
}

// =============================================================================
// Client
// =============================================================================

// Client talks to a soilwatch server. It is safe for concurrent use.
type Client struct {
	http *resty.Client
}

// New creates a new client.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(100 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: rc}
}

// BaseURL returns the server root the client talks to.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

// Window selects ranks [Offset, Offset+Limit) of each collector. Nil
// fields are left to the server's defaults.
type Window struct {
	Offset *int64
	Limit  *int64
}

// At returns a Window with both bounds set.
func At(offset, limit int64) Window {
	return Window{Offset: &offset, Limit: &limit}
}

func (w Window) apply(r *resty.Request) *resty.Request {
	if w.Offset != nil {
		r.SetQueryParam("offset", strconv.FormatInt(*w.Offset, 10))
	}
	if w.Limit != nil {
		r.SetQueryParam("limit", strconv.FormatInt(*w.Limit, 10))
	}
	return r
}

// do sends a request and decodes a successful body into out.
func (c *Client) do(ctx context.Context, method, path string, collectorID *int64, w Window, body, out any) error {
	apiErr := &Error{}
	r := w.apply(c.http.R().SetContext(ctx).SetError(apiErr))
	if collectorID != nil {
		r.SetPathParam("collector_id", strconv.FormatInt(*collectorID, 10))
	}
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		r.SetResult(out)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = resp.Status()
		}
		return apiErr
	}
	return nil
}

// =============================================================================
// Service
// =============================================================================

// Hello returns the server greeting.
func (c *Client) Hello(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, "/", nil, Window{}, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Health returns nil when the server and its store are up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, Window{}, nil, nil)
}

// Report is the body of GET /stats.
type Report struct {
	UptimeSeconds float64               `json:"uptime_seconds"`
	Total         *stats.Summary        `json:"total"`
	Routes        []stats.Summary       `json:"routes"`
	Kinds         []manager.KindSummary `json:"kinds"`
	Mirror        *mirror.Stats         `json:"mirror"`
}

// Stats returns request and ingestion statistics.
func (c *Client) Stats(ctx context.Context) (*Report, error) {
	out := &Report{}
	if err := c.do(ctx, http.MethodGet, "/stats", nil, Window{}, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// Collector Status
// =============================================================================

// ListStatus returns the status window of every collector.
func (c *Client) ListStatus(ctx context.Context, w Window) ([]types.Group[types.StatusEntry], error) {
	var out []types.Group[types.StatusEntry]
	err := c.do(ctx, http.MethodGet, "/collector/status", nil, w, nil, &out)
	return out, err
}

// GetStatus returns the status window of one collector.
func (c *Client) GetStatus(ctx context.Context, collectorID int64, w Window) (types.Group[types.StatusEntry], error) {
	var out types.Group[types.StatusEntry]
	err := c.do(ctx, http.MethodGet, "/collector/{collector_id}/status", &collectorID, w, nil, &out)
	return out, err
}

// CreateStatus stores a status entry and returns the stored row.
func (c *Client) CreateStatus(ctx context.Context, collectorID int64, e types.StatusEntry) (types.StatusEntry, error) {
	var out types.StatusEntry
	err := c.do(ctx, http.MethodPost, "/collector/{collector_id}/status", &collectorID, Window{}, e, &out)
	return out, err
}

// =============================================================================
// Collector Records
// =============================================================================

// ListRecords returns the raw reading window of every collector.
func (c *Client) ListRecords(ctx context.Context, w Window) ([]types.Group[types.RecordEntry], error) {
	var out []types.Group[types.RecordEntry]
	err := c.do(ctx, http.MethodGet, "/collector/record", nil, w, nil, &out)
	return out, err
}

// GetRecords returns the raw reading window of one collector.
func (c *Client) GetRecords(ctx context.Context, collectorID int64, w Window) (types.Group[types.RecordEntry], error) {
	var out types.Group[types.RecordEntry]
	err := c.do(ctx, http.MethodGet, "/collector/{collector_id}/record", &collectorID, w, nil, &out)
	return out, err
}

// CreateRecord stores a raw reading and returns the stored row.
func (c *Client) CreateRecord(ctx context.Context, collectorID int64, e types.RecordEntry) (types.RecordEntry, error) {
	var out types.RecordEntry
	err := c.do(ctx, http.MethodPost, "/collector/{collector_id}/record", &collectorID, Window{}, e, &out)
	return out, err
}

// =============================================================================
// Calculated Humidity
// =============================================================================

// ListHumidity returns the calculated humidity window of every collector.
func (c *Client) ListHumidity(ctx context.Context, w Window) ([]types.Group[types.HumidityEntry], error) {
	var out []types.Group[types.HumidityEntry]
	err := c.do(ctx, http.MethodGet, "/collector/calculated_humidity", nil, w, nil, &out)
	return out, err
}

// GetHumidity returns the calculated humidity window of one collector.
func (c *Client) GetHumidity(ctx context.Context, collectorID int64, w Window) (types.Group[types.HumidityEntry], error) {
	var out types.Group[types.HumidityEntry]
	err := c.do(ctx, http.MethodGet, "/collector/{collector_id}/calculated_humidity", &collectorID, w, nil, &out)
	return out, err
}

// CreateHumidity stores a calculated humidity and returns the stored row.
func (c *Client) CreateHumidity(ctx context.Context, collectorID int64, e types.HumidityEntry) (types.HumidityEntry, error) {
	var out types.HumidityEntry
	err := c.do(ctx, http.MethodPost, "/collector/{collector_id}/calculated_humidity", &collectorID, Window{}, e, &out)
	return out, err
}

// =============================================================================
// Receptor Status
// =============================================================================

// ListReceptorStatus returns the most recent receptor heartbeats.
func (c *Client) ListReceptorStatus(ctx context.Context, w Window) ([]types.GatewayEntry, error) {
	var out []types.GatewayEntry
	err := c.do(ctx, http.MethodGet, "/receptor/status", nil, w, nil, &out)
	return out, err
}

// CreateReceptorStatus stores a receptor heartbeat.
func (c *Client) CreateReceptorStatus(ctx context.Context, e types.GatewayEntry) (types.GatewayEntry, error) {
	var out types.GatewayEntry
	err := c.do(ctx, http.MethodPost, "/receptor/status", nil, Window{}, e, &out)
	return out, err
}
