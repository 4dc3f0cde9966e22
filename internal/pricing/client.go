// Package pricing is the client for the remote lodging price predictor.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultEndpoint is used when no endpoint is configured.
	DefaultEndpoint = "https://ski-planner-backend.onrender.com/predict_price"

	// DefaultTimeout is generous because the backend cold-starts.
	DefaultTimeout     = 45 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = 300 * time.Millisecond

	maxErrorBody = 64 << 10
)

// Request is one lodging price lookup. Dates are YYYY-MM-DD.
type Request struct {
	Lat      float64
	Lon      float64
	Guests   int
	CheckIn  string
	CheckOut string
}

// Validate checks the request without touching the network.
func (r Request) Validate() error {
	if !isFinite(r.Lat) || !isFinite(r.Lon) {
		return fmt.Errorf("%w: invalid coordinates", ErrValidation)
	}
	if r.Guests <= 0 {
		return fmt.Errorf("%w: invalid guests", ErrValidation)
	}
	if strings.TrimSpace(r.CheckIn) == "" || strings.TrimSpace(r.CheckOut) == "" {
		return fmt.Errorf("%w: missing dates", ErrValidation)
	}
	return nil
}

// predictRequest is the backend's wire schema.
type predictRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Guests   int     `json:"guests"`
	CheckIn  string  `json:"check_in"`
	CheckOut string  `json:"check_out"`
}

type predictResponse struct {
	PredictedPrice json.RawMessage `json:"predicted_price"`
}

type errorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message json.RawMessage `json:"message"`
}

// Options tunes a Client. Zero values fall back to the defaults.
type Options struct {
	Endpoint    string
	APIKey      string // sent as X-API-Key when set
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Client posts lookups to the price predictor with retry and backoff.
// It does no caching; callers decide what to remember.
type Client struct {
	endpoint    string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	backoff     time.Duration
	jitter      func(time.Duration) time.Duration
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Client{
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		jitter:      randomJitter,
	}
}

// Endpoint returns the configured predictor URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// RequestPrice validates req, then asks the predictor for a price. Transient
// failures are retried; cancellation of ctx is returned at once as
// KindCanceled and never retried.
func (c *Client) RequestPrice(ctx context.Context, req Request) Result {
	if err := req.Validate(); err != nil {
		return Failed(err)
	}

	body, err := json.Marshal(predictRequest{
		Lat:      req.Lat,
		Lon:      req.Lon,
		Guests:   req.Guests,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
	})
	if err != nil {
		return Failed(fmt.Errorf("%w: marshaling request: %v", ErrValidation, err))
	}

	requestID := uuid.NewString()
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		price, err := c.post(ctx, requestID, body)
		if err == nil {
			return Resolved(price)
		}
		if ctx.Err() != nil {
			return Failed(fmt.Errorf("%w: %v", ErrCanceled, ctx.Err()))
		}
		if errors.Is(err, ErrNoPrice) {
			return Failed(err)
		}
		lastErr = err
		if attempt == c.maxAttempts {
			break
		}

		delay := c.backoff*time.Duration(attempt) + c.jitter(c.backoff)
		slog.Warn("price lookup failed, retrying",
			"request_id", requestID,
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"delay", delay.String(),
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return Failed(fmt.Errorf("%w: %v", ErrCanceled, err))
		}
	}

	return Failed(fmt.Errorf("%w after %d attempts: %v", ErrTransient, c.maxAttempts, lastErr))
}

// post performs one attempt and returns the predicted price.
func (c *Client) post(ctx context.Context, requestID string, body []byte) (float64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: creating request: %v", ErrTransient, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%w: sending request: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: HTTP %d: %s", ErrTransient, resp.StatusCode, errorDetail(resp))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %v", ErrNoPrice, err)
	}
	price, ok := parsePrice(out.PredictedPrice)
	if !ok {
		return 0, ErrNoPrice
	}
	return price, nil
}

// Ping sends a cheap GET to the predictor's host so a sleeping backend starts
// waking up. Any HTTP response means the host is reachable.
func (c *Client) Ping(ctx context.Context) (int, time.Duration, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return 0, 0, fmt.Errorf("parsing endpoint: %w", err)
	}
	u.Path = "/"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, time.Since(start), fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	return resp.StatusCode, time.Since(start), nil
}

// errorDetail pulls a human-readable reason out of an error response.
func errorDetail(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			if s := rawText(er.Detail); s != "" {
				return s
			}
			if s := rawText(er.Message); s != "" {
				return s
			}
		}
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "request failed"
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] == '"' || string(trimmed) == "null" {
		return 0, false
	}
	var price float64
	if err := json.Unmarshal(trimmed, &price); err != nil {
		return 0, false
	}
	return price, isFinite(price)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
