// Package usermgmt is a client for the user management service. The demo
// service uses it to check that a user exists before assigning them to a demo.
package usermgmt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/wondertwin-ai/demo-management/internal/demo"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration // per attempt
	// Retries is the total number of attempts for retryable failures.
	Retries int
	// InitialInterval is the first backoff delay; it doubles per attempt.
	InitialInterval time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// Client talks to the user management service.
type Client struct {
	baseURL  string
	http     *http.Client
	retries  int
	interval time.Duration
	logger   *slog.Logger
}

// New creates a Client. Zero values fall back to 10s timeout, 3 attempts
// and a 1s initial backoff.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     cfg.HTTPClient,
		retries:  cfg.Retries,
		interval: cfg.InitialInterval,
		logger:   cfg.Logger.With("component", "usermgmt"),
	}
}

// statusError is a non-2xx response from the user management service.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("user management returned %d: %s", e.Code, e.Body)
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.interval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries-1)), ctx)
}

// do performs a GET with retries. Timeouts, transport errors and 5xx
// responses are retried; any other non-2xx response is returned at once.
func (c *Client) do(ctx context.Context, path string, headers map[string]string) (int, []byte, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var (
		status int
		body   []byte
	)
	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("requesting %s: %w", u, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		status, body = resp.StatusCode, data
		if resp.StatusCode >= 500 {
			return &statusError{Code: resp.StatusCode, Body: string(data)}
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("user management request failed, retrying",
			"attempt", attempt, "max_attempts", c.retries, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		c.logger.Error("user management request failed", "url", u, "attempts", attempt, "err", err)
		return status, body, fmt.Errorf("%w: %v", demo.ErrDirectoryUnavailable, err)
	}
	return status, body, nil
}

// UserExists reports whether the user management service knows userID.
func (c *Client) UserExists(ctx context.Context, userID string) (bool, error) {
	status, body, err := c.do(ctx, "/users/"+url.PathEscape(userID)+"/", map[string]string{"X-User-ID": userID})
	if err != nil {
		return false, err
	}
	switch {
	case status == http.StatusNotFound:
		return false, nil
	case status >= 200 && status < 300:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %v", demo.ErrDirectoryUnavailable, &statusError{Code: status, Body: string(body)})
	}
}
