// Package endpointtest runs the fixed end-to-end scenario against a running
// Demo Management service and reports one result per step.
package endpointtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8801"
	DefaultTimeout = 30 * time.Second
)

// Request is one HTTP call made by the client. Path is appended to the base
// URL. A non-nil Body is JSON-encoded.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    any
}

// Response is a fully read HTTP response. Any status code is a response;
// only transport failures are errors.
type Response struct {
	StatusCode int
	Body       []byte
	Size       int
	Duration   time.Duration
	Header     http.Header
}

// TransportError reports that no HTTP response was received: connection
// refused, DNS failure, timeout or a cancelled context.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Client sends requests to one service. It reuses a single http.Client so
// connections are pooled across steps.
type Client struct {
	BaseURL string
	Timeout time.Duration
	http    *http.Client
}

// NewClient validates baseURL and returns a client bounded by timeout per
// request. A zero timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be an absolute http(s) URL", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		http:    &http.Client{},
	}, nil
}

// Do sends req and reads the whole response body. Non-2xx statuses are not
// errors. Failures to get a response are returned as *TransportError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target := c.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: target, Err: fmt.Errorf("reading response body: %w", err)}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       data,
		Size:       len(data),
		Duration:   time.Since(start),
		Header:     resp.Header,
	}, nil
}
