// Package testutil provides an HTTP API client and envelope assertion helpers
// for handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// APIClient is an HTTP client for exercising the service in tests. Headers
// set on the client are sent with every request.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string
	t          *testing.T
}

// NewAPIClient creates a client pointed at a test server.
func NewAPIClient(t *testing.T, server *httptest.Server) *APIClient {
	return &APIClient{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Headers:    map[string]string{},
		t:          t,
	}
}

// WithHeader returns a copy of the client that also sends key: value.
func (c *APIClient) WithHeader(key, value string) *APIClient {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	headers[key] = value
	cp := *c
	cp.Headers = headers
	return &cp
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          *testing.T
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

// Data returns the envelope's data field as a map.
func (r *Response) Data() map[string]any {
	r.t.Helper()
	data, ok := r.JSONMap()["data"].(map[string]any)
	if !ok {
		r.t.Fatalf("envelope data is not an object\nbody: %s", string(r.Body))
	}
	return data
}

// DataList returns the envelope's data field as a list of objects.
func (r *Response) DataList() []map[string]any {
	r.t.Helper()
	var env struct {
		Data []map[string]any `json:"data"`
	}
	r.JSON(&env)
	return env.Data
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertSuccess asserts the envelope's success flag.
func (r *Response) AssertSuccess(expected bool) *Response {
	r.t.Helper()
	if got, _ := r.JSONMap()["success"].(bool); got != expected {
		r.t.Errorf("expected success=%v\nbody: %s", expected, string(r.Body))
	}
	return r
}

// AssertError asserts an error envelope with the given status and
// error_message.
func (r *Response) AssertError(status int, message string) *Response {
	r.t.Helper()
	r.AssertStatus(status).AssertSuccess(false)
	var env struct {
		ErrorMessage string `json:"error_message"`
	}
	r.JSON(&env)
	if env.ErrorMessage != message {
		r.t.Errorf("expected error_message %q, got %q", message, env.ErrorMessage)
	}
	return r
}

// Message returns the envelope's message field.
func (r *Response) Message() string {
	r.t.Helper()
	var env struct {
		Message string `json:"message"`
	}
	r.JSON(&env)
	return env.Message
}

// FieldError is one entry of an error envelope's errors list.
type FieldError struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

// FieldErrors returns the envelope's errors list.
func (r *Response) FieldErrors() []FieldError {
	r.t.Helper()
	var env struct {
		Errors []FieldError `json:"errors"`
	}
	r.JSON(&env)
	return env.Errors
}

// Pagination is the list envelope's pagination block.
type Pagination struct {
	TotalCount int `json:"total_count"`
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// Pagination returns the list envelope's pagination block.
func (r *Response) Pagination() Pagination {
	r.t.Helper()
	var env struct {
		Pagination *Pagination `json:"pagination"`
	}
	r.JSON(&env)
	if env.Pagination == nil {
		r.t.Fatalf("response has no pagination\nbody: %s", string(r.Body))
	}
	return *env.Pagination
}

// AssertBodyContains asserts the response body contains the given substring.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// Get performs a GET request.
func (c *APIClient) Get(path string) *Response {
	c.t.Helper()
	return c.Do(http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *APIClient) Post(path string, body any) *Response {
	c.t.Helper()
	return c.Do(http.MethodPost, path, body)
}

// Patch performs a PATCH request with a JSON body.
func (c *APIClient) Patch(path string, body any) *Response {
	c.t.Helper()
	return c.Do(http.MethodPatch, path, body)
}

// Delete performs a DELETE request.
func (c *APIClient) Delete(path string) *Response {
	c.t.Helper()
	return c.Do(http.MethodDelete, path, nil)
}

// Do performs a request. A string or []byte body is sent verbatim; anything
// else is JSON-encoded.
func (c *APIClient) Do(method, path string, body any) *Response {
	c.t.Helper()

	var bodyReader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		bodyReader = strings.NewReader(b)
	case []byte:
		bodyReader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	return c.doReq(req)
}

func (c *APIClient) doReq(req *http.Request) *Response {
	c.t.Helper()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
		t:          c.t,
	}
}
