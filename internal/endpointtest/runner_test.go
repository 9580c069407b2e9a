package endpointtest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/demo-management/internal/admin"
	"github.com/wondertwin-ai/demo-management/internal/api"
	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/endpointtest"
	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
	"github.com/wondertwin-ai/demo-management/internal/store"
)

// startService runs the real router. Extra middleware can intercept
// requests before they reach the API.
func startService(t *testing.T, extra ...func(http.Handler) http.Handler) *httptest.Server {
	t.Helper()
	srv := server.New(server.Options{Middleware: extra}, logging.Discard())
	mem := store.NewMemory()
	svc := demo.NewService(mem, demo.WithLogger(logging.Discard()))
	api.NewHandler(svc, logging.Discard()).Routes(srv.Router)
	admin.NewHandler(mem, srv.Middleware(), nil).Routes(srv.Router)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

// intercept answers requests matching method and path with a canned response.
func intercept(method, path string, status int, body string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == method && r.URL.Path == path {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				w.Write([]byte(body))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newRunner(t *testing.T, cfg endpointtest.Config) *endpointtest.Runner {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	r, err := endpointtest.NewRunner(cfg)
	require.NoError(t, err)
	return r
}

func assertInvariants(t *testing.T, results []endpointtest.Result) {
	t.Helper()
	require.Len(t, results, 12, "one result per step")
	for i, name := range endpointtest.StepNames() {
		assert.Equal(t, name, results[i].TestName, "step order")
		assert.Equal(t, results[i].StatusCode == results[i].ExpectedStatus, results[i].Success,
			"success must equal status match for %s", name)
	}
}

func byName(results []endpointtest.Result) map[string]endpointtest.Result {
	m := make(map[string]endpointtest.Result, len(results))
	for _, r := range results {
		m[r.TestName] = r
	}
	return m
}

func TestRunAllStepsPass(t *testing.T) {
	ts := startService(t)
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL, DemoName: "Demo A"})

	results := r.Run(context.Background())
	assertInvariants(t, results)
	for _, res := range results {
		assert.True(t, res.Success, "%s: %s", res.TestName, res.ErrorMessage)
		assert.Empty(t, res.ErrorMessage, res.TestName)
		assert.Equal(t, endpointtest.KindPassed, res.Kind)
	}

	steps := byName(results)
	get := steps["Get Demo"]
	assert.True(t, strings.HasPrefix(get.Endpoint, "/api/v1/demo/read/"))
	assert.NotContains(t, get.Endpoint, "{demo_id}")
	assert.Contains(t, get.ResponsePreview, "Demo A")
	assert.Equal(t, "/api/v1/totally-unknown-path/", steps["Invalid Endpoint Test"].Endpoint)

	s := endpointtest.Summarize(results)
	assert.True(t, s.AllPassed())
	assert.Equal(t, 100.0, s.PassRate)
}

func TestRunWithReset(t *testing.T) {
	ts := startService(t)
	cfg := endpointtest.Config{BaseURL: ts.URL, Reset: true}

	for i := 0; i < 2; i++ {
		results := newRunner(t, cfg).Run(context.Background())
		assertInvariants(t, results)
		assert.True(t, endpointtest.Summarize(results).AllPassed(), "run %d", i)
	}
}

func TestRunMissingDependency(t *testing.T) {
	ts := startService(t, intercept(http.MethodPost, "/api/v1/demo/create/", http.StatusInternalServerError,
		`{"success":false,"data":{},"error_message":"boom","errors":[]}`))
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL})

	results := r.Run(context.Background())
	assertInvariants(t, results)
	steps := byName(results)

	create := steps["Create Demo"]
	assert.False(t, create.Success)
	assert.Equal(t, http.StatusInternalServerError, create.StatusCode)
	assert.Equal(t, "Expected 201, got 500", create.ErrorMessage)
	assert.Equal(t, endpointtest.KindMismatch, create.Kind)

	dependent := map[string]string{
		"Get Demo":              "/api/v1/demo/read/{demo_id}/",
		"Update Demo":           "/api/v1/demo/update/{demo_id}/",
		"Update Demo Status":    "/api/v1/demo/update/status/{demo_id}/",
		"Update Demo Is Active": "/api/v1/demo/update/is-active/{demo_id}/",
		"Assign Member to Demo": "/api/v1/demo/assign-member/",
		"Delete Demo":           "/api/v1/demo/delete/{demo_id}/",
	}
	for name, endpoint := range dependent {
		res := steps[name]
		assert.False(t, res.Success, name)
		assert.Zero(t, res.StatusCode, name)
		assert.Equal(t, endpointtest.KindMissingDependency, res.Kind, name)
		assert.Contains(t, res.ErrorMessage, "missing dependency", name)
		assert.Equal(t, endpoint, res.Endpoint, name)
	}

	members := steps["Get Demo Members"]
	assert.Equal(t, http.StatusNotFound, members.StatusCode, "falls back to the seed demo id")

	for _, name := range []string{"Health Check", "List Demos", "Invalid Endpoint Test", "Invalid Method Test"} {
		assert.True(t, steps[name].Success, name)
	}

	s := endpointtest.Summarize(results)
	assert.Equal(t, 6, s.ByKind[endpointtest.KindMissingDependency])
	assert.False(t, s.AllPassed())
}

func TestRunShapeCheckDoesNotChangeSuccess(t *testing.T) {
	ts := startService(t, intercept(http.MethodPost, "/api/v1/demo/create/", http.StatusCreated,
		`{"success":true,"data":{},"message":"Demo created successfully"}`))
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL})

	results := r.Run(context.Background())
	assertInvariants(t, results)

	create := byName(results)["Create Demo"]
	assert.True(t, create.Success)
	assert.Contains(t, create.ErrorMessage, "capturing demo id")
	assert.Equal(t, endpointtest.KindMissingDependency, byName(results)["Get Demo"].Kind)
}

func TestRunTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	r := newRunner(t, endpointtest.Config{BaseURL: url, Timeout: 2 * time.Second})
	results := r.Run(context.Background())
	assertInvariants(t, results)

	health := results[0]
	assert.False(t, health.Success)
	assert.Zero(t, health.StatusCode)
	assert.Equal(t, endpointtest.KindTransport, health.Kind)
	assert.Equal(t, "Connection failed", health.ResponsePreview)
	assert.NotEmpty(t, health.ErrorMessage)

	assert.Equal(t, endpointtest.KindMissingDependency, results[2].Kind, "Get Demo depends on Create Demo")
}

func TestRunCancelledContext(t *testing.T) {
	ts := startService(t)
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	results := r.Run(ctx)
	assert.Less(t, time.Since(start), 5*time.Second)
	assertInvariants(t, results)
	for _, res := range results {
		assert.False(t, res.Success, res.TestName)
	}
}

func TestRunTimeout(t *testing.T) {
	ts := startService(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/health/" && r.Method == http.MethodGet {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL, Timeout: 100 * time.Millisecond})

	results := r.Run(context.Background())
	assertInvariants(t, results)
	assert.Equal(t, endpointtest.KindTransport, results[0].Kind)
	assert.Contains(t, results[0].ErrorMessage, "timed out")
	assert.True(t, results[1].Success, "a timeout fails only its own step")
}

type emptyDirectory struct{}

func (emptyDirectory) UserExists(context.Context, string) (bool, error) { return false, nil }

func TestRunAssignStatusFollowsDirectory(t *testing.T) {
	srv := server.New(server.Options{}, logging.Discard())
	svc := demo.NewService(store.NewMemory(),
		demo.WithLogger(logging.Discard()),
		demo.WithUserDirectory(emptyDirectory{}))
	api.NewHandler(svc, logging.Discard()).Routes(srv.Router)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	assign := byName(newRunner(t, endpointtest.Config{BaseURL: ts.URL}).Run(context.Background()))["Assign Member to Demo"]
	assert.False(t, assign.Success)
	assert.Equal(t, "Expected 201, got 422", assign.ErrorMessage)

	results := newRunner(t, endpointtest.Config{BaseURL: ts.URL, AssignStatus: http.StatusUnprocessableEntity}).Run(context.Background())
	assertInvariants(t, results)
	assign = byName(results)["Assign Member to Demo"]
	assert.True(t, assign.Success, assign.ErrorMessage)
	assert.Equal(t, http.StatusUnprocessableEntity, assign.ExpectedStatus)
	assert.True(t, endpointtest.Summarize(results).AllPassed())
}

func TestRunTrimsDemoName(t *testing.T) {
	ts := startService(t)
	r := newRunner(t, endpointtest.Config{BaseURL: ts.URL, DemoName: "  Demo A  "})
	assert.Equal(t, "Demo A", r.Config().DemoName)

	get := byName(r.Run(context.Background()))["Get Demo"]
	assert.True(t, get.Success)
	assert.Empty(t, get.ErrorMessage)
}

func TestRunFoldsCarriageReturns(t *testing.T) {
	ts := startService(t, intercept(http.MethodGet, "/api/v1/health/", http.StatusOK, "{\"status\":\"ok\"}\r\n{\"extra\":1}\r"))
	health := byName(newRunner(t, endpointtest.Config{BaseURL: ts.URL}).Run(context.Background()))["Health Check"]
	assert.True(t, health.Success)
	assert.Equal(t, "{\"status\":\"ok\"}\n{\"extra\":1}\n", health.ResponsePreview)
	assert.NotContains(t, health.ResponsePreview, "\r")
}

func TestNewRunnerRejectsBadAssignStatus(t *testing.T) {
	_, err := endpointtest.NewRunner(endpointtest.Config{AssignStatus: 42})
	assert.Error(t, err)
}

func TestNewRunnerRejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"localhost:8801", "ftp://example.com", "http://"} {
		_, err := endpointtest.NewRunner(endpointtest.Config{BaseURL: u})
		assert.Error(t, err, u)
	}
}

func TestConfigDefaults(t *testing.T) {
	r := newRunner(t, endpointtest.Config{})
	cfg := r.Config()
	assert.Equal(t, endpointtest.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, endpointtest.DefaultUserID, cfg.UserID)
	assert.Equal(t, 10, cfg.PageLimit)
	assert.Equal(t, "-created_at", cfg.OrderBy)
	assert.Equal(t, http.StatusCreated, cfg.AssignStatus)
	assert.Regexp(t, `^Test Demo [0-9a-f]{8}$`, cfg.DemoName)
}
