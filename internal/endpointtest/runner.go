package endpointtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Defaults for Config.
const (
	DefaultAPIPrefix    = "/api/v1"
	DefaultUserID       = "550e8400-e29b-41d4-a716-446655440000"
	DefaultDemoIDSeed   = "550e8400-e29b-41d4-a716-446655440001"
	DefaultMemberUserID = "550e8400-e29b-41d4-a716-446655440002"
	DefaultMemberRole   = "member"
	DefaultAssignStatus = 201
	DefaultPageLimit    = 10
	DefaultOrderBy      = "-created_at"
)

const (
	previewLimit       = 200
	connectionFailed   = "Connection failed"
	demoIDPlaceholder  = "{demo_id}"
	missingDemoIDError = "missing dependency: no demo id was captured by Create Demo"
)

// Kind classifies a result.
type Kind string

const (
	KindPassed            Kind = "passed"
	KindMismatch          Kind = "assertion_mismatch"
	KindTransport         Kind = "transport_error"
	KindMissingDependency Kind = "missing_dependency"
)

// Result is the outcome of one scenario step. Success is always
// StatusCode == ExpectedStatus; StatusCode is 0 when no response was received.
type Result struct {
	TestName        string
	Method          string
	Endpoint        string
	StatusCode      int
	ExpectedStatus  int
	Success         bool
	Duration        time.Duration
	ResponseSize    int
	Timestamp       time.Time
	ErrorMessage    string
	ResponsePreview string
	Kind            Kind
}

// appendError adds msg to the result's error message without touching Success.
func (r *Result) appendError(msg string) {
	msg = normalizeNewlines(msg)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
		return
	}
	r.ErrorMessage += "; " + msg
}

// classify derives the kind of a result from its report columns.
func classify(r Result) Kind {
	switch {
	case r.Success:
		return KindPassed
	case r.StatusCode != 0:
		return KindMismatch
	case strings.HasPrefix(r.ErrorMessage, "missing dependency"):
		return KindMissingDependency
	default:
		return KindTransport
	}
}

// Config configures a run. Zero fields take the package defaults.
type Config struct {
	BaseURL      string
	APIPrefix    string
	Timeout      time.Duration
	UserID       string
	DemoIDSeed   string
	MemberUserID string
	MemberRole   string
	// AssignStatus is the status Assign Member to Demo expects. Set it to
	// 422 when the service checks a user directory that does not know
	// MemberUserID.
	AssignStatus int
	PageOffset   int
	PageLimit    int
	OrderBy      string
	DemoName     string
	// Reset calls POST /admin/reset before the first step.
	Reset  bool
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	if c.DemoIDSeed == "" {
		c.DemoIDSeed = DefaultDemoIDSeed
	}
	if c.MemberUserID == "" {
		c.MemberUserID = DefaultMemberUserID
	}
	if c.MemberRole == "" {
		c.MemberRole = DefaultMemberRole
	}
	if c.AssignStatus == 0 {
		c.AssignStatus = DefaultAssignStatus
	}
	if c.PageLimit <= 0 {
		c.PageLimit = DefaultPageLimit
	}
	if c.OrderBy == "" {
		c.OrderBy = DefaultOrderBy
	}
	c.DemoName = strings.TrimSpace(c.DemoName)
	if c.DemoName == "" {
		c.DemoName = "Test Demo " + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// runState carries values captured by earlier steps into later ones.
type runState struct {
	demoID string
}

// step is one fixed scenario entry. path may contain {demo_id}; when needsID
// is set and no id was captured, the step is not sent.
type step struct {
	name       string
	method     string
	path       string
	expected   int
	expectFrom func(cfg Config) int // overrides expected when set
	needsID    bool
	build      func(cfg Config, st *runState) Request
	check      func(cfg Config, st *runState, resp *Response) error
}

// Runner executes the scenario sequentially.
type Runner struct {
	cfg    Config
	client *Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner validates cfg and builds the HTTP client. An error here is a
// fatal setup failure.
func NewRunner(cfg Config) (*Runner, error) {
	cfg.applyDefaults()
	if cfg.AssignStatus < 100 || cfg.AssignStatus > 599 {
		return nil, fmt.Errorf("invalid assign status %d", cfg.AssignStatus)
	}
	client, err := NewClient(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:    cfg,
		client: client,
		logger: cfg.Logger,
		now:    time.Now,
	}, nil
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// StepNames lists the scenario steps in execution order.
func StepNames() []string {
	var names []string
	for _, s := range scenario() {
		names = append(names, s.name)
	}
	return names
}

// Run executes every step in order and returns one result per step. It never
// stops early; after ctx is cancelled the remaining steps record transport
// errors.
func (r *Runner) Run(ctx context.Context) []Result {
	if r.cfg.Reset {
		r.reset(ctx)
	}

	st := &runState{}
	steps := scenario()
	results := make([]Result, 0, len(steps))
	for _, s := range steps {
		res := r.runStep(ctx, s, st)
		if res.Success {
			r.logger.Debug("step passed", "step", res.TestName, "status", res.StatusCode, "duration", res.Duration)
		} else {
			r.logger.Warn("step failed", "step", res.TestName, "status", res.StatusCode,
				"expected", res.ExpectedStatus, "kind", res.Kind, "error", res.ErrorMessage)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) reset(ctx context.Context) {
	resp, err := r.client.Do(ctx, Request{Method: http.MethodPost, Path: "/admin/reset"})
	if err != nil {
		r.logger.Warn("admin reset failed", "error", err)
		return
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("admin reset failed", "status", resp.StatusCode)
	}
}

// runStep executes one step and converts every failure into a result.
func (r *Runner) runStep(ctx context.Context, s step, st *runState) Result {
	if s.expectFrom != nil {
		s.expected = s.expectFrom(r.cfg)
	}
	res := Result{
		TestName:       s.name,
		Method:         s.method,
		Endpoint:       r.cfg.APIPrefix + s.path,
		ExpectedStatus: s.expected,
		Timestamp:      r.now(),
	}

	if s.needsID && st.demoID == "" {
		res.ErrorMessage = missingDemoIDError
		res.Kind = KindMissingDependency
		return res
	}

	req := Request{Method: s.method}
	if s.build != nil {
		req = s.build(r.cfg, st)
		req.Method = s.method
	}
	req.Path = r.cfg.APIPrefix + strings.ReplaceAll(s.path, demoIDPlaceholder, st.demoID)
	res.Endpoint = req.Path

	start := time.Now()
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		res.Duration = time.Since(start)
		res.ErrorMessage = normalizeNewlines(err.Error())
		res.ResponsePreview = connectionFailed
		res.Kind = KindTransport
		var te *TransportError
		if errors.As(err, &te) && te.Timeout() {
			res.ErrorMessage = normalizeNewlines(fmt.Sprintf("request timed out after %s: %v", r.cfg.Timeout, te.Err))
		}
		return res
	}

	res.StatusCode = resp.StatusCode
	res.Duration = resp.Duration
	res.ResponseSize = resp.Size
	res.ResponsePreview = preview(resp.Body)
	res.Success = resp.StatusCode == s.expected
	if !res.Success {
		res.ErrorMessage = fmt.Sprintf("Expected %d, got %d", s.expected, resp.StatusCode)
	} else if s.check != nil {
		if err := s.check(r.cfg, st, resp); err != nil {
			res.appendError(err.Error())
		}
	}
	res.Kind = classify(res)
	return res
}

// newlines folds CRLF and lone CR into LF. CSV readers fold CRLF inside
// quoted fields, so free text in a Result only ever carries LF.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func normalizeNewlines(s string) string {
	return newlines.Replace(s)
}

// preview returns the body text cut to previewLimit characters.
func preview(body []byte) string {
	s := normalizeNewlines(string(body))
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	return string([]rune(s)[:previewLimit]) + "..."
}

func userHeaders(cfg Config) map[string]string {
	return map[string]string{"user-id": cfg.UserID}
}

func pageQuery(cfg Config) url.Values {
	return url.Values{
		"offset":   {strconv.Itoa(cfg.PageOffset)},
		"limit":    {strconv.Itoa(cfg.PageLimit)},
		"order_by": {cfg.OrderBy},
	}
}

// scenario returns the fixed step sequence.
func scenario() []step {
	return []step{
		{
			name: "Health Check", method: http.MethodGet, path: "/health/", expected: http.StatusOK,
		},
		{
			name: "Create Demo", method: http.MethodPost, path: "/demo/create/", expected: http.StatusCreated,
			build: func(cfg Config, _ *runState) Request {
				return Request{
					Headers: userHeaders(cfg),
					Body:    map[string]any{"name": cfg.DemoName, "logo": "https://example.com/logo.png"},
				}
			},
			check: func(_ Config, st *runState, resp *Response) error {
				id, err := extractString(resp.Body, "data.demo_id")
				if err != nil {
					return fmt.Errorf("capturing demo id: %w", err)
				}
				st.demoID = id
				return nil
			},
		},
		{
			name: "Get Demo", method: http.MethodGet, path: "/demo/read/{demo_id}/", expected: http.StatusOK, needsID: true,
			build: func(cfg Config, _ *runState) Request {
				return Request{Headers: userHeaders(cfg)}
			},
			check: func(cfg Config, _ *runState, resp *Response) error {
				name, err := extractString(resp.Body, "data.name")
				if err != nil {
					return err
				}
				if name != cfg.DemoName {
					return fmt.Errorf("data.name is %q, want %q", name, cfg.DemoName)
				}
				return nil
			},
		},
		{
			name: "List Demos", method: http.MethodGet, path: "/demos/", expected: http.StatusOK,
			build: func(cfg Config, _ *runState) Request {
				return Request{Headers: userHeaders(cfg), Query: pageQuery(cfg)}
			},
		},
		{
			name: "Update Demo", method: http.MethodPatch, path: "/demo/update/{demo_id}/", expected: http.StatusOK, needsID: true,
			build: func(cfg Config, _ *runState) Request {
				return Request{
					Headers: userHeaders(cfg),
					Body:    map[string]any{"name": "Updated " + cfg.DemoName, "logo": "https://example.com/updated-logo.png"},
				}
			},
		},
		{
			name: "Update Demo Status", method: http.MethodPatch, path: "/demo/update/status/{demo_id}/", expected: http.StatusOK, needsID: true,
			build: func(cfg Config, _ *runState) Request {
				return Request{
					Headers: userHeaders(cfg),
					Body:    map[string]any{"status": "updated", "error_message": nil, "error_user_message": nil},
				}
			},
		},
		{
			name: "Update Demo Is Active", method: http.MethodPatch, path: "/demo/update/is-active/{demo_id}/", expected: http.StatusOK, needsID: true,
			build: func(cfg Config, _ *runState) Request {
				return Request{Headers: userHeaders(cfg), Body: map[string]any{"is_active": false}}
			},
		},
		{
			name: "Get Demo Members", method: http.MethodGet, path: "/demo/members/", expected: http.StatusOK,
			build: func(cfg Config, st *runState) Request {
				id := st.demoID
				if id == "" {
					id = cfg.DemoIDSeed
				}
				h := userHeaders(cfg)
				h["demo-id"] = id
				return Request{Headers: h, Query: pageQuery(cfg)}
			},
		},
		{
			name: "Assign Member to Demo", method: http.MethodPost, path: "/demo/assign-member/", expected: http.StatusCreated, needsID: true,
			expectFrom: func(cfg Config) int { return cfg.AssignStatus },
			build: func(cfg Config, st *runState) Request {
				h := userHeaders(cfg)
				h["demo-id"] = st.demoID
				return Request{
					Headers: h,
					Body:    map[string]any{"member_user_id": cfg.MemberUserID, "role": cfg.MemberRole},
				}
			},
		},
		{
			name: "Delete Demo", method: http.MethodDelete, path: "/demo/delete/{demo_id}/", expected: http.StatusOK, needsID: true,
			build: func(cfg Config, _ *runState) Request {
				return Request{Headers: userHeaders(cfg)}
			},
		},
		{
			name: "Invalid Endpoint Test", method: http.MethodGet, path: "/totally-unknown-path/", expected: http.StatusNotFound,
		},
		{
			name: "Invalid Method Test", method: http.MethodPost, path: "/health/", expected: http.StatusMethodNotAllowed,
		},
	}
}
