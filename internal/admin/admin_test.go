package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// ---------------------------------------------------------------------------
// Mock state store
// ---------------------------------------------------------------------------

type mockState struct {
	data        map[string]string
	resetCalled bool
	resetErr    error
}

func newMockState() *mockState {
	return &mockState{data: map[string]string{"key": "value"}}
}

func (m *mockState) Snapshot(context.Context) (any, error) {
	return m.data, nil
}

func (m *mockState) LoadState(_ context.Context, data []byte) error {
	var d map[string]string
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	m.data = d
	return nil
}

func (m *mockState) Reset(context.Context) error {
	m.resetCalled = true
	m.data = map[string]string{}
	return m.resetErr
}

func setupTestServer(state StateStore, seed []byte) (*httptest.Server, *server.Server) {
	srv := server.New(server.Options{}, logging.Discard())
	NewHandler(state, srv.Middleware(), seed).Routes(srv.Router)
	return httptest.NewServer(srv), srv
}

func TestHandleHealth(t *testing.T) {
	ts, _ := setupTestServer(newMockState(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", body)
	}
}

func TestHandleReset(t *testing.T) {
	state := newMockState()
	ts, srv := setupTestServer(state, nil)
	defer ts.Close()

	http.Get(ts.URL + "/admin/health")
	if len(srv.Middleware().ReqLog.Entries()) == 0 {
		t.Fatal("expected request log entries before reset")
	}

	resp, err := http.Post(ts.URL+"/admin/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !state.resetCalled {
		t.Error("expected Reset to be called")
	}
	// The reset request itself is logged after the clear.
	if n := len(srv.Middleware().ReqLog.Entries()); n != 1 {
		t.Errorf("expected request log cleared, got %d entries", n)
	}
}

func TestHandleResetReloadsSeed(t *testing.T) {
	state := newMockState()
	ts, _ := setupTestServer(state, []byte(`{"seeded":"yes"}`))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/admin/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if state.data["seeded"] != "yes" {
		t.Errorf("expected seed reloaded after reset, got %v", state.data)
	}
}

func TestHandleResetError(t *testing.T) {
	state := newMockState()
	state.resetErr = errors.New("disk full")
	ts, _ := setupTestServer(state, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/admin/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestHandleGetState(t *testing.T) {
	ts, _ := setupTestServer(newMockState(), nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/admin/state")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["key"] != "value" {
		t.Errorf("expected key=value, got %v", body)
	}
}

func TestHandleLoadState(t *testing.T) {
	state := newMockState()
	ts, _ := setupTestServer(state, nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/admin/state", "application/json", strings.NewReader(`{"new":"data"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if state.data["new"] != "data" {
		t.Errorf("expected state loaded, got %v", state.data)
	}
}

func TestHandleLoadStateInvalid(t *testing.T) {
	ts, _ := setupTestServer(newMockState(), nil)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/admin/state", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	var body map[string]any
	json.NewDecoder(resp.Body).Decode(&body)
	if body["success"] != false {
		t.Errorf("expected error envelope, got %v", body)
	}
}

func TestHandleGetRequests(t *testing.T) {
	ts, _ := setupTestServer(newMockState(), nil)
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp, err := http.Get(fmt.Sprintf("%s/admin/health?i=%d", ts.URL, i))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/admin/requests")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var entries []server.RequestLogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Path != "/admin/health" || entries[0].CorrelationID == "" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}
