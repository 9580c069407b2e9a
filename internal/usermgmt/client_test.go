package usermgmt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/logging"
)

const userID = "550e8400-e29b-41d4-a716-446655440002"

func newTestClient(url string, retries int) *Client {
	return New(Config{
		BaseURL:         url,
		Timeout:         time.Second,
		Retries:         retries,
		InitialInterval: time.Millisecond,
		Logger:          logging.Discard(),
	})
}

func TestUserExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/"+userID+"/", r.URL.Path)
		assert.Equal(t, userID, r.Header.Get("X-User-ID"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"user_id":"` + userID + `"}`))
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL+"/", 3).UserExists(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserExistsNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL, 3).UserExists(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestUserExistsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, err := newTestClient(srv.URL, 3).UserExists(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUserExistsGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).UserExists(context.Background(), userID)
	assert.ErrorIs(t, err, demo.ErrDirectoryUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestUserExistsClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).UserExists(context.Background(), userID)
	assert.ErrorIs(t, err, demo.ErrDirectoryUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUserExistsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, 2).UserExists(context.Background(), userID)
	assert.ErrorIs(t, err, demo.ErrDirectoryUnavailable)
}

func TestUserExistsCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{BaseURL: srv.URL, Retries: 5, InitialInterval: time.Hour, Logger: logging.Discard()}).
		UserExists(ctx, userID)
	assert.ErrorIs(t, err, demo.ErrDirectoryUnavailable)
}
