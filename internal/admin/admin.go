// Package admin provides the /admin control plane used by tests and
// operators to reset, snapshot and inspect a running service.
package admin

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// StateStore is implemented by every persistence backend.
type StateStore interface {
	// Snapshot returns the full state as a JSON-serializable value.
	Snapshot(ctx context.Context) (any, error)
	// LoadState replaces the full state from a JSON body.
	LoadState(ctx context.Context, data []byte) error
	// Reset clears all state.
	Reset(ctx context.Context) error
}

// Handler provides the admin endpoints.
type Handler struct {
	state StateStore
	mw    *server.Middleware
	seed  []byte
}

// NewHandler creates a new admin handler. When seed is non-empty it is
// loaded again after every reset.
func NewHandler(state StateStore, mw *server.Middleware, seed []byte) *Handler {
	return &Handler{
		state: state,
		mw:    mw,
		seed:  seed,
	}
}

// Routes mounts the admin endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/reset", h.handleReset)
		r.Get("/state", h.handleGetState)
		r.Post("/state", h.handleLoadState)
		r.Get("/requests", h.handleGetRequests)
		r.Get("/health", h.handleHealth)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.state.Reset(ctx); err != nil {
		server.Error(w, http.StatusInternalServerError, "reset failed: "+err.Error())
		return
	}
	if len(h.seed) > 0 {
		if err := h.state.LoadState(ctx, h.seed); err != nil {
			server.Error(w, http.StatusInternalServerError, "reloading seed failed: "+err.Error())
			return
		}
	}
	h.mw.ReqLog.Clear()
	logging.FromContext(ctx, nil).Info("state reset", "seeded", len(h.seed) > 0)
	server.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap, err := h.state.Snapshot(r.Context())
	if err != nil {
		server.Error(w, http.StatusInternalServerError, "snapshot failed: "+err.Error())
		return
	}
	server.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleLoadState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "failed to read body: "+err.Error())
		return
	}
	if err := h.state.LoadState(r.Context(), body); err != nil {
		server.Error(w, http.StatusBadRequest, "failed to load state: "+err.Error())
		return
	}
	server.JSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (h *Handler) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, h.mw.ReqLog.Entries())
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	server.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
