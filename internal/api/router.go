// Package api implements the Demo Management HTTP API under /api/v1.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// Prefix is the mount point of every API route.
const Prefix = "/api/v1"

const (
	// UserIDHeader identifies the calling user on every /demo* endpoint.
	UserIDHeader = "user-id"
	// DemoIDHeader identifies the demo for the members endpoints.
	DemoIDHeader = "demo-id"
)

const uuidExample = "550e8400-e29b-41d4-a716-446655440000"

type ctxKey int

const (
	userIDKey ctxKey = iota
	demoIDKey
)

// Handler holds all API handler state.
type Handler struct {
	svc    *demo.Service
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(svc *demo.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the API routes under Prefix.
func (h *Handler) Routes(r chi.Router) {
	r.Route(Prefix, func(r chi.Router) {
		r.Get("/health/", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUUIDHeader(UserIDHeader, userIDKey))

			r.Post("/demo/create/", h.CreateDemo)
			r.Get("/demo/read/{demo_id}/", h.GetDemo)
			r.Get("/demos/", h.ListDemos)
			r.Patch("/demo/update/{demo_id}/", h.UpdateDemo)
			r.Patch("/demo/update/status/{demo_id}/", h.UpdateDemoStatus)
			r.Patch("/demo/update/is-active/{demo_id}/", h.UpdateDemoIsActive)
			r.Delete("/demo/delete/{demo_id}/", h.DeleteDemo)

			r.Group(func(r chi.Router) {
				r.Use(h.requireUUIDHeader(DemoIDHeader, demoIDKey))

				r.Get("/demo/members/", h.ListMembers)
				r.Post("/demo/assign-member/", h.AssignMember)
			})
		})
	})
}

// requireUUIDHeader rejects requests whose header is missing or not a UUID
// with a 400, and stores the canonical value in the request context.
func (h *Handler) requireUUIDHeader(header string, key ctxKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(header))
			if raw == "" {
				server.Error(w, http.StatusBadRequest, header+" header missing")
				return
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				server.Error(w, http.StatusBadRequest, fmt.Sprintf(
					"Invalid %s format. Expected UUID, got: '%s'. Example: %s", header, raw, uuidExample))
				return
			}
			ctx := context.WithValue(r.Context(), key, id.String())
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx, h.logger).With(strings.ReplaceAll(header, "-", "_"), id.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userID(r *http.Request) string {
	v, _ := r.Context().Value(userIDKey).(string)
	return v
}

func demoIDHeader(r *http.Request) string {
	v, _ := r.Context().Value(demoIDKey).(string)
	return v
}

// pathDemoID parses the {demo_id} URL parameter. A malformed id is a 422,
// like any other invalid input.
func pathDemoID(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "demo_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", demo.Invalid("uuid_parsing", []string{"path", "demo_id"}, "Input should be a valid UUID", raw)
	}
	return id.String(), nil
}
