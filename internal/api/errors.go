package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/logging"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// writeError maps a service error onto the error envelope. demoID, when set,
// names the demo in not-found messages; fallback is the message used for
// unexpected failures, which are logged and reported as 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, demoID, fallback string) {
	var (
		verr *demo.ValidationError
		uerr *demo.UploadError
	)
	switch {
	case errors.As(err, &verr):
		server.ErrorWithDetails(w, http.StatusUnprocessableEntity, "Validation failed", verr.Errors)
	case errors.As(err, &uerr):
		server.Error(w, http.StatusBadRequest, uerr.Msg)
	case errors.Is(err, demo.ErrNotFound):
		msg := "Demo not found."
		if demoID != "" {
			msg = fmt.Sprintf("Demo with ID %s not found.", demoID)
		}
		server.Error(w, http.StatusNotFound, msg)
	case errors.Is(err, demo.ErrMemberExists):
		server.Error(w, http.StatusConflict, "User is already a member of this demo.")
	case errors.Is(err, demo.ErrUserNotFound):
		server.Error(w, http.StatusUnprocessableEntity, "User not found in user management service.")
	case errors.Is(err, demo.ErrDirectoryUnavailable):
		server.Error(w, http.StatusServiceUnavailable, "User management service is temporarily unavailable.")
	default:
		logging.FromContext(r.Context(), h.logger).Error(fallback, "error", err)
		server.Error(w, http.StatusInternalServerError, fallback)
	}
}
