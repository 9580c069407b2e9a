package api

import (
	"net/http"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// Health handles GET /health/.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	server.Success(w, http.StatusOK, map[string]string{"status": "ok"}, "Demo Management Service healthy")
}

// CreateDemo handles POST /demo/create/. The body is JSON or form fields;
// a multipart logo file part is stored as the demo's logo.
func (h *Handler) CreateDemo(w http.ResponseWriter, r *http.Request) {
	var in demo.CreateInput
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			h.writeError(w, r, err, "", "Demo creation failed")
			return
		}
		in.Name = r.PostForm.Get("name")
		in.Logo = formValue(r, "logo")
		file, closeFile, err := formLogo(r)
		if err != nil {
			h.writeError(w, r, err, "", "Demo creation failed")
			return
		}
		defer closeFile()
		in.LogoFile = file
	} else if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, "", "Demo creation failed")
		return
	}

	d, err := h.svc.Create(r.Context(), userID(r), in)
	if err != nil {
		h.writeError(w, r, err, "", "Demo creation failed")
		return
	}
	server.Success(w, http.StatusCreated, d, "Demo created successfully")
}

// GetDemo handles GET /demo/read/{demo_id}/.
func (h *Handler) GetDemo(w http.ResponseWriter, r *http.Request) {
	id, err := pathDemoID(r)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to retrieve demo")
		return
	}
	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to retrieve demo")
		return
	}
	server.Success(w, http.StatusOK, d, "Demo retrieved successfully")
}

// ListDemos handles GET /demos/.
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to retrieve demos")
		return
	}
	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to retrieve demos")
		return
	}
	items := page.Items
	if items == nil {
		items = []demo.Demo{}
	}
	server.List(w, items, "Demos retrieved successfully", server.Pagination{
		TotalCount: page.Total,
		Offset:     q.Offset,
		Limit:      q.Limit,
		TotalPages: demo.TotalPages(page.Total, q.Limit),
	})
}

// UpdateDemo handles PATCH /demo/update/{demo_id}/.
func (h *Handler) UpdateDemo(w http.ResponseWriter, r *http.Request) {
	id, err := pathDemoID(r)
	if err != nil {
		h.writeError(w, r, err, "", "Demo update failed")
		return
	}
	var in demo.UpdateInput
	if isForm(r) {
		if err := parseForm(w, r); err != nil {
			h.writeError(w, r, err, id, "Demo update failed")
			return
		}
		in.Name = formValue(r, "name")
		in.Logo = formValue(r, "logo")
		file, closeFile, err := formLogo(r)
		if err != nil {
			h.writeError(w, r, err, id, "Demo update failed")
			return
		}
		defer closeFile()
		in.LogoFile = file
	} else if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, id, "Demo update failed")
		return
	}

	d, err := h.svc.Update(r.Context(), userID(r), id, in)
	if err != nil {
		h.writeError(w, r, err, id, "Demo update failed")
		return
	}
	server.Success(w, http.StatusOK, d, "Demo updated successfully")
}

// UpdateDemoStatus handles PATCH /demo/update/status/{demo_id}/.
func (h *Handler) UpdateDemoStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathDemoID(r)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to update demo status")
		return
	}
	var in demo.StatusInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, id, "Failed to update demo status")
		return
	}
	d, err := h.svc.UpdateStatus(r.Context(), userID(r), id, in)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to update demo status")
		return
	}
	server.Success(w, http.StatusOK, d, "Demo status updated successfully")
}

// UpdateDemoIsActive handles PATCH /demo/update/is-active/{demo_id}/.
func (h *Handler) UpdateDemoIsActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathDemoID(r)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to update demo active status")
		return
	}
	var in demo.IsActiveInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, id, "Failed to update demo active status")
		return
	}
	d, err := h.svc.UpdateIsActive(r.Context(), userID(r), id, in)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to update demo active status")
		return
	}
	server.Success(w, http.StatusOK, d, "Demo active status updated successfully")
}

// DeleteDemo handles DELETE /demo/delete/{demo_id}/.
func (h *Handler) DeleteDemo(w http.ResponseWriter, r *http.Request) {
	id, err := pathDemoID(r)
	if err != nil {
		h.writeError(w, r, err, "", "Failed to delete demo")
		return
	}
	if err := h.svc.Delete(r.Context(), userID(r), id); err != nil {
		h.writeError(w, r, err, id, "Failed to delete demo")
		return
	}
	server.Success(w, http.StatusOK, nil, "Demo deleted successfully")
}
