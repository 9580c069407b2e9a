package api

import (
	"net/http"

	"github.com/wondertwin-ai/demo-management/internal/demo"
	"github.com/wondertwin-ai/demo-management/internal/server"
)

// ListMembers handles GET /demo/members/ for the demo named by the demo-id header.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id := demoIDHeader(r)
	q, err := memberQuery(r)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to retrieve demo members")
		return
	}
	page, err := h.svc.ListMembers(r.Context(), id, q)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to retrieve demo members")
		return
	}
	items := page.Items
	if items == nil {
		items = []demo.Member{}
	}
	server.List(w, items, "Demo members retrieved successfully", server.Pagination{
		TotalCount: page.Total,
		Offset:     q.Offset,
		Limit:      q.Limit,
		TotalPages: demo.TotalPages(page.Total, q.Limit),
	})
}

// AssignMember handles POST /demo/assign-member/. The member is read from the
// JSON body, falling back to member_user_id and role query parameters.
func (h *Handler) AssignMember(w http.ResponseWriter, r *http.Request) {
	id := demoIDHeader(r)
	var in demo.AssignInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err, id, "Failed to assign member")
		return
	}
	if in.MemberUserID == "" && in.Role == "" {
		q := r.URL.Query()
		in.MemberUserID = q.Get("member_user_id")
		in.Role = demo.Role(q.Get("role"))
	}

	m, err := h.svc.AssignMember(r.Context(), userID(r), id, in)
	if err != nil {
		h.writeError(w, r, err, id, "Failed to assign member")
		return
	}
	server.Success(w, http.StatusCreated, m, "Member assigned successfully")
}
