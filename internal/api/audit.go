package api

import (
	"net/http"
	"strconv"

	"github.com/fleetwake/fleetwake/internal/audit"
)

// handleListAudit queries the audit trail. Admin only.
//
// Query parameters: action, entity_type, username, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		Username:   q.Get("username"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		filter.Offset = v
	}

	result, err := s.deps.Audit.List(r.Context(), filter)
	if err != nil {
		writeDatabaseError(w)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
