package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/audit"
)

// handleListAudit returns recorded probe executions, newest first.
//
// Query parameters:
//   - outcome: ok, exec_error, parse_error, probe_error, internal_error
//   - since: RFC3339 timestamp, only executions at or after it
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "execution audit is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Outcome: q.Get("outcome")}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list probe executions", "error", err)
		writeInternalError(w, "failed to list probe executions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
