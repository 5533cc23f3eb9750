package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// handleRead runs the probe once and relays its result.
//
// Method, query string and body are ignored. Success is 200 with the probe's
// JSON object (plus an injected verification_token on detection). Any
// failure is 500 with {"detected": false, "error": "<message>"}.
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	result, err := s.reader.Read(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, sensor.NewFailurePayload(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, result)
}
