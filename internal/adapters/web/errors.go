package web

import (
	"encoding/json"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps a service-layer error onto an HTTP status: not-found
// messages become 404, everything else is a 400 since the services validate
// their own inputs.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	msg := err.Error()
	if strings.Contains(msg, "not found") {
		writeError(w, r, msg, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeError(w, r, msg, "BAD_REQUEST", http.StatusBadRequest)
}
