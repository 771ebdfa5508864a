// Package utils holds the JSON response helpers shared by the HTTP handlers.
package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Station int    `json:"station,omitempty"`
}

// WriteJSON encodes v before writing anything, so a value json cannot
// represent (a NaN reading) turns into a 500 rather than a cut-off 200.
// Responses are never cached since readings change on every poll.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode JSON response", "status", status, "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorBody{
			Error:   http.StatusText(status),
			Message: "failed to encode response",
		})
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Debug("write JSON response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: http.StatusText(status), Message: msg})
}

// WriteStationError is WriteError for a request about one station.
func WriteStationError(w http.ResponseWriter, status int, station int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: http.StatusText(status), Message: msg, Station: station})
}
