// Package respond writes JSON responses and keeps internal error detail
// out of them.
package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

// JSON writes v with the given status code. A nil v sends only the status.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダー送信済みなのでログに残すしかない
		slog.Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// SafeError writes an error response. Client errors carry the handler's
// message, masked for credentials. Server errors log the sanitized detail
// and return a generic body so catalog URLs, inference endpoints and API
// keys never reach a caller.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	if code < http.StatusInternalServerError {
		JSON(w, code, errorBody{Error: SanitizeError(err)})
		return
	}

	slog.Error("request failed",
		slog.Int("status_code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, errorBody{Error: "internal server error"})
}
