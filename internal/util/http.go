package util

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SetHTMLHeaders marks an HTML response cacheable for maxAge (0 revalidates).
func SetHTMLHeaders(w http.ResponseWriter, maxAge time.Duration) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(maxAge/time.Second)))
}

// WriteJSON encodes v as the response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// RespondError writes a plain-text error body. Server-side failures
// (status >= 500) are logged together with cause.
func RespondError(w http.ResponseWriter, status int, message string, cause error) {
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "message", message, "error", cause)
	}
	http.Error(w, message, status)
}

// RespondBadRequest sends a 400 with message.
func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, message, nil)
}
