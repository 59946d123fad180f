// Package httputil centralizes JSON encoding and domain error translation for
// the HTTP transport. Handlers delegate here so every endpoint emits the same
// envelopes.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	pkgerrors "edc/pkg/errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the JSON envelope of a failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError translates a domain error into the JSON error envelope. Internal
// errors keep their message out of the response.
func WriteError(w http.ResponseWriter, err error) {
	code := pkgerrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != pkgerrors.CodeInternal {
		resp.Description = err.Error()
	}
	WriteJSON(w, pkgerrors.ToHTTPStatus(code), resp)
}

// Decode parses the request body into T. On failure it writes a bad_request
// response and returns ok=false; the handler should return immediately.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(r.Context(), "cannot decode request body",
			slog.String("path", r.URL.Path), slog.Any("error", err))
		WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return req, true
}
