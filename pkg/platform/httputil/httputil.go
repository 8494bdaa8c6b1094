// Package httputil centralizes JSON request decoding and error envelopes so
// handlers stay thin and every endpoint fails the same way.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "servio/pkg/domain-errors"
)

// Preparer is implemented by request types that normalize and validate
// themselves after decoding.
type Preparer interface {
	Prepare() error
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the standard error envelope.
// Internal errors omit the description so storage details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		if desc := dErrors.Description(err); desc != "" {
			body["error_description"] = desc
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// DecodeAndPrepare decodes the request body into T and runs its Prepare hook
// when present. On failure it writes a bad_request envelope, logs with the
// request ID, and returns ok=false; the handler should just return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "malformed request body", "request_id", requestID, "error", err)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return req, false
	}
	if p, ok := any(&req).(Preparer); ok {
		if err := p.Prepare(); err != nil {
			if logger != nil {
				logger.WarnContext(ctx, "invalid request", "request_id", requestID, "error", err)
			}
			WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, err.Error()))
			return req, false
		}
	}
	return req, true
}
