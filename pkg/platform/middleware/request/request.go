// Package request assigns every inbound request a correlation ID and exposes
// it to downstream middleware, handlers, and services.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"servio/pkg/requestcontext"
)

// HeaderRequestID carries the caller-supplied correlation ID, if any.
const HeaderRequestID = "X-Request-Id"

// ID injects a request ID into the context, honoring the inbound header so
// callers can correlate across services. The ID is echoed on the response.
func ID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID set by ID, or "" when absent.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
