// Package httptransport assembles the public surface: one admin merge
// endpoint plus health and metrics. Business logic stays behind the handler's
// service interface.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	identityhandler "servio/internal/identity/handler"
	adminmw "servio/pkg/platform/middleware/admin"
	authmw "servio/pkg/platform/middleware/auth"
	requestmw "servio/pkg/platform/middleware/request"
	"servio/pkg/platform/middleware/requesttime"
)

// Options carries the router's security configuration.
type Options struct {
	// AdminToken enables the static X-Admin-Token gate when non-empty.
	// Deployments without ops JWT tooling use this alone.
	AdminToken string
	// JWTSigningKey enables admin bearer JWT validation when non-empty.
	JWTSigningKey string
}

// New builds the router. Admin routes are guarded by whichever credentials
// are configured; configuring neither is refused upstream in main.
func New(h *identityhandler.Handler, logger *slog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(requestmw.ID)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if opts.JWTSigningKey != "" {
			r.Use(authmw.RequireAdminJWT(opts.JWTSigningKey, logger))
		}
		if opts.AdminToken != "" {
			r.Use(adminmw.RequireAdminToken(opts.AdminToken, logger))
		}
		h.Register(r)
	})

	return r
}
