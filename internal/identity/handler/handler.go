package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"servio/internal/identity/merge"
	id "servio/pkg/domain"
	"servio/pkg/platform/httputil"
	"servio/pkg/requestcontext"
)

// Service defines the interface for identity merge operations.
type Service interface {
	Merge(ctx context.Context, identityA, identityB id.IdentityID) (*merge.Result, error)
}

// Handler wires identity admin endpoints to the merge service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an identity handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity admin endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/identities/merge", h.HandleMerge)
}

// HandleMerge handles POST /admin/identities/merge requests.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Merge(ctx, req.idA, req.idB)
	if err != nil {
		h.logger.WarnContext(ctx, "merge rejected",
			"request_id", requestID,
			"identity_id_a", req.IdentityIDA,
			"identity_id_b", req.IdentityIDB,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MergeResponse{
		SurvivorID: result.SurvivorID.String(),
		LoserID:    result.LoserID.String(),
		Relations:  result.Outcomes,
	})
}
