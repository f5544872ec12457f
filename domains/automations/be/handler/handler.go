package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/automind-ia/automind-saas/domains/automations/be/service"
	"github.com/automind-ia/automind-saas/platform/go/callable"
	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
)

// Handler exposes the lifecycle operations as callable-style JSON endpoints.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("automations service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the automation routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/automations:update-status", h.UpdateStatus)
	r.Post("/automations:mark-processing", h.MarkProcessing)
}

// UpdateStatus implements POST /automations:update-status, the callback the
// workflow engine invokes to report instance- or client-level progress.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		callable.WriteError(w, callable.InvalidArgument("invalid request body"))
		return
	}

	message, err := h.svc.UpdateStatus(r.Context(), req)
	if err != nil {
		h.logFailure(r, "update status failed", err)
		callable.WriteError(w, err)
		return
	}

	callable.WriteResult(w, map[string]any{"message": message})
}

type markProcessingRequest struct {
	CompanyID  string `json:"companyId"`
	InstanceID string `json:"instanceId"`
}

// MarkProcessing implements POST /automations:mark-processing, invoked by the
// upload flow before it hands off to the workflow engine.
func (h *Handler) MarkProcessing(w http.ResponseWriter, r *http.Request) {
	var req markProcessingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		callable.WriteError(w, callable.InvalidArgument("invalid request body"))
		return
	}

	if err := h.svc.MarkProcessing(r.Context(), req.CompanyID, req.InstanceID); err != nil {
		h.logFailure(r, "mark processing failed", err)
		callable.WriteError(w, err)
		return
	}

	callable.WriteResult(w, nil)
}

func (h *Handler) logFailure(r *http.Request, msg string, err error) {
	logger := platformlogging.FromRequest(r, h.logger)
	if callable.AsError(err).Code == callable.CodeInternal {
		logger.Error(msg, zap.Error(err))
		return
	}
	logger.Warn(msg, zap.Error(err))
}
