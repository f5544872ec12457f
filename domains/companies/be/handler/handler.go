package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/automind-ia/automind-saas/domains/companies/be/service"
	"github.com/automind-ia/automind-saas/platform/go/callable"
	platformlogging "github.com/automind-ia/automind-saas/platform/go/logging"
)

// Handler exposes the onboarding access-code check.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("companies service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Mount registers the company routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/companies:validate-code", h.ValidateCode)
}

type validateCodeRequest struct {
	CompanyCode string `json:"companyCode"`
}

// ValidateCode implements POST /companies:validate-code, invoked by the
// signup flow to resolve a company code before creating a user.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		callable.WriteError(w, callable.InvalidArgument("invalid request body"))
		return
	}

	companyID, err := h.svc.ValidateAccessCode(r.Context(), req.CompanyCode)
	if err != nil {
		if callable.AsError(err).Code == callable.CodeInternal {
			platformlogging.FromRequest(r, h.logger).Error("validate access code failed", zap.Error(err))
		}
		callable.WriteError(w, err)
		return
	}

	callable.WriteResult(w, map[string]any{"companyId": companyID})
}
