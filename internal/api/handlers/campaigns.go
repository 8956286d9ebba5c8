// Package handlers contains the HTTP handlers for the campaign API. Each
// handler depends on narrow service interfaces defined here so that tests
// can substitute fakes.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wacrm/internal/campaigns"
	"wacrm/internal/core"
	"wacrm/internal/types"
)

// --- Service Interfaces ---

// CampaignCanceller is implemented by campaigns.Canceller.
type CampaignCanceller interface {
	CancelBatch(ctx context.Context, companyID string, jobIDs []string, scheduleID string) (*campaigns.CancelResult, error)
	DeleteScheduledMessages(ctx context.Context, companyID string, jobIDs []string) (*campaigns.DeleteResult, error)
}

// CampaignReconciler is implemented by campaigns.Reconciler.
type CampaignReconciler interface {
	CheckCampaignStatus(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.StatusReport, error)
	SyncCampaignMessages(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.SyncResult, error)
}

// --- Request Types ---

// JobIDsRequest is the body of the cancel and delete endpoints.
type JobIDsRequest struct {
	SchedulerJobIDs []string `json:"scheduler_job_ids" validate:"max=5000,dive,job_id"`
}

// JobIDs exposes the ids to the validator's duplicate check.
func (r JobIDsRequest) JobIDs() []string { return r.SchedulerJobIDs }

// --- Handler ---

// CampaignHandler serves cancellation and status reconciliation of a
// campaign.
type CampaignHandler struct {
	canceller  CampaignCanceller
	reconciler CampaignReconciler
	validator  *core.Validator
	logger     *slog.Logger
	now        func() time.Time
}

// NewCampaignHandler creates a CampaignHandler.
func NewCampaignHandler(canceller CampaignCanceller, reconciler CampaignReconciler, v *core.Validator, l *slog.Logger) *CampaignHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}
	return &CampaignHandler{
		canceller:  canceller,
		reconciler: reconciler,
		validator:  v,
		logger:     l,
		now:        time.Now,
	}
}

// RegisterRoutes mounts the campaign routes.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Route("/campaigns/{scheduleID}", func(r chi.Router) {
		r.Post("/cancel", h.Cancel)
		r.Get("/status", h.Status)
		r.Post("/sync", h.Sync)
	})
}

// Cancel handles POST /v1/campaigns/{scheduleID}/cancel.
func (h *CampaignHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	companyID, err := types.CompanyFromContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	req, ok := decodeJobIDs(w, r, h.validator, h.logger)
	if !ok {
		return
	}

	scheduleID := chi.URLParam(r, "scheduleID")
	result, err := h.canceller.CancelBatch(r.Context(), companyID, req.SchedulerJobIDs, scheduleID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "campaign cancelled",
		"schedule_id", scheduleID,
		"company_id", companyID,
		"local_only", result.LocalOnly,
		"successful", result.Successful,
		"failed", result.Failed,
	)
	core.Data(w, r, result)
}

// Status handles GET /v1/campaigns/{scheduleID}/status.
func (h *CampaignHandler) Status(w http.ResponseWriter, r *http.Request) {
	companyID, err := types.CompanyFromContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.reconciler.CheckCampaignStatus(r.Context(), companyID, chi.URLParam(r, "scheduleID"), h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, report)
}

// Sync handles POST /v1/campaigns/{scheduleID}/sync.
func (h *CampaignHandler) Sync(w http.ResponseWriter, r *http.Request) {
	companyID, err := types.CompanyFromContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.reconciler.SyncCampaignMessages(r.Context(), companyID, chi.URLParam(r, "scheduleID"), h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, result)
}

// decodeJobIDs decodes and validates a JobIDsRequest. On failure it writes
// the error response and returns false.
func decodeJobIDs(w http.ResponseWriter, r *http.Request, v *core.Validator, l *slog.Logger) (JobIDsRequest, bool) {
	var req JobIDsRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return req, false
	}

	result := v.ValidateStructWithWarnings(req)
	if !result.IsValid() {
		core.Error(w, r, v.ValidateStruct(req))
		return req, false
	}
	for _, warning := range result.Warnings {
		l.WarnContext(r.Context(), "request warning", "warning", warning, "path", r.URL.Path)
	}
	return req, true
}
