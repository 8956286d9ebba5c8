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

// ApprovalLister is implemented by campaigns.ApprovalQueue.
type ApprovalLister interface {
	GetPendingApprovals(ctx context.Context, companyID string, now time.Time) (*campaigns.PendingApprovals, error)
}

// ExpiryChecker is implemented by campaigns.ExpiryNotifier.
type ExpiryChecker interface {
	CheckExpiringBatches(ctx context.Context, now time.Time) (*campaigns.ExpiryReport, error)
}

// BatchHandler serves the batch approval queue.
type BatchHandler struct {
	approvals ApprovalLister
	expiry    ExpiryChecker
	logger    *slog.Logger
	now       func() time.Time
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(approvals ApprovalLister, expiry ExpiryChecker, l *slog.Logger) *BatchHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BatchHandler{approvals: approvals, expiry: expiry, logger: l, now: time.Now}
}

// RegisterRoutes mounts the batch routes. check-expiring is restricted to
// system actors.
func (h *BatchHandler) RegisterRoutes(r chi.Router) {
	r.Route("/batches", func(r chi.Router) {
		r.Get("/pending-approvals", h.PendingApprovals)
		r.With(core.RequireSystem).Post("/check-expiring", h.CheckExpiring)
	})
}

// PendingApprovals handles GET /v1/batches/pending-approvals.
func (h *BatchHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	companyID, err := types.CompanyFromContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	pending, err := h.approvals.GetPendingApprovals(r.Context(), companyID, h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, pending)
}

// CheckExpiring handles POST /v1/batches/check-expiring. It scans every
// tenant, so the route is only mounted behind RequireSystem.
func (h *BatchHandler) CheckExpiring(w http.ResponseWriter, r *http.Request) {
	report, err := h.expiry.CheckExpiringBatches(r.Context(), h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "expiry check completed",
		"checked", report.Checked,
		"created", len(report.Notifications),
	)
	core.Data(w, r, report)
}
