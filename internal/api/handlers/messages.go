package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wacrm/internal/core"
	"wacrm/internal/types"
)

// MessageHandler serves operations on individual scheduled messages.
type MessageHandler struct {
	canceller CampaignCanceller
	validator *core.Validator
	logger    *slog.Logger
}

// NewMessageHandler creates a MessageHandler.
func NewMessageHandler(canceller CampaignCanceller, v *core.Validator, l *slog.Logger) *MessageHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}
	return &MessageHandler{canceller: canceller, validator: v, logger: l}
}

// RegisterRoutes mounts the message routes.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/scheduled/delete", h.DeleteScheduled)
}

// DeleteScheduled handles POST /v1/messages/scheduled/delete. It needs a
// configured scheduler; without one the response is 500
// upstream_scheduler_not_configured.
func (h *MessageHandler) DeleteScheduled(w http.ResponseWriter, r *http.Request) {
	companyID, err := types.CompanyFromContext(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	req, ok := decodeJobIDs(w, r, h.validator, h.logger)
	if !ok {
		return
	}

	result, err := h.canceller.DeleteScheduledMessages(r.Context(), companyID, req.SchedulerJobIDs)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, result)
}
