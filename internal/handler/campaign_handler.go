// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/controller"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

// StatusChecker probes the delivery API.
type StatusChecker interface {
	CheckStatus(ctx context.Context) (map[string]any, error)
}

// CampaignHandler holds the dependencies for the read-only endpoints
type CampaignHandler struct {
	Service  *service.CampaignService
	Delivery StatusChecker
	Log      zerolog.Logger
}

func NewCampaignHandler(svc *service.CampaignService, delivery StatusChecker, log zerolog.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Delivery: delivery, Log: log}
}

// GetCampaignHandlerWithStats returns one campaign with its per-status entry counts.
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, err := controller.URLID(r)
	if err != nil {
		controller.WriteError(w, err)
		return
	}

	h.Log.Debug().Int("campaign_id", id).Msg("fetching campaign details")

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		h.Log.Warn().Err(err).Int("campaign_id", id).Msg("failed to fetch campaign")
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, details)
}

// UpcomingHandler lists entries due in the next 24 hours.
func (h *CampaignHandler) UpcomingHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.UpcomingEntries(r.Context())
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to list upcoming entries")
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  entries,
		"count": len(entries),
	})
}

func (h *CampaignHandler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := controller.QueryInt(r, "limit", service.DefaultLogLimit)
	if err != nil {
		controller.WriteError(w, err)
		return
	}
	logs, err := h.Service.RecentLogs(r.Context(), limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("failed to list audit logs")
		controller.WriteError(w, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":  logs,
		"count": len(logs),
	})
}

// DeliveryStatusHandler reports whether the delivery API accepts our credential.
// Probe failures are reported in the body, not as a server error.
func (h *CampaignHandler) DeliveryStatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := h.Delivery.CheckStatus(r.Context())
	if err != nil {
		h.Log.Warn().Err(err).Msg("delivery status check failed")
		controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
			"api":   status,
		})
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"api": status,
	})
}
