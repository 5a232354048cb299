// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

// CampaignScheduler is the scheduling side used by the campaign routes.
type CampaignScheduler interface {
	ScheduleCampaign(ctx context.Context, campaignID int) (*service.ScheduleResult, error)
	ResetCampaign(ctx context.Context, campaignID int) (int, error)
	RunDailyAutoSchedule(ctx context.Context) (*service.AutoScheduleResult, error)
}

type CampaignController struct {
	CampaignService *service.CampaignService
	Scheduler       CampaignScheduler
	Log             zerolog.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		c.fail(w, err, "create campaign")
		return
	}
	WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, err := QueryInt(r, "page", 1)
	if err != nil {
		WriteError(w, err)
		return
	}
	pageSize, err := QueryInt(r, "page_size", 20)
	if err != nil {
		WriteError(w, err)
		return
	}
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		c.fail(w, err, "list campaigns")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination, // page, page_size, total_count, total_pages
	})
}

// ScheduleCampaign generates today's pending entries for the campaign.
func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := URLID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := c.Scheduler.ScheduleCampaign(r.Context(), id)
	if err != nil {
		c.fail(w, err, "schedule campaign")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (c *CampaignController) ResetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := URLID(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	n, err := c.Scheduler.ResetCampaign(r.Context(), id)
	if err != nil {
		c.fail(w, err, "reset campaign")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": id,
		"cancelled":   n,
		"status":      "draft",
	})
}

// RunAutoSchedule runs the daily auto-schedule job on demand.
func (c *CampaignController) RunAutoSchedule(w http.ResponseWriter, r *http.Request) {
	res, err := c.Scheduler.RunDailyAutoSchedule(r.Context())
	if err != nil {
		c.fail(w, err, "auto-schedule")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (c *CampaignController) fail(w http.ResponseWriter, err error, op string) {
	if status := StatusFor(err); status >= http.StatusInternalServerError {
		c.Log.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		c.Log.Debug().Err(err).Str("op", op).Int("status", status).Msg("request rejected")
	}
	WriteError(w, err)
}
