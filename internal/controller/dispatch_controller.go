package controller

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

type DispatchRunner interface {
	ProcessNow(ctx context.Context) (service.DispatchResult, error)
	ProcessDue(ctx context.Context, batchSize int) (service.DispatchResult, error)
}

type TestMessageSender interface {
	Send(ctx context.Context, audience string, poolID int) (*service.TestSendResult, error)
}

// DispatchController exposes the on-demand dispatch triggers and test sends.
type DispatchController struct {
	Dispatcher DispatchRunner
	TestSender TestMessageSender
	Log        zerolog.Logger
}

func (c *DispatchController) ProcessNow(w http.ResponseWriter, r *http.Request) {
	res, err := c.Dispatcher.ProcessNow(r.Context())
	if err != nil {
		c.Log.Error().Err(err).Msg("process-now failed")
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// ProcessDue accepts an optional batch_size query value, capped by the
// dispatcher.
func (c *DispatchController) ProcessDue(w http.ResponseWriter, r *http.Request) {
	n, err := QueryInt(r, "batch_size", service.MaxDispatchBatch)
	if err != nil {
		WriteError(w, err)
		return
	}
	res, err := c.Dispatcher.ProcessDue(r.Context(), n)
	if err != nil {
		c.Log.Error().Err(err).Msg("process-due failed")
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (c *DispatchController) SendTestMessages(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AudienceFilter string `json:"audience_filter"`
		TemplatePoolID int    `json:"template_pool_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err)
		return
	}
	if body.AudienceFilter == "" {
		body.AudienceFilter = model.AudienceAll
	}
	if body.TemplatePoolID <= 0 {
		body.TemplatePoolID = 1
	}

	res, err := c.TestSender.Send(r.Context(), body.AudienceFilter, body.TemplatePoolID)
	if err != nil {
		if StatusFor(err) >= http.StatusInternalServerError {
			c.Log.Error().Err(err).Msg("test send failed")
		}
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
