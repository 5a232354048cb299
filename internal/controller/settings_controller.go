package controller

import (
	"net/http"

	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

type SettingsController struct {
	Service *service.SettingsService
}

func (c *SettingsController) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := c.Service.Get(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, s)
}

// UpdateSettings replaces the settings row. Omitted fields start from the
// current values.
func (c *SettingsController) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	current, err := c.Service.Get(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	body := current
	if err := decodeBody(r, &body); err != nil {
		WriteError(w, err)
		return
	}

	saved, err := c.Service.Update(r.Context(), body)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, saved)
}
