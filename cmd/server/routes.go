package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/controller"
	"github.com/unclebandit/campaign-dispatcher/internal/handler"
)

type routes struct {
	campaigns *controller.CampaignController
	dispatch  *controller.DispatchController
	settings  *controller.SettingsController
	reads     *handler.CampaignHandler
}

func newRouter(rt routes, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Campaign routes
	r.Post("/campaigns", rt.campaigns.CreateCampaign)
	r.Get("/campaigns", rt.campaigns.ListCampaigns)
	r.Get("/campaigns/{id}", rt.reads.GetCampaignHandlerWithStats)
	r.Post("/campaigns/{id}/schedule", rt.campaigns.ScheduleCampaign)
	r.Post("/campaigns/{id}/reset", rt.campaigns.ResetCampaign)
	r.Post("/schedule/auto-run", rt.campaigns.RunAutoSchedule)
	r.Get("/scheduled/upcoming", rt.reads.UpcomingHandler)

	// Dispatch routes
	r.Post("/dispatch/process-now", rt.dispatch.ProcessNow)
	r.Post("/dispatch/process-due", rt.dispatch.ProcessDue)
	r.Post("/test-messages", rt.dispatch.SendTestMessages)

	r.Get("/settings", rt.settings.GetSettings)
	r.Put("/settings", rt.settings.UpdateSettings)
	r.Get("/logs", rt.reads.LogsHandler)
	r.Get("/delivery/status", rt.reads.DeliveryStatusHandler)

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}
