// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/config"
	"github.com/unclebandit/campaign-dispatcher/internal/controller"
	"github.com/unclebandit/campaign-dispatcher/internal/db"
	"github.com/unclebandit/campaign-dispatcher/internal/delivery"
	"github.com/unclebandit/campaign-dispatcher/internal/handler"
	"github.com/unclebandit/campaign-dispatcher/internal/logging"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		boot := logging.New("info", "console")
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if !dotenv {
		log.Warn().Msg("no .env file found, relying on OS environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(ctx, cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer sqlDB.Close()
	if err := db.Migrate(ctx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	campaignRepo := &repository.CampaignRepository{DB: sqlDB}
	recipientRepo := &repository.RecipientRepository{DB: sqlDB}
	templateRepo := &repository.TemplateRepository{DB: sqlDB}
	entryRepo := &repository.PendingEntryRepository{DB: sqlDB}
	auditRepo := &repository.AuditLogRepository{DB: sqlDB}
	settingsRepo := &repository.SettingsRepository{DB: sqlDB}

	client := delivery.NewClient(delivery.Config{
		BaseURL:     cfg.Delivery.BaseURL,
		APIKey:      cfg.Delivery.APIKey,
		Timeout:     cfg.Delivery.Timeout,
		MaxAttempts: cfg.Delivery.MaxAttempts,
	}, logging.Component(log, "delivery"))
	if cfg.Delivery.APIKey == "" {
		log.Warn().Msg("DELIVERY_API_KEY is empty, every send will fail")
	}

	q, closeQueue := openQueue(cfg, log)
	defer closeQueue()

	dispatcher := service.NewDispatcher(campaignRepo, entryRepo, auditRepo, client,
		logging.Component(log, "dispatcher"),
		service.WithSpacing(cfg.Dispatch.SendSpacing),
		service.WithMaxBatch(cfg.Dispatch.BatchSize),
		service.WithOutcomeQueue(q),
	)

	// Without a broker the server answers its own dispatch triggers.
	if _, inMemory := q.(*queue.InMemoryQueue); inMemory {
		worker := service.NewWorker(dispatcher, cfg.Dispatch.BatchSize, logging.Component(log, "worker"))
		if err := q.Subscribe(queue.TopicDispatchTriggers, worker.HandleTrigger); err != nil {
			log.Fatal().Err(err).Msg("subscribe dispatch triggers")
		}
		if err := queue.StartOutcomeLogger(q, logging.Component(log, "outcomes")); err != nil {
			log.Fatal().Err(err).Msg("subscribe delivery outcomes")
		}
		go worker.Start(ctx)
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		EntryRepo:    entryRepo,
		AuditRepo:    auditRepo,
		SettingsRepo: settingsRepo,
		Log:          logging.Component(log, "campaigns"),
	}
	schedulerService := &service.SchedulerService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		TemplateRepo:  templateRepo,
		EntryRepo:     entryRepo,
		SettingsRepo:  settingsRepo,
		Slots:         service.NewSlotScheduler(nil, logging.Component(log, "slots")),
		Queue:         q,
		Log:           logging.Component(log, "scheduler"),
	}
	testSender := service.NewTestSender(recipientRepo, templateRepo, auditRepo, client, nil,
		service.DefaultTestSpacing, logging.Component(log, "test-sender"))

	router := newRouter(routes{
		campaigns: &controller.CampaignController{
			CampaignService: campaignService,
			Scheduler:       schedulerService,
			Log:             logging.Component(log, "http"),
		},
		dispatch: &controller.DispatchController{
			Dispatcher: dispatcher,
			TestSender: testSender,
			Log:        logging.Component(log, "http"),
		},
		settings: &controller.SettingsController{Service: &service.SettingsService{Repo: settingsRepo}},
		reads:    handler.NewCampaignHandler(campaignService, client, logging.Component(log, "http")),
	}, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// openQueue dials RabbitMQ when AMQP_URL is set and falls back to the
// in-memory queue otherwise.
func openQueue(cfg *config.Config, log zerolog.Logger) (queue.Queue, func()) {
	qlog := logging.Component(log, "queue")
	if cfg.AMQPURL == "" {
		return queue.NewInMemoryQueue(qlog), func() {}
	}
	aq, err := queue.DialAMQP(cfg.AMQPURL, qlog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	return aq, func() { _ = aq.Close() }
}
