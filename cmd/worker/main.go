package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/campaign-dispatcher/internal/config"
	"github.com/unclebandit/campaign-dispatcher/internal/db"
	"github.com/unclebandit/campaign-dispatcher/internal/delivery"
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

	campaignRepo := &repository.CampaignRepository{DB: sqlDB}
	entryRepo := &repository.PendingEntryRepository{DB: sqlDB}
	auditRepo := &repository.AuditLogRepository{DB: sqlDB}
	settingsRepo := &repository.SettingsRepository{DB: sqlDB}

	client := delivery.NewClient(delivery.Config{
		BaseURL:     cfg.Delivery.BaseURL,
		APIKey:      cfg.Delivery.APIKey,
		Timeout:     cfg.Delivery.Timeout,
		MaxAttempts: cfg.Delivery.MaxAttempts,
	}, logging.Component(log, "delivery"))

	var q queue.Queue
	if cfg.AMQPURL != "" {
		aq, err := queue.DialAMQP(cfg.AMQPURL, logging.Component(log, "queue"))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer aq.Close()
		q = aq
	} else {
		log.Warn().Msg("AMQP_URL is empty, on-demand dispatch triggers from the server will not reach this worker")
		q = queue.NewInMemoryQueue(logging.Component(log, "queue"))
	}
	if err := queue.StartOutcomeLogger(q, logging.Component(log, "outcomes")); err != nil {
		log.Fatal().Err(err).Msg("subscribe delivery outcomes")
	}

	dispatcher := service.NewDispatcher(campaignRepo, entryRepo, auditRepo, client,
		logging.Component(log, "dispatcher"),
		service.WithSpacing(cfg.Dispatch.SendSpacing),
		service.WithMaxBatch(cfg.Dispatch.BatchSize),
		service.WithOutcomeQueue(q),
	)
	worker := service.NewWorker(dispatcher, cfg.Dispatch.BatchSize, logging.Component(log, "worker"))
	if err := q.Subscribe(queue.TopicDispatchTriggers, worker.HandleTrigger); err != nil {
		log.Fatal().Err(err).Msg("subscribe dispatch triggers")
	}

	scheduler := &service.SchedulerService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: &repository.RecipientRepository{DB: sqlDB},
		TemplateRepo:  &repository.TemplateRepository{DB: sqlDB},
		EntryRepo:     entryRepo,
		SettingsRepo:  settingsRepo,
		Slots:         service.NewSlotScheduler(nil, logging.Component(log, "slots")),
		Queue:         q,
		Log:           logging.Component(log, "scheduler"),
	}

	cronLog := cronLogger{log: logging.Component(log, "cron")}
	j := &jobs{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		worker:    worker,
		scheduler: scheduler,
		settings:  settingsRepo,
		log:       logging.Component(log, "jobs"),
	}
	if err := j.register(ctx, cfg.Dispatch.Interval); err != nil {
		log.Fatal().Err(err).Msg("register cron jobs")
	}

	go worker.Start(ctx)
	j.cron.Start()
	worker.Kick(queue.NewDispatchTrigger("startup", 0))

	log.Info().Dur("interval", cfg.Dispatch.Interval).Int("batch_size", cfg.Dispatch.BatchSize).
		Msg("worker running, waiting for due entries")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	<-j.cron.Stop().Done()
}
