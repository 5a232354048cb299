package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
	"github.com/unclebandit/campaign-dispatcher/internal/window"
)

// settingsReloadEvery is how often the daily job picks up settings changes.
const settingsReloadEvery = 5 * time.Minute

type kicker interface {
	Kick(t queue.DispatchTrigger) bool
}

type autoScheduler interface {
	RunDailyAutoSchedule(ctx context.Context) (*service.AutoScheduleResult, error)
}

type settingsReader interface {
	Get(ctx context.Context) (model.SchedulerSettings, error)
}

// jobs owns the worker's cron entries: the periodic dispatch pass, the daily
// auto-schedule run and the settings reload that keeps the latter current.
type jobs struct {
	cron      *cron.Cron
	worker    kicker
	scheduler autoScheduler
	settings  settingsReader
	log       zerolog.Logger

	mu        sync.Mutex
	dailySpec string
	dailyID   cron.EntryID
}

// dailySpec is the cron spec for the settings' daily time in their timezone.
func dailySpec(s model.SchedulerSettings) (string, error) {
	h, m, _, err := window.ParseClock(s.DailyScheduleTime)
	if err != nil {
		return "", fmt.Errorf("daily_schedule_time: %w", err)
	}
	loc, err := window.LoadLocation(s.DefaultTimezone)
	if err != nil {
		return "", fmt.Errorf("timezone: %w", err)
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", loc.String(), m, h), nil
}

func (j *jobs) register(ctx context.Context, interval time.Duration) error {
	_, err := j.cron.AddFunc("@every "+interval.String(), func() {
		j.worker.Kick(queue.NewDispatchTrigger("interval", 0))
	})
	if err != nil {
		return fmt.Errorf("dispatch job: %w", err)
	}
	if err := j.syncDaily(ctx); err != nil {
		return err
	}
	_, err = j.cron.AddFunc("@every "+settingsReloadEvery.String(), func() {
		if err := j.syncDaily(ctx); err != nil {
			j.log.Error().Err(err).Msg("reload auto-schedule settings")
		}
	})
	return err
}

// syncDaily (re)registers the daily job when the settings' time or timezone
// changed since the last call.
func (j *jobs) syncDaily(ctx context.Context) error {
	s, err := j.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load scheduler settings: %w", err)
	}
	spec, err := dailySpec(s)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if spec == j.dailySpec {
		return nil
	}
	id, err := j.cron.AddFunc(spec, func() { j.runDaily(ctx) })
	if err != nil {
		return fmt.Errorf("daily job %q: %w", spec, err)
	}
	if j.dailyID != 0 {
		j.cron.Remove(j.dailyID)
	}
	j.dailyID, j.dailySpec = id, spec
	j.log.Info().Str("spec", spec).Bool("enabled", s.AutoSchedule).Msg("daily auto-schedule registered")
	return nil
}

func (j *jobs) runDaily(ctx context.Context) {
	res, err := j.scheduler.RunDailyAutoSchedule(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("daily auto-schedule failed")
		return
	}
	if !res.Enabled {
		return
	}
	j.log.Info().Ints("scheduled", res.Scheduled).Int("failed", len(res.Failed)).Msg("daily auto-schedule done")
	if len(res.Scheduled) > 0 {
		j.worker.Kick(queue.NewDispatchTrigger("auto-schedule", 0))
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
