package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type SettingsRepositoryInterface interface {
	Get(ctx context.Context) (model.SchedulerSettings, error)
	Upsert(ctx context.Context, s model.SchedulerSettings) error
}

// SettingsRepository holds the single scheduler_settings row (id 1).
type SettingsRepository struct {
	DB *sql.DB
}

const settingsRowID = 1

// Get returns model.DefaultSettings when the row has not been written yet.
func (r *SettingsRepository) Get(ctx context.Context) (model.SchedulerSettings, error) {
	query := `
        SELECT id, min_interval_seconds, timezone, auto_schedule_enabled, daily_schedule_time
        FROM scheduler_settings WHERE id = $1
    `
	var s model.SchedulerSettings
	err := r.DB.QueryRowContext(ctx, query, settingsRowID).Scan(
		&s.ID, &s.MinIntervalSeconds, &s.DefaultTimezone, &s.AutoSchedule, &s.DailyScheduleTime)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return s, err
	}
	return s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s model.SchedulerSettings) error {
	query := `
        INSERT INTO scheduler_settings (id, min_interval_seconds, timezone, auto_schedule_enabled, daily_schedule_time)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (id) DO UPDATE SET
            min_interval_seconds = EXCLUDED.min_interval_seconds,
            timezone = EXCLUDED.timezone,
            auto_schedule_enabled = EXCLUDED.auto_schedule_enabled,
            daily_schedule_time = EXCLUDED.daily_schedule_time
    `
	_, err := r.DB.ExecContext(ctx, query, settingsRowID, s.MinIntervalSeconds, s.DefaultTimezone,
		s.AutoSchedule, s.DailyScheduleTime)
	return err
}

var _ SettingsRepositoryInterface = (*SettingsRepository)(nil)
