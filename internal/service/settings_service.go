package service

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
	"github.com/unclebandit/campaign-dispatcher/internal/window"
)

type SettingsService struct {
	Repo repository.SettingsRepositoryInterface
}

func (s *SettingsService) Get(ctx context.Context) (model.SchedulerSettings, error) {
	return s.Repo.Get(ctx)
}

// ValidateSettings normalizes s in place and rejects out-of-range values with
// ErrInvalidSettings.
func ValidateSettings(s *model.SchedulerSettings) error {
	if s.MinIntervalSeconds < model.MinIntervalFloor || s.MinIntervalSeconds > model.MinIntervalCeiling {
		return fmt.Errorf("%w: min_interval_seconds must be between %d and %d, got %d", appErrors.ErrInvalidSettings,
			model.MinIntervalFloor, model.MinIntervalCeiling, s.MinIntervalSeconds)
	}
	s.DefaultTimezone = strings.TrimSpace(s.DefaultTimezone)
	if s.DefaultTimezone == "" {
		s.DefaultTimezone = model.DefaultTimezone
	}
	if _, err := window.LoadLocation(s.DefaultTimezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", appErrors.ErrInvalidSettings, s.DefaultTimezone, err)
	}
	if s.DailyScheduleTime == "" {
		s.DailyScheduleTime = "00:00"
	}
	_, _, norm, err := window.ParseClock(s.DailyScheduleTime)
	if err != nil {
		return fmt.Errorf("%w: daily_schedule_time: %v", appErrors.ErrInvalidSettings, err)
	}
	s.DailyScheduleTime = norm
	return nil
}

// Update validates and stores the settings row.
func (s *SettingsService) Update(ctx context.Context, in model.SchedulerSettings) (model.SchedulerSettings, error) {
	if err := ValidateSettings(&in); err != nil {
		return in, err
	}
	in.ID = 1
	if err := s.Repo.Upsert(ctx, in); err != nil {
		return in, err
	}
	return in, nil
}
