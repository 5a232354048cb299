// internal/model/settings.go
package model

const (
	MinIntervalFloor   = 10
	MinIntervalCeiling = 300
)

type SchedulerSettings struct {
	ID                 int    `db:"id" json:"id"`
	MinIntervalSeconds int    `db:"min_interval_seconds" json:"min_interval_seconds"`
	DefaultTimezone    string `db:"timezone" json:"timezone"`
	AutoSchedule       bool   `db:"auto_schedule_enabled" json:"auto_schedule_enabled"`
	DailyScheduleTime  string `db:"daily_schedule_time" json:"daily_schedule_time"`
}

// DefaultSettings is used when no settings row exists yet.
func DefaultSettings() SchedulerSettings {
	return SchedulerSettings{
		ID:                 1,
		MinIntervalSeconds: MinIntervalFloor,
		DefaultTimezone:    DefaultTimezone,
		AutoSchedule:       false,
		DailyScheduleTime:  "00:00",
	}
}
