// Package window resolves a campaign's daily send window and guards sends
// against it. Scheduling and dispatch both go through Resolve so the two can
// never disagree about where a window starts or ends.
package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

// Bounds is a window anchored to one local calendar day.
type Bounds struct {
	Start    time.Time // in Location
	End      time.Time // in Location
	Location *time.Location
}

// Length is the window duration.
func (b Bounds) Length() time.Duration { return b.End.Sub(b.Start) }

// Contains reports whether t lies in [Start, End].
func (b Bounds) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

// ParseClock parses "HH:MM" (or "H:MM", or "HH:MM:SS" with the seconds
// ignored) and returns the zero-padded "HH:MM" form.
func ParseClock(s string) (hour, minute int, norm string, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, "", fmt.Errorf("malformed time of day %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, "", fmt.Errorf("malformed hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, 0, "", fmt.Errorf("malformed minute in %q", s)
	}
	return hour, minute, fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// LoadLocation loads an IANA zone, falling back to model.DefaultTimezone when
// name is empty.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = model.DefaultTimezone
	}
	return time.LoadLocation(name)
}

// Resolve anchors cfg to the local calendar day containing now. It fails with
// ErrInvalidWindow when the config is unusable or End is not after Start.
func Resolve(cfg model.ScheduleConfig, now time.Time) (Bounds, error) {
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return Bounds{}, fmt.Errorf("%w: timezone %q: %v", appErrors.ErrInvalidWindow, cfg.Timezone, err)
	}
	sh, sm, _, err := ParseClock(cfg.Start)
	if err != nil {
		return Bounds{}, fmt.Errorf("%w: start: %v", appErrors.ErrInvalidWindow, err)
	}
	eh, em, _, err := ParseClock(cfg.End)
	if err != nil {
		return Bounds{}, fmt.Errorf("%w: end: %v", appErrors.ErrInvalidWindow, err)
	}

	local := now.In(loc)
	y, m, d := local.Date()
	b := Bounds{
		Start:    time.Date(y, m, d, sh, sm, 0, 0, loc),
		End:      time.Date(y, m, d, eh, em, 0, 0, loc),
		Location: loc,
	}
	if !b.End.After(b.Start) {
		return Bounds{}, fmt.Errorf("%w: end %s is not after start %s", appErrors.ErrInvalidWindow, cfg.End, cfg.Start)
	}
	return b, nil
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// AllowsDay reports whether the config permits sending on the local weekday
// of now. An empty DaysOfWeek list allows every day.
func AllowsDay(cfg model.ScheduleConfig, now time.Time) (bool, error) {
	if len(cfg.DaysOfWeek) == 0 {
		return true, nil
	}
	loc, err := LoadLocation(cfg.Timezone)
	if err != nil {
		return false, err
	}
	today := now.In(loc).Weekday()
	for _, d := range cfg.DaysOfWeek {
		key := strings.ToLower(strings.TrimSpace(d))
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdays[key]
		if !ok {
			return false, fmt.Errorf("unknown weekday %q", d)
		}
		if wd == today {
			return true, nil
		}
	}
	return false, nil
}

// IsWithinWindow reports whether now falls inside the campaign's window in
// the campaign's timezone, comparing zero-padded "HH:MM" local times. Missing
// or malformed schedule data yields false.
func IsWithinWindow(c *model.Campaign, now time.Time) bool {
	if c == nil {
		return false
	}
	b, err := Resolve(c.Schedule, now)
	if err != nil {
		return false
	}
	if ok, err := AllowsDay(c.Schedule, now); err != nil || !ok {
		return false
	}
	local := now.In(b.Location).Format("15:04")
	return local >= b.Start.Format("15:04") && local <= b.End.Format("15:04")
}
