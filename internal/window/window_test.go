package window

import (
	"errors"
	"testing"
	"time"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

func dubai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Dubai")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func campaign(start, end string) *model.Campaign {
	return &model.Campaign{
		ID:       1,
		Schedule: model.ScheduleConfig{Start: start, End: end, Timezone: "Asia/Dubai"},
	}
}

func TestParseClock(t *testing.T) {
	good := map[string]string{"09:00": "09:00", "9:05": "09:05", "23:59": "23:59", "07:30:15": "07:30"}
	for in, want := range good {
		_, _, norm, err := ParseClock(in)
		if err != nil || norm != want {
			t.Errorf("ParseClock(%q) = %q, %v; want %q", in, norm, err, want)
		}
	}
	for _, in := range []string{"", "9", "24:00", "09:60", "ab:cd", "09:5"} {
		if _, _, _, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q) expected error", in)
		}
	}
}

func TestResolveAnchorsToLocalDay(t *testing.T) {
	loc := dubai(t)
	// 2026-03-10 22:30 UTC is 2026-03-11 02:30 in Dubai.
	now := time.Date(2026, 3, 10, 22, 30, 0, 0, time.UTC)
	b, err := Resolve(model.ScheduleConfig{Start: "09:00", End: "09:10", Timezone: "Asia/Dubai"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 11, 9, 0, 0, 0, loc)
	if !b.Start.Equal(want) {
		t.Errorf("start = %s, want %s", b.Start, want)
	}
	if b.Start.UTC().Hour() != 5 {
		t.Errorf("expected 05:00 UTC, got %s", b.Start.UTC())
	}
	if b.Length() != 10*time.Minute {
		t.Errorf("length = %s", b.Length())
	}
}

func TestResolveRejectsBadWindows(t *testing.T) {
	now := time.Now()
	cases := []model.ScheduleConfig{
		{Start: "10:00", End: "09:00", Timezone: "Asia/Dubai"},
		{Start: "09:00", End: "09:00", Timezone: "Asia/Dubai"},
		{Start: "nope", End: "09:00", Timezone: "Asia/Dubai"},
		{Start: "09:00", End: "10:00", Timezone: "Mars/Olympus"},
	}
	for _, c := range cases {
		if _, err := Resolve(c, now); !errors.Is(err, appErrors.ErrInvalidWindow) {
			t.Errorf("Resolve(%+v) err = %v, want ErrInvalidWindow", c, err)
		}
	}
}

func TestIsWithinWindow(t *testing.T) {
	loc := dubai(t)
	c := campaign("09:00", "09:10")
	day := func(h, m, s int) time.Time { return time.Date(2026, 3, 11, h, m, s, 0, loc) }

	tests := []struct {
		at   time.Time
		want bool
	}{
		{day(8, 59, 59), false},
		{day(9, 0, 0), true},
		{day(9, 5, 0), true},
		{day(9, 10, 45), true}, // same HH:MM as the end
		{day(9, 11, 0), false},
		{day(9, 5, 0).UTC(), true},
	}
	for _, tc := range tests {
		if got := IsWithinWindow(c, tc.at); got != tc.want {
			t.Errorf("IsWithinWindow(%s) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestIsWithinWindowConservativeOnBadData(t *testing.T) {
	now := time.Now()
	if IsWithinWindow(nil, now) {
		t.Error("nil campaign must not be inside")
	}
	if IsWithinWindow(&model.Campaign{}, now) {
		t.Error("missing schedule must not be inside")
	}
	if IsWithinWindow(campaign("xx", "09:00"), now) {
		t.Error("malformed schedule must not be inside")
	}
}

func TestIsWithinWindowDaysOfWeek(t *testing.T) {
	loc := dubai(t)
	c := campaign("00:00", "23:59")
	c.Schedule.DaysOfWeek = []string{"Mon", "wednesday"}

	wed := time.Date(2026, 3, 11, 12, 0, 0, 0, loc) // Wednesday
	thu := wed.Add(24 * time.Hour)
	if !IsWithinWindow(c, wed) {
		t.Error("wednesday should be allowed")
	}
	if IsWithinWindow(c, thu) {
		t.Error("thursday should not be allowed")
	}

	c.Schedule.DaysOfWeek = []string{"funday"}
	if IsWithinWindow(c, wed) {
		t.Error("unknown weekday must be treated as outside")
	}
}
