package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/service"
)

type schedulerFixture struct {
	campaigns *MockCampaignRepo
	entries   *MockEntryRepo
	settings  *MockSettingsRepo
	queue     *MockQueue
	svc       *service.SchedulerService
}

func newSchedulerFixture(recipients []model.Recipient, cs ...*model.Campaign) *schedulerFixture {
	f := &schedulerFixture{
		campaigns: NewMockCampaignRepo(cs...),
		entries:   NewMockEntryRepo(),
		settings:  &MockSettingsRepo{},
		queue:     &MockQueue{},
	}
	f.svc = &service.SchedulerService{
		CampaignRepo:  f.campaigns,
		RecipientRepo: &MockRecipientRepo{recipients: recipients},
		TemplateRepo:  &MockTemplateRepo{templates: pool},
		EntryRepo:     f.entries,
		SettingsRepo:  f.settings,
		Slots:         newScheduler(1),
		Queue:         f.queue,
		Now:           func() time.Time { return morning },
		Log:           zerolog.Nop(),
	}
	return f
}

func TestScheduleCampaignPersistsAndTransitions(t *testing.T) {
	f := newSchedulerFixture(makeRecipients(3), dubaiCampaign("09:00", "09:10"))

	res, err := f.svc.ScheduleCampaign(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Scheduled != 3 || res.IntervalSeconds != 200 {
		t.Errorf("unexpected result %+v", res)
	}
	if res.FirstSlot.After(res.LastSlot) || res.LastSlot.After(res.WindowEnd) {
		t.Errorf("slot summary out of order: %+v", res)
	}
	if got := len(f.entries.all()); got != 3 {
		t.Errorf("expected 3 persisted entries, got %d", got)
	}
	if c := f.campaigns.get(1); c.Status != model.CampaignScheduled {
		t.Errorf("status = %s, want scheduled", c.Status)
	}
	if trs := f.queue.topic(queue.TopicDispatchTriggers); len(trs) != 1 {
		t.Errorf("expected one dispatch trigger, got %d", len(trs))
	}
}

func TestScheduleCampaignRefusesActiveCampaigns(t *testing.T) {
	for _, st := range []model.CampaignStatus{model.CampaignScheduled, model.CampaignActive} {
		c := dubaiCampaign("09:00", "09:10")
		c.Status = st
		f := newSchedulerFixture(makeRecipients(3), c)

		_, err := f.svc.ScheduleCampaign(context.Background(), 1)
		if !errors.Is(err, appErrors.ErrAlreadyScheduled) {
			t.Errorf("%s: expected ErrAlreadyScheduled, got %v", st, err)
		}
		if f.entries.createCalls != 0 {
			t.Errorf("%s: expected no writes", st)
		}
	}
}

func TestScheduleCampaignFailuresWriteNothing(t *testing.T) {
	f := newSchedulerFixture(nil, dubaiCampaign("09:00", "09:10"))
	if _, err := f.svc.ScheduleCampaign(context.Background(), 1); !errors.Is(err, appErrors.ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}

	bad := newSchedulerFixture(makeRecipients(2), dubaiCampaign("10:00", "09:00"))
	if _, err := bad.svc.ScheduleCampaign(context.Background(), 1); !errors.Is(err, appErrors.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	for _, fx := range []*schedulerFixture{f, bad} {
		if fx.entries.createCalls != 0 {
			t.Error("expected no entry writes")
		}
		if c := fx.campaigns.get(1); c.Status != model.CampaignDraft {
			t.Errorf("status changed to %s", c.Status)
		}
	}
}

func TestScheduleCampaignNotFound(t *testing.T) {
	f := newSchedulerFixture(makeRecipients(1))
	if _, err := f.svc.ScheduleCampaign(context.Background(), 9); !appErrors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestResetAllowsRescheduling(t *testing.T) {
	f := newSchedulerFixture(makeRecipients(4), dubaiCampaign("09:00", "09:10"))
	ctx := context.Background()

	if _, err := f.svc.ScheduleCampaign(ctx, 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	n, err := f.svc.ResetCampaign(ctx, 1)
	if err != nil || n != 4 {
		t.Fatalf("reset cancelled %d entries, err %v", n, err)
	}
	for _, e := range f.entries.all() {
		if e.Status != model.EntryFailed || e.ErrorMessage != service.ResetReason {
			t.Errorf("entry %d: %s %q", e.ID, e.Status, e.ErrorMessage)
		}
	}
	if c := f.campaigns.get(1); c.Status != model.CampaignDraft {
		t.Errorf("status = %s, want draft", c.Status)
	}
	if _, err := f.svc.ScheduleCampaign(ctx, 1); err != nil {
		t.Fatalf("reschedule after reset: %v", err)
	}
	if got := len(f.entries.all()); got != 8 {
		t.Errorf("expected old entries kept plus 4 new, got %d", got)
	}
}

func TestPausedCampaignWithBacklogNeedsReset(t *testing.T) {
	f := newSchedulerFixture(makeRecipients(3), dubaiCampaign("09:00", "09:10"))
	ctx := context.Background()

	if _, err := f.svc.ScheduleCampaign(ctx, 1); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	_ = f.campaigns.Pause(ctx, 1, service.OutsideWindowReason)

	if _, err := f.svc.ScheduleCampaign(ctx, 1); !errors.Is(err, appErrors.ErrAlreadyScheduled) {
		t.Fatalf("expected ErrAlreadyScheduled, got %v", err)
	}
	perRecipient := map[int]int{}
	for _, e := range f.entries.all() {
		if e.Status == model.EntryPending {
			perRecipient[e.RecipientID]++
		}
	}
	if len(perRecipient) != 3 {
		t.Errorf("expected pending entries for 3 recipients, got %v", perRecipient)
	}
	for id, n := range perRecipient {
		if n != 1 {
			t.Errorf("recipient %d has %d pending entries", id, n)
		}
	}

	// Once the backlog is drained the paused campaign may run again.
	for _, e := range f.entries.all() {
		_ = f.entries.Complete(ctx, e.ID, model.EntryFailed, "outside scheduled window", nil)
	}
	if _, err := f.svc.ScheduleCampaign(ctx, 1); err != nil {
		t.Fatalf("reschedule drained paused campaign: %v", err)
	}
	if got := len(f.entries.all()); got != 6 {
		t.Errorf("expected 6 entries, got %d", got)
	}
}

func TestRunDailyAutoSchedule(t *testing.T) {
	daily := dubaiCampaign("09:00", "09:10")
	daily.ScheduleType = model.ScheduleDaily

	done := dubaiCampaign("09:00", "09:10")
	done.ID = 2
	done.ScheduleType = model.ScheduleDaily
	done.Status = model.CampaignCompleted

	running := dubaiCampaign("09:00", "09:10")
	running.ID = 3
	running.ScheduleType = model.ScheduleDaily
	running.Status = model.CampaignActive

	once := dubaiCampaign("09:00", "09:10")
	once.ID = 4

	f := newSchedulerFixture(makeRecipients(2), daily, done, running, once)
	ctx := context.Background()

	out, err := f.svc.RunDailyAutoSchedule(ctx)
	if err != nil || out.Enabled || len(out.Scheduled) != 0 {
		t.Fatalf("disabled run should do nothing, got %+v %v", out, err)
	}

	s := model.DefaultSettings()
	s.AutoSchedule = true
	f.settings.settings = &s

	out, err = f.svc.RunDailyAutoSchedule(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Scheduled) != 2 || out.Scheduled[0] != 1 || out.Scheduled[1] != 2 {
		t.Errorf("expected campaigns 1 and 2 scheduled, got %v", out.Scheduled)
	}
	if c := f.campaigns.get(4); c.Status != model.CampaignDraft {
		t.Errorf("one-off campaign must not be auto-scheduled, got %s", c.Status)
	}
}
