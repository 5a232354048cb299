package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
)

const ResetReason = "campaign reset"

// SchedulerService loads a campaign's inputs, runs the SlotScheduler and
// persists the result.
type SchedulerService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	EntryRepo     repository.PendingEntryRepositoryInterface
	SettingsRepo  repository.SettingsRepositoryInterface
	Slots         *SlotScheduler
	Queue         queue.Queue // optional

	Now func() time.Time
	Log zerolog.Logger
}

type ScheduleResult struct {
	CampaignID      int       `json:"campaign_id"`
	Scheduled       int       `json:"scheduled"`
	Skipped         int       `json:"skipped"`
	IntervalSeconds float64   `json:"interval_seconds"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	FirstSlot       time.Time `json:"first_slot"`
	LastSlot        time.Time `json:"last_slot"`
}

func (s *SchedulerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ScheduleCampaign generates today's entries for one campaign and moves it to
// scheduled. Nothing is written when any precondition fails.
func (s *SchedulerService) ScheduleCampaign(ctx context.Context, campaignID int) (*ScheduleResult, error) {
	c, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.Schedulable() {
		return nil, fmt.Errorf("%w: campaign %d is %s", appErrors.ErrAlreadyScheduled, c.ID, c.Status)
	}
	// A pause leaves its backlog pending, so a second run would double it.
	if c.Status == model.CampaignPaused {
		open, err := s.EntryRepo.CountOpen(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("count open entries: %w", err)
		}
		if open > 0 {
			return nil, fmt.Errorf("%w: paused campaign %d still has %d open entries, reset it first",
				appErrors.ErrAlreadyScheduled, c.ID, open)
		}
	}

	settings, err := s.SettingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scheduler settings: %w", err)
	}
	recipients, err := s.RecipientRepo.ListByAudience(ctx, c.AudienceFilter)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	templates, err := s.TemplateRepo.ListByPool(ctx, c.TemplatePoolID)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	plan, err := s.Slots.Schedule(c, recipients, templates, settings, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.EntryRepo.CreateBatch(ctx, plan.Entries); err != nil {
		return nil, fmt.Errorf("persist entries: %w", err)
	}
	ok, err := s.CampaignRepo.TransitionStatus(ctx, c.ID, model.CampaignScheduled,
		model.CampaignDraft, model.CampaignPaused, model.CampaignCompleted)
	if err != nil {
		return nil, fmt.Errorf("mark campaign scheduled: %w", err)
	}
	if !ok {
		s.Log.Warn().Int("campaign_id", c.ID).Msg("campaign status changed while scheduling")
	}

	res := &ScheduleResult{
		CampaignID:      c.ID,
		Scheduled:       len(plan.Entries),
		Skipped:         plan.Skipped,
		IntervalSeconds: plan.Interval.Seconds(),
		WindowStart:     plan.Window.Start.UTC(),
		WindowEnd:       plan.Window.End.UTC(),
		FirstSlot:       plan.Entries[0].ScheduledTime,
		LastSlot:        plan.Entries[len(plan.Entries)-1].ScheduledTime,
	}
	for _, e := range plan.Entries {
		if e.ScheduledTime.Before(res.FirstSlot) {
			res.FirstSlot = e.ScheduledTime
		}
		if e.ScheduledTime.After(res.LastSlot) {
			res.LastSlot = e.ScheduledTime
		}
	}

	s.Log.Info().Int("campaign_id", c.ID).Int("scheduled", res.Scheduled).Int("skipped", res.Skipped).
		Float64("interval_s", res.IntervalSeconds).Time("first", res.FirstSlot).Time("last", res.LastSlot).
		Msg("campaign scheduled")

	if s.Queue != nil {
		if err := s.Queue.Publish(queue.TopicDispatchTriggers, queue.NewDispatchTrigger("scheduled", c.ID)); err != nil {
			s.Log.Debug().Err(err).Msg("dispatch trigger not published")
		}
	}
	return res, nil
}

// ResetCampaign fails the campaign's remaining pending entries and returns it
// to draft. Entries are never reopened or deleted.
func (s *SchedulerService) ResetCampaign(ctx context.Context, campaignID int) (int, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return 0, err
	}
	n, err := s.EntryRepo.CancelPending(ctx, campaignID, ResetReason)
	if err != nil {
		return 0, fmt.Errorf("cancel pending entries: %w", err)
	}
	if _, err := s.CampaignRepo.TransitionStatus(ctx, campaignID, model.CampaignDraft); err != nil {
		return n, fmt.Errorf("reset campaign status: %w", err)
	}
	s.Log.Info().Int("campaign_id", campaignID).Int("cancelled", n).Msg("campaign reset")
	return n, nil
}

// AutoScheduleResult summarizes one daily auto-schedule run.
type AutoScheduleResult struct {
	Enabled   bool             `json:"enabled"`
	Scheduled []int            `json:"scheduled"`
	Failed    map[int]string   `json:"failed,omitempty"`
	Results   []ScheduleResult `json:"results,omitempty"`
}

// RunDailyAutoSchedule schedules every daily campaign that is draft or
// completed, when auto-scheduling is enabled. One campaign failing does not
// stop the others.
func (s *SchedulerService) RunDailyAutoSchedule(ctx context.Context) (*AutoScheduleResult, error) {
	settings, err := s.SettingsRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scheduler settings: %w", err)
	}
	out := &AutoScheduleResult{Enabled: settings.AutoSchedule, Scheduled: []int{}}
	if !settings.AutoSchedule {
		s.Log.Debug().Msg("auto-schedule disabled")
		return out, nil
	}

	campaigns, err := s.CampaignRepo.ListByScheduleType(ctx, model.ScheduleDaily,
		model.CampaignDraft, model.CampaignCompleted)
	if err != nil {
		return nil, fmt.Errorf("list daily campaigns: %w", err)
	}
	for _, c := range campaigns {
		res, err := s.ScheduleCampaign(ctx, c.ID)
		if err != nil {
			if out.Failed == nil {
				out.Failed = map[int]string{}
			}
			out.Failed[c.ID] = err.Error()
			s.Log.Warn().Err(err).Int("campaign_id", c.ID).Msg("auto-schedule failed")
			continue
		}
		out.Scheduled = append(out.Scheduled, c.ID)
		out.Results = append(out.Results, *res)
	}
	s.Log.Info().Int("scheduled", len(out.Scheduled)).Int("failed", len(out.Failed)).Msg("daily auto-schedule finished")
	return out, nil
}
