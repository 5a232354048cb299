package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/campaign-dispatcher/internal/delivery"
	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/logging"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/queue"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
	"github.com/unclebandit/campaign-dispatcher/internal/window"
)

const (
	MaxDispatchBatch     = 10
	DefaultSendSpacing   = 2 * time.Second
	OutsideWindowReason  = "outside scheduled window"
	campaignMissingError = "campaign not found"
)

// DispatchResult aggregates one pass. Processed counts entries this pass
// carried to a terminal state; Skipped counts entries another run claimed
// first.
type DispatchResult struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type entryOutcome int

const (
	outcomeSkipped entryOutcome = iota
	outcomeSent
	outcomeFailed
)

// Dispatcher is the dispatch loop. Each pass is sequential; concurrent passes
// are safe because every entry is claimed before anything is sent.
type Dispatcher struct {
	CampaignRepo repository.CampaignRepositoryInterface
	EntryRepo    repository.PendingEntryRepositoryInterface
	AuditRepo    repository.AuditLogRepositoryInterface
	Sender       delivery.Sender

	queue    queue.Queue
	limiter  *rate.Limiter
	maxBatch int
	now      func() time.Time
	log      zerolog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithSpacing sets the minimum gap between consecutive sends. Zero disables
// pacing.
func WithSpacing(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		if d <= 0 {
			x.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		x.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxBatch caps ProcessDue. Values above MaxDispatchBatch are ignored.
func WithMaxBatch(n int) DispatcherOption {
	return func(x *Dispatcher) {
		if n > 0 && n <= MaxDispatchBatch {
			x.maxBatch = n
		}
	}
}

func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(x *Dispatcher) { x.now = now }
}

// WithOutcomeQueue publishes an OutcomeEvent per terminal entry.
func WithOutcomeQueue(q queue.Queue) DispatcherOption {
	return func(x *Dispatcher) { x.queue = q }
}

func NewDispatcher(
	campaigns repository.CampaignRepositoryInterface,
	entries repository.PendingEntryRepositoryInterface,
	audit repository.AuditLogRepositoryInterface,
	sender delivery.Sender,
	log zerolog.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		CampaignRepo: campaigns,
		EntryRepo:    entries,
		AuditRepo:    audit,
		Sender:       sender,
		limiter:      rate.NewLimiter(rate.Every(DefaultSendSpacing), 1),
		maxBatch:     MaxDispatchBatch,
		now:          time.Now,
		log:          log,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ProcessNow handles at most one due entry.
func (d *Dispatcher) ProcessNow(ctx context.Context) (DispatchResult, error) {
	return d.run(ctx, 1, "process-now")
}

// ProcessDue handles up to batchSize due entries, capped at the configured
// maximum. A non-positive batchSize means the maximum.
func (d *Dispatcher) ProcessDue(ctx context.Context, batchSize int) (DispatchResult, error) {
	if batchSize <= 0 || batchSize > d.maxBatch {
		batchSize = d.maxBatch
	}
	return d.run(ctx, batchSize, "process-due")
}

func (d *Dispatcher) run(ctx context.Context, batchSize int, mode string) (DispatchResult, error) {
	// Claimed entries must reach a terminal state, so a pass ignores caller
	// cancellation once it starts.
	ctx = context.WithoutCancel(ctx)

	res := DispatchResult{RunID: uuid.NewString()}
	log := d.log.With().Str("run_id", res.RunID).Str("mode", mode).Logger()
	start := time.Now()

	due, err := d.EntryRepo.FetchDue(ctx, d.now(), batchSize)
	if err != nil {
		return res, fmt.Errorf("fetch due entries: %w", err)
	}
	if len(due) == 0 {
		log.Debug().Msg("no due entries")
		return res, nil
	}

	touched := map[int]struct{}{}
	for _, e := range due {
		switch d.processEntry(ctx, e, res.RunID, log) {
		case outcomeSent:
			res.Sent++
		case outcomeFailed:
			res.Failed++
		default:
			res.Skipped++
			continue
		}
		res.Processed++
		touched[e.CampaignID] = struct{}{}
	}

	for id := range touched {
		d.completeIfDrained(ctx, id, log)
	}

	log.Info().Int("fetched", len(due)).Int("sent", res.Sent).Int("failed", res.Failed).
		Int("skipped", res.Skipped).Dur("took", logging.Since(start)).Msg("dispatch pass finished")
	return res, nil
}

// processEntry is the per-entry policy shared by both trigger modes.
func (d *Dispatcher) processEntry(ctx context.Context, e *model.PendingEntry, runID string, log zerolog.Logger) entryOutcome {
	log = log.With().Int("entry_id", e.ID).Int("campaign_id", e.CampaignID).Logger()

	won, err := d.EntryRepo.Claim(ctx, e.ID)
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		return outcomeSkipped
	}
	if !won {
		log.Debug().Msg("entry claimed by another run")
		return outcomeSkipped
	}

	campaign, err := d.CampaignRepo.GetByID(ctx, e.CampaignID)
	if err != nil {
		reason := err.Error()
		if appErrors.IsNotFound(err) {
			reason = campaignMissingError
		}
		log.Warn().Err(err).Msg("cannot resolve campaign")
		d.finish(ctx, e, nil, delivery.Result{Err: errors.New(reason)}, runID, log)
		return outcomeFailed
	}

	if !window.IsWithinWindow(campaign, d.now()) {
		if err := d.CampaignRepo.Pause(ctx, campaign.ID, OutsideWindowReason); err != nil {
			log.Error().Err(err).Msg("pause campaign failed")
		}
		log.Warn().Str("window", campaign.Schedule.Start+"-"+campaign.Schedule.End).
			Str("timezone", campaign.Schedule.Timezone).Msg("outside window, campaign paused")
		d.finish(ctx, e, campaign, delivery.Result{Err: appErrors.ErrOutsideWindow}, runID, log)
		return outcomeFailed
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.finish(ctx, e, campaign, delivery.Result{Err: err}, runID, log)
		return outcomeFailed
	}
	result := d.Sender.Send(ctx, e.RecipientAddress, e.Body)
	d.finish(ctx, e, campaign, result, runID, log)
	if !result.Success {
		return outcomeFailed
	}
	return outcomeSent
}

// finish records the terminal status, the audit entry and the outcome event.
// Write failures are logged, never returned.
func (d *Dispatcher) finish(ctx context.Context, e *model.PendingEntry, c *model.Campaign, r delivery.Result, runID string, log zerolog.Logger) {
	now := d.now().UTC()
	status := model.EntryFailed
	var sentAt *time.Time
	if r.Success {
		status = model.EntrySent
		sentAt = &now
	}

	if err := d.EntryRepo.Complete(ctx, e.ID, status, r.Error(), sentAt); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("record entry status failed")
	}
	e.Status, e.ErrorMessage, e.SentTime = status, r.Error(), sentAt

	if r.Success && c != nil {
		if err := d.CampaignRepo.IncrementMessagesSent(ctx, c.ID); err != nil {
			log.Error().Err(err).Msg("increment messages_sent failed")
		}
		if c.Status == model.CampaignScheduled {
			if _, err := d.CampaignRepo.TransitionStatus(ctx, c.ID, model.CampaignActive, model.CampaignScheduled); err != nil {
				log.Error().Err(err).Msg("activate campaign failed")
			}
		}
	}

	campaignID := e.CampaignID
	audit := &model.AuditLogEntry{
		CampaignID:        &campaignID,
		RecipientID:       e.RecipientID,
		TemplateID:        e.TemplateID,
		ExternalMessageID: r.MessageID,
		Status:            status,
		ErrorMessage:      r.Error(),
		RecipientAddress:  e.RecipientAddress,
		Body:              e.Body,
		SentTime:          now,
	}
	if err := d.AuditRepo.Append(ctx, audit); err != nil {
		log.Error().Err(err).Msg("audit log write failed")
	}

	if r.Success {
		log.Info().Str("to", e.RecipientAddress).Str("message_id", r.MessageID).Int("attempts", r.Attempts).Msg("message sent")
	} else {
		log.Warn().Str("to", e.RecipientAddress).Str("error", r.Error()).Int("attempts", r.Attempts).Msg("message failed")
	}

	if d.queue == nil {
		return
	}
	ev := queue.OutcomeEvent{
		ID:                uuid.NewString(),
		RunID:             runID,
		EntryID:           e.ID,
		CampaignID:        e.CampaignID,
		RecipientID:       e.RecipientID,
		Status:            string(status),
		ExternalMessageID: r.MessageID,
		Error:             r.Error(),
		At:                now,
	}
	if err := d.queue.Publish(queue.TopicDeliveryOutcomes, ev); err != nil {
		log.Debug().Err(err).Msg("outcome event not published")
	}
}

// completeIfDrained closes a scheduled or active campaign once it has no open
// entries left.
func (d *Dispatcher) completeIfDrained(ctx context.Context, campaignID int, log zerolog.Logger) {
	open, err := d.EntryRepo.CountOpen(ctx, campaignID)
	if err != nil {
		log.Error().Err(err).Int("campaign_id", campaignID).Msg("count open entries failed")
		return
	}
	if open > 0 {
		return
	}
	ok, err := d.CampaignRepo.TransitionStatus(ctx, campaignID, model.CampaignCompleted,
		model.CampaignScheduled, model.CampaignActive)
	if err != nil {
		log.Error().Err(err).Int("campaign_id", campaignID).Msg("complete campaign failed")
		return
	}
	if ok {
		log.Info().Int("campaign_id", campaignID).Msg("campaign completed")
	}
}
