package service

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/window"
)

// DefaultJitter is the jitter amplitude as a fraction of the slot interval.
const DefaultJitter = 0.25

// SlotScheduler spreads one campaign's recipients across its daily window.
// It is pure: it reads nothing and writes nothing.
type SlotScheduler struct {
	// Jitter is the symmetric jitter amplitude as a fraction of the interval.
	// Zero disables jitter.
	Jitter float64

	mu  sync.Mutex
	rng *rand.Rand
	log zerolog.Logger
}

// NewSlotScheduler uses rng for template choice and jitter. A nil rng is
// seeded from the clock.
func NewSlotScheduler(rng *rand.Rand, log zerolog.Logger) *SlotScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SlotScheduler{Jitter: DefaultJitter, rng: rng, log: log}
}

// Plan is the output of one scheduling run.
type Plan struct {
	Entries  []*model.PendingEntry
	Window   window.Bounds
	Interval time.Duration
	Skipped  int
}

// Schedule computes one pending entry per distinct recipient. Recipient order
// is preserved; the i-th recipient gets base offset i*interval where interval
// is max(minInterval, window/N), plus jitter. Consecutive slots stay at least
// minInterval apart and never land after the window end, so an oversized
// audience piles up on the end instant.
func (s *SlotScheduler) Schedule(c *model.Campaign, recipients []model.Recipient, templates []model.Template,
	settings model.SchedulerSettings, now time.Time) (*Plan, error) {

	if len(recipients) == 0 {
		return nil, appErrors.ErrNoRecipients
	}
	if len(templates) == 0 {
		return nil, appErrors.ErrNoTemplates
	}

	ok, err := window.AllowsDay(c.Schedule, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrInvalidWindow, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: today is not a scheduled day", appErrors.ErrInvalidWindow)
	}
	bounds, err := window.Resolve(c.Schedule, now)
	if err != nil {
		return nil, err
	}

	unique := dedupeRecipients(recipients)
	n := len(unique)

	minInterval := settings.MinIntervalSeconds
	if minInterval < model.MinIntervalFloor {
		minInterval = model.MinIntervalFloor
	}
	intervalSec := math.Max(float64(minInterval), bounds.Length().Seconds()/float64(n))

	if now.After(bounds.End) {
		s.log.Warn().Int("campaign_id", c.ID).Time("window_end", bounds.End).
			Msg("window already elapsed today, entries will fail the dispatch window check")
	}

	plan := &Plan{
		Entries:  make([]*model.PendingEntry, 0, n),
		Window:   bounds,
		Interval: time.Duration(intervalSec * float64(time.Second)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := math.Inf(-1)
	for i, r := range unique {
		tpl := templates[s.rng.Intn(len(templates))]
		offset := float64(i)*intervalSec + (s.rng.Float64()*2-1)*intervalSec*s.Jitter
		if offset < 0 {
			offset = 0
		}
		// Jitter may not pull a slot closer than minInterval to the previous one.
		if floor := prev + float64(minInterval); offset < floor {
			offset = floor
		}

		body := RenderForRecipient(tpl.Body, r)
		if strings.TrimSpace(body) == "" || strings.TrimSpace(r.Address) == "" {
			s.log.Warn().Int("campaign_id", c.ID).Int("recipient_id", r.ID).Int("template_id", tpl.ID).
				Msg("skipping recipient: no usable template body or address")
			plan.Skipped++
			continue
		}

		slot := bounds.Start.Add(time.Duration(offset * float64(time.Second)))
		if slot.After(bounds.End) {
			slot = bounds.End
		}

		prev = offset
		plan.Entries = append(plan.Entries, &model.PendingEntry{
			CampaignID:    c.ID,
			RecipientID:   r.ID,
			TemplateID:    tpl.ID,
			Body:          body,
			ScheduledTime: slot.UTC(),
			Status:        model.EntryPending,
		})
	}

	if len(plan.Entries) == 0 {
		return nil, fmt.Errorf("%w: all %d recipients were skipped", appErrors.ErrNoRecipients, n)
	}
	return plan, nil
}

// dedupeRecipients keeps the first occurrence of each recipient ID.
func dedupeRecipients(in []model.Recipient) []model.Recipient {
	seen := make(map[int]struct{}, len(in))
	out := make([]model.Recipient, 0, len(in))
	for _, r := range in {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
