package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unclebandit/campaign-dispatcher/internal/delivery"
	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
)

const DefaultTestSpacing = time.Second

var errNoAddress = errors.New("recipient has no address")

// TestSender sends a template straight to an audience, bypassing scheduling.
// Each send is audited with the test flag and no campaign.
type TestSender struct {
	RecipientRepo repository.RecipientRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	AuditRepo     repository.AuditLogRepositoryInterface
	Sender        delivery.Sender

	mu      sync.Mutex
	rng     *rand.Rand
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewTestSender(
	recipients repository.RecipientRepositoryInterface,
	templates repository.TemplateRepositoryInterface,
	audit repository.AuditLogRepositoryInterface,
	sender delivery.Sender,
	rng *rand.Rand,
	spacing time.Duration,
	log zerolog.Logger,
) *TestSender {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	return &TestSender{
		RecipientRepo: recipients,
		TemplateRepo:  templates,
		AuditRepo:     audit,
		Sender:        sender,
		rng:           rng,
		limiter:       rate.NewLimiter(limit, 1),
		log:           log,
	}
}

type TestSendOutcome struct {
	RecipientID int    `json:"recipient_id"`
	Address     string `json:"address"`
	TemplateID  int    `json:"template_id"`
	Success     bool   `json:"success"`
	MessageID   string `json:"message_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

type TestSendResult struct {
	Total    int               `json:"total"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Outcomes []TestSendOutcome `json:"outcomes"`
}

func (t *TestSender) pick(templates []model.Template) model.Template {
	t.mu.Lock()
	defer t.mu.Unlock()
	return templates[t.rng.Intn(len(templates))]
}

// Send delivers one randomly chosen, rendered template to every recipient in
// the audience, one at a time.
func (t *TestSender) Send(ctx context.Context, audience string, poolID int) (*TestSendResult, error) {
	recipients, err := t.RecipientRepo.ListByAudience(ctx, audience)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.ErrNoRecipients
	}
	templates, err := t.TemplateRepo.ListByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, appErrors.ErrNoTemplates
	}

	res := &TestSendResult{Outcomes: make([]TestSendOutcome, 0, len(recipients))}
	for _, r := range dedupeRecipients(recipients) {
		tpl := t.pick(templates)
		body := RenderForRecipient(tpl.Body, r)
		out := TestSendOutcome{RecipientID: r.ID, Address: r.Address, TemplateID: tpl.ID}
		res.Total++

		var result delivery.Result
		if strings.TrimSpace(r.Address) == "" {
			result = delivery.Result{Err: errNoAddress}
		} else if err := t.limiter.Wait(ctx); err != nil {
			return res, err
		} else {
			result = t.Sender.Send(ctx, r.Address, body)
		}

		out.Success, out.MessageID, out.Error = result.Success, result.MessageID, result.Error()
		status := model.EntryFailed
		if result.Success {
			status = model.EntrySent
			res.Sent++
		} else {
			res.Failed++
		}
		res.Outcomes = append(res.Outcomes, out)

		entry := &model.AuditLogEntry{
			RecipientID:       r.ID,
			TemplateID:        tpl.ID,
			ExternalMessageID: result.MessageID,
			Status:            status,
			ErrorMessage:      result.Error(),
			RecipientAddress:  r.Address,
			Body:              body,
			IsTest:            true,
			SentTime:          time.Now().UTC(),
		}
		if err := t.AuditRepo.Append(ctx, entry); err != nil {
			t.log.Error().Err(err).Int("recipient_id", r.ID).Msg("audit log write failed")
		}
	}
	t.log.Info().Str("audience", audience).Int("pool_id", poolID).Int("sent", res.Sent).Int("failed", res.Failed).
		Msg("test messages sent")
	return res, nil
}
