package service_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/delivery"
	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

// --- Mock Campaign Repository ---

type MockCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
	nextID    int
}

func NewMockCampaignRepo(cs ...*model.Campaign) *MockCampaignRepo {
	m := &MockCampaignRepo{campaigns: map[int]*model.Campaign{}, nextID: 100}
	for _, c := range cs {
		m.campaigns[c.ID] = c
	}
	return m
}

func (m *MockCampaignRepo) Create(_ context.Context, c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *MockCampaignRepo) GetByID(_ context.Context, id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *MockCampaignRepo) ListCampaigns(_ context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Campaign
	for _, c := range m.campaigns {
		if status == "" || string(c.Status) == status {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *MockCampaignRepo) ListByScheduleType(_ context.Context, scheduleType string, statuses ...model.CampaignStatus) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Campaign
	for _, c := range m.campaigns {
		if c.ScheduleType == scheduleType && hasStatus(c.Status, statuses) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockCampaignRepo) TransitionStatus(_ context.Context, id int, to model.CampaignStatus, from ...model.CampaignStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return false, nil
	}
	if len(from) > 0 && !hasStatus(c.Status, from) {
		return false, nil
	}
	c.Status = to
	c.PauseReason = ""
	return true, nil
}

func (m *MockCampaignRepo) Pause(_ context.Context, id int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok && hasStatus(c.Status, model.PausableStatuses) {
		c.Status = model.CampaignPaused
		c.PauseReason = reason
	}
	return nil
}

func (m *MockCampaignRepo) IncrementMessagesSent(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.campaigns[id]; ok {
		c.MessagesSent++
	}
	return nil
}

func (m *MockCampaignRepo) get(id int) model.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func hasStatus(s model.CampaignStatus, in []model.CampaignStatus) bool {
	for _, x := range in {
		if x == s {
			return true
		}
	}
	return false
}

// --- Mock Recipient / Template Repositories ---

type MockRecipientRepo struct {
	recipients []model.Recipient
}

func (m *MockRecipientRepo) GetByID(_ context.Context, id int) (*model.Recipient, error) {
	for _, r := range m.recipients {
		if r.ID == id {
			rc := r
			return &rc, nil
		}
	}
	return nil, nil
}

func (m *MockRecipientRepo) ListByAudience(_ context.Context, filter string) ([]model.Recipient, error) {
	out := []model.Recipient{}
	for _, r := range m.recipients {
		if filter == "" || filter == model.AudienceAll || r.Tag == filter {
			out = append(out, r)
		}
	}
	return out, nil
}

type MockTemplateRepo struct {
	templates []model.Template
}

func (m *MockTemplateRepo) ListByPool(_ context.Context, poolID int) ([]model.Template, error) {
	out := []model.Template{}
	for _, t := range m.templates {
		if t.PoolID == poolID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- Mock Pending Entry Repository ---

type MockEntryRepo struct {
	mu      sync.Mutex
	entries map[int]*model.PendingEntry
	nextID  int

	// claimAlways makes Claim succeed without checking the status, which is
	// what a plain fetch-then-update store does.
	claimAlways bool
	// onFetch runs after FetchDue has read its rows.
	onFetch func()

	createCalls int
}

func NewMockEntryRepo() *MockEntryRepo {
	return &MockEntryRepo{entries: map[int]*model.PendingEntry{}}
}

func (m *MockEntryRepo) CreateBatch(_ context.Context, entries []*model.PendingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		cp := *e
		m.entries[e.ID] = &cp
	}
	return nil
}

// add stores a due entry directly.
func (m *MockEntryRepo) add(e model.PendingEntry) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	if e.Status == "" {
		e.Status = model.EntryPending
	}
	m.entries[e.ID] = &e
	return e.ID
}

func (m *MockEntryRepo) FetchDue(_ context.Context, now time.Time, limit int) ([]*model.PendingEntry, error) {
	m.mu.Lock()
	var due []*model.PendingEntry
	for _, e := range m.entries {
		if e.Status == model.EntryPending && !e.ScheduledTime.After(now) {
			cp := *e
			due = append(due, &cp)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledTime.Equal(due[j].ScheduledTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	if m.onFetch != nil {
		m.onFetch()
	}
	return due, nil
}

func (m *MockEntryRepo) Claim(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return false, nil
	}
	if m.claimAlways {
		e.Status = model.EntryInFlight
		return true, nil
	}
	if e.Status != model.EntryPending {
		return false, nil
	}
	e.Status = model.EntryInFlight
	return true, nil
}

func (m *MockEntryRepo) Complete(_ context.Context, id int, status model.EntryStatus, errMsg string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return errors.New("no such entry")
	}
	e.Status, e.ErrorMessage, e.SentTime = status, errMsg, sentAt
	return nil
}

func (m *MockEntryRepo) CountOpen(_ context.Context, campaignID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.CampaignID == campaignID && (e.Status == model.EntryPending || e.Status == model.EntryInFlight) {
			n++
		}
	}
	return n, nil
}

func (m *MockEntryRepo) CancelPending(_ context.Context, campaignID int, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.CampaignID == campaignID && e.Status == model.EntryPending {
			e.Status, e.ErrorMessage = model.EntryFailed, reason
			n++
		}
	}
	return n, nil
}

func (m *MockEntryRepo) Stats(_ context.Context, campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{"total": 0, "pending": 0, "in_flight": 0, "sent": 0, "failed": 0}
	for _, e := range m.entries {
		if e.CampaignID == campaignID {
			stats[string(e.Status)]++
			stats["total"]++
		}
	}
	return stats, nil
}

func (m *MockEntryRepo) ListBetween(_ context.Context, from, to time.Time) ([]*model.PendingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.PendingEntry{}
	for _, e := range m.entries {
		if !e.ScheduledTime.Before(from) && e.ScheduledTime.Before(to) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func (m *MockEntryRepo) get(id int) model.PendingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entries[id]
}

func (m *MockEntryRepo) all() []model.PendingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Mock Audit / Settings Repositories ---

type MockAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLogEntry
	fail    bool
}

func (m *MockAuditRepo) Append(_ context.Context, e *model.AuditLogEntry) error {
	if m.fail {
		return errors.New("audit store unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = len(m.entries) + 1
	m.entries = append(m.entries, *e)
	return nil
}

func (m *MockAuditRepo) ListRecent(_ context.Context, limit int) ([]*model.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.AuditLogEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

func (m *MockAuditRepo) snapshot() []model.AuditLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditLogEntry(nil), m.entries...)
}

type MockSettingsRepo struct {
	settings *model.SchedulerSettings
}

func (m *MockSettingsRepo) Get(context.Context) (model.SchedulerSettings, error) {
	if m.settings == nil {
		return model.DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *MockSettingsRepo) Upsert(_ context.Context, s model.SchedulerSettings) error {
	m.settings = &s
	return nil
}

// --- Mock Sender / Queue ---

type sentMessage struct {
	To, Text string
}

type MockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	// result, when set, decides the outcome of each send.
	result func(to string) delivery.Result
}

func (m *MockSender) Send(_ context.Context, to, text string) delivery.Result {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{To: to, Text: text})
	m.mu.Unlock()
	if m.result != nil {
		return m.result(to)
	}
	return delivery.Result{Success: true, MessageID: "ext-" + to, Attempts: 1}
}

func (m *MockSender) calls() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type published struct {
	Topic   string
	Payload any
}

type MockQueue struct {
	mu   sync.Mutex
	msgs []published
}

func (m *MockQueue) Publish(topic string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, published{topic, payload})
	return nil
}

func (m *MockQueue) Subscribe(string, func(any) error) error { return nil }

func (m *MockQueue) topic(name string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []any
	for _, p := range m.msgs {
		if p.Topic == name {
			out = append(out, p.Payload)
		}
	}
	return out
}
