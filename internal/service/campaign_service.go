// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
	"github.com/unclebandit/campaign-dispatcher/internal/repository"
	"github.com/unclebandit/campaign-dispatcher/internal/window"
)

const (
	DefaultLogLimit = 50
	maxLogLimit     = 500
	upcomingHorizon = 24 * time.Hour
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	EntryRepo    repository.PendingEntryRepositoryInterface
	AuditRepo    repository.AuditLogRepositoryInterface
	SettingsRepo repository.SettingsRepositoryInterface

	Now func() time.Time
	Log zerolog.Logger
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

type CreateCampaignInput struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	AudienceFilter string               `json:"audience_filter"`
	TemplatePoolID int                  `json:"template_pool_id"`
	ScheduleType   string               `json:"schedule_type"`
	Schedule       model.ScheduleConfig `json:"schedule"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateCampaign stores a draft campaign after checking its window. An empty
// timezone takes the settings default.
func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", appErrors.ErrInvalidCampaign)
	}
	if in.ScheduleType == "" {
		in.ScheduleType = model.ScheduleOnce
	}
	if in.ScheduleType != model.ScheduleOnce && in.ScheduleType != model.ScheduleDaily {
		return nil, fmt.Errorf("%w: unknown schedule type %q", appErrors.ErrInvalidCampaign, in.ScheduleType)
	}
	if strings.TrimSpace(in.Schedule.Timezone) == "" && s.SettingsRepo != nil {
		settings, err := s.SettingsRepo.Get(ctx)
		if err != nil {
			return nil, err
		}
		in.Schedule.Timezone = settings.DefaultTimezone
	}
	if in.Schedule.Timezone == "" {
		in.Schedule.Timezone = model.DefaultTimezone
	}

	if _, err := window.Resolve(in.Schedule, s.now()); err != nil {
		return nil, err
	}
	if _, err := window.AllowsDay(in.Schedule, s.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", appErrors.ErrInvalidWindow, err)
	}
	_, _, in.Schedule.Start, _ = window.ParseClock(in.Schedule.Start)
	_, _, in.Schedule.End, _ = window.ParseClock(in.Schedule.End)

	c := &model.Campaign{
		Name:           in.Name,
		Description:    in.Description,
		Status:         model.CampaignDraft,
		AudienceFilter: in.AudienceFilter,
		TemplatePoolID: in.TemplatePoolID,
		ScheduleType:   in.ScheduleType,
		Schedule:       in.Schedule,
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.EntryRepo.Stats(ctx, campaignID)
	if err != nil {
		s.Log.Error().Err(err).Int("campaign_id", campaignID).Msg("failed to load entry stats")
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// UpcomingEntries lists entries scheduled in the next 24 hours, soonest first.
func (s *CampaignService) UpcomingEntries(ctx context.Context) ([]*model.PendingEntry, error) {
	from := s.now()
	return s.EntryRepo.ListBetween(ctx, from, from.Add(upcomingHorizon))
}

// RecentLogs returns the newest audit entries. limit <= 0 means DefaultLogLimit.
func (s *CampaignService) RecentLogs(ctx context.Context, limit int) ([]*model.AuditLogEntry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}
	return s.AuditRepo.ListRecent(ctx, limit)
}
