// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// PausableStatuses are the states an outside-window failure may pause.
var PausableStatuses = []CampaignStatus{CampaignScheduled, CampaignActive, CampaignPaused}

const (
	ScheduleDaily   = "daily"
	ScheduleOnce    = "once"
	AudienceAll     = "all"
	DefaultTimezone = "Asia/Dubai"
)

// ScheduleConfig is the campaign's daily send window. Start and End are local
// times of day ("HH:MM") in Timezone.
type ScheduleConfig struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Timezone   string   `json:"timezone"`
	DaysOfWeek []string `json:"days_of_week,omitempty"` // "mon".."sun", empty means every day
}

type Campaign struct {
	ID             int            `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Description    string         `db:"description" json:"description"`
	Status         CampaignStatus `db:"status" json:"status"`
	PauseReason    string         `db:"pause_reason" json:"pause_reason,omitempty"`
	AudienceFilter string         `db:"audience_filter" json:"audience_filter"`
	TemplatePoolID int            `db:"template_pool_id" json:"template_pool_id"`
	ScheduleType   string         `db:"schedule_type" json:"schedule_type"`
	Schedule       ScheduleConfig `db:"schedule_config" json:"schedule"`
	MessagesSent   int            `db:"messages_sent" json:"messages_sent"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

// Schedulable reports whether a new scheduling run may start for the campaign.
// Scheduled and active campaigns need an explicit reset first. Paused
// campaigns also need one while they still hold open entries.
func (c *Campaign) Schedulable() bool {
	switch c.Status {
	case CampaignScheduled, CampaignActive:
		return false
	}
	return true
}
