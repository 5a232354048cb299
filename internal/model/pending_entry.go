// internal/model/pending_entry.go
package model

import "time"

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryInFlight EntryStatus = "in_flight" // claimed by one dispatch run
	EntrySent     EntryStatus = "sent"
	EntryFailed   EntryStatus = "failed"
)

// PendingEntry is one recipient's slot in a campaign run.
type PendingEntry struct {
	ID            int         `db:"id" json:"id"`
	CampaignID    int         `db:"campaign_id" json:"campaign_id"`
	RecipientID   int         `db:"recipient_id" json:"recipient_id"`
	TemplateID    int         `db:"template_id" json:"template_id"`
	Body          string      `db:"message_body" json:"message_body"`
	ScheduledTime time.Time   `db:"scheduled_time" json:"scheduled_time"`
	Status        EntryStatus `db:"status" json:"status"`
	ErrorMessage  string      `db:"error_message" json:"error_message,omitempty"`
	SentTime      *time.Time  `db:"sent_time" json:"sent_time,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`

	// Joined from recipients on read.
	RecipientName    string `db:"-" json:"recipient_name,omitempty"`
	RecipientAddress string `db:"-" json:"recipient_address,omitempty"`
}

func (e *PendingEntry) Terminal() bool {
	return e.Status == EntrySent || e.Status == EntryFailed
}
