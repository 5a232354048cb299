// internal/model/audit_log.go
package model

import "time"

// AuditLogEntry records the final outcome of one delivery attempt. Rows are
// append-only.
type AuditLogEntry struct {
	ID                int         `db:"id" json:"id"`
	CampaignID        *int        `db:"campaign_id" json:"campaign_id,omitempty"`
	RecipientID       int         `db:"recipient_id" json:"recipient_id"`
	TemplateID        int         `db:"template_id" json:"template_id"`
	ExternalMessageID string      `db:"external_message_id" json:"external_message_id,omitempty"`
	Status            EntryStatus `db:"status" json:"status"`
	ErrorMessage      string      `db:"error_message" json:"error_message,omitempty"`
	RecipientAddress  string      `db:"recipient_address" json:"recipient_address"`
	Body              string      `db:"message_body" json:"message_body"`
	IsTest            bool        `db:"is_test" json:"is_test"`
	SentTime          time.Time   `db:"sent_time" json:"sent_time"`
}
