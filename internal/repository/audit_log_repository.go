package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type AuditLogRepositoryInterface interface {
	Append(ctx context.Context, e *model.AuditLogEntry) error
	ListRecent(ctx context.Context, limit int) ([]*model.AuditLogEntry, error)
}

// AuditLogRepository writes message_logs. There is no update or delete.
type AuditLogRepository struct {
	DB *sql.DB
}

func (r *AuditLogRepository) Append(ctx context.Context, e *model.AuditLogEntry) error {
	if e.SentTime.IsZero() {
		e.SentTime = time.Now().UTC()
	}
	query := `
        INSERT INTO message_logs (campaign_id, recipient_id, template_id, external_message_id, status,
            error_message, recipient_address, message_body, is_test, sent_time)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		e.CampaignID, e.RecipientID, e.TemplateID, nullStr(e.ExternalMessageID), e.Status,
		nullStr(e.ErrorMessage), e.RecipientAddress, e.Body, e.IsTest, e.SentTime,
	).Scan(&e.ID)
}

// ListRecent returns the newest entries first.
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*model.AuditLogEntry, error) {
	query := `
        SELECT id, campaign_id, recipient_id, template_id, COALESCE(external_message_id, ''), status,
            COALESCE(error_message, ''), recipient_address, message_body, is_test, sent_time
        FROM message_logs
        ORDER BY sent_time DESC, id DESC
        LIMIT $1
    `
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*model.AuditLogEntry{}
	for rows.Next() {
		var e model.AuditLogEntry
		var campaignID sql.NullInt64
		if err := rows.Scan(&e.ID, &campaignID, &e.RecipientID, &e.TemplateID, &e.ExternalMessageID,
			&e.Status, &e.ErrorMessage, &e.RecipientAddress, &e.Body, &e.IsTest, &e.SentTime); err != nil {
			return nil, err
		}
		if campaignID.Valid {
			id := int(campaignID.Int64)
			e.CampaignID = &id
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

var _ AuditLogRepositoryInterface = (*AuditLogRepository)(nil)
