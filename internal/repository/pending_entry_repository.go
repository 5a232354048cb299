package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type PendingEntryRepositoryInterface interface {
	// CreateBatch inserts all entries in one transaction; either every entry
	// is written or none is.
	CreateBatch(ctx context.Context, entries []*model.PendingEntry) error
	// FetchDue lists pending entries with scheduled_time <= now, oldest first.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.PendingEntry, error)
	// Claim flips one entry pending -> in_flight and reports whether this
	// caller won it.
	Claim(ctx context.Context, id int) (bool, error)
	// Complete records the terminal status of a claimed entry.
	Complete(ctx context.Context, id int, status model.EntryStatus, errMsg string, sentAt *time.Time) error
	CountOpen(ctx context.Context, campaignID int) (int, error)
	CancelPending(ctx context.Context, campaignID int, reason string) (int, error)
	Stats(ctx context.Context, campaignID int) (map[string]int, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]*model.PendingEntry, error)
}

type PendingEntryRepository struct {
	DB *sql.DB
}

const createBatchChunk = 500

// CreateBatch uses multi-row inserts inside a single transaction.
func (r *PendingEntryRepository) CreateBatch(ctx context.Context, entries []*model.PendingEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for start := 0; start < len(entries); start += createBatchChunk {
		end := start + createBatchChunk
		if end > len(entries) {
			end = len(entries)
		}
		chunk := entries[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO scheduled_messages
            (campaign_id, recipient_id, template_id, message_body, scheduled_time, status, created_at, updated_at)
            VALUES `)
		args := make([]interface{}, 0, len(chunk)*8)
		for i, e := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			p := i*8 + 1
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", p, p+1, p+2, p+3, p+4, p+5, p+6, p+7)
			if e.Status == "" {
				e.Status = model.EntryPending
			}
			e.CreatedAt, e.UpdatedAt = now, now
			args = append(args, e.CampaignID, e.RecipientID, e.TemplateID, e.Body,
				e.ScheduledTime.UTC(), e.Status, now, now)
		}
		sb.WriteString(" RETURNING id")

		rows, err := tx.QueryContext(ctx, sb.String(), args...)
		if err != nil {
			return err
		}
		i := 0
		for rows.Next() {
			if err := rows.Scan(&chunk[i].ID); err != nil {
				rows.Close()
				return err
			}
			i++
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const entryJoinColumns = `m.id, m.campaign_id, m.recipient_id, m.template_id, m.message_body, m.scheduled_time,
        m.status, COALESCE(m.error_message, ''), m.sent_time, m.created_at, m.updated_at, r.name, r.address`

func scanEntry(row rowScanner) (*model.PendingEntry, error) {
	var e model.PendingEntry
	err := row.Scan(
		&e.ID, &e.CampaignID, &e.RecipientID, &e.TemplateID, &e.Body, &e.ScheduledTime,
		&e.Status, &e.ErrorMessage, &e.SentTime, &e.CreatedAt, &e.UpdatedAt,
		&e.RecipientName, &e.RecipientAddress,
	)
	if err != nil {
		return nil, err
	}
	e.ScheduledTime = e.ScheduledTime.UTC()
	return &e, nil
}

func (r *PendingEntryRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*model.PendingEntry, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*model.PendingEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PendingEntryRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.PendingEntry, error) {
	query := `
        SELECT ` + entryJoinColumns + `
        FROM scheduled_messages m
        JOIN recipients r ON r.id = m.recipient_id
        WHERE m.status = 'pending' AND m.scheduled_time <= $1
        ORDER BY m.scheduled_time ASC, m.id ASC
        LIMIT $2
    `
	return r.queryEntries(ctx, query, now.UTC(), limit)
}

// Claim is a conditional update keyed on the current status, so of any number
// of concurrent callers exactly one sees a changed row.
func (r *PendingEntryRepository) Claim(ctx context.Context, id int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE scheduled_messages SET status='in_flight', updated_at=NOW() WHERE id=$1 AND status='pending'`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PendingEntryRepository) Complete(ctx context.Context, id int, status model.EntryStatus, errMsg string, sentAt *time.Time) error {
	query := `
        UPDATE scheduled_messages
        SET status=$1, error_message=$2, sent_time=$3, updated_at=NOW()
        WHERE id=$4 AND status IN ('pending', 'in_flight')
    `
	_, err := r.DB.ExecContext(ctx, query, status, nullStr(errMsg), sentAt, id)
	return err
}

func (r *PendingEntryRepository) CountOpen(ctx context.Context, campaignID int) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scheduled_messages WHERE campaign_id=$1 AND status IN ('pending', 'in_flight')`,
		campaignID).Scan(&n)
	return n, err
}

// CancelPending fails every still-pending entry of a campaign. Claimed
// entries are left to their dispatch run.
func (r *PendingEntryRepository) CancelPending(ctx context.Context, campaignID int, reason string) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE scheduled_messages SET status='failed', error_message=$1, updated_at=NOW()
         WHERE campaign_id=$2 AND status='pending'`, reason, campaignID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PendingEntryRepository) Stats(ctx context.Context, campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM scheduled_messages WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, "pending": 0, "in_flight": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

func (r *PendingEntryRepository) ListBetween(ctx context.Context, from, to time.Time) ([]*model.PendingEntry, error) {
	query := `
        SELECT ` + entryJoinColumns + `
        FROM scheduled_messages m
        JOIN recipients r ON r.id = m.recipient_id
        WHERE m.scheduled_time >= $1 AND m.scheduled_time < $2
        ORDER BY m.scheduled_time ASC, m.id ASC
    `
	return r.queryEntries(ctx, query, from.UTC(), to.UTC())
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

var _ PendingEntryRepositoryInterface = (*PendingEntryRepository)(nil)
