package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/campaign-dispatcher/internal/errors"
	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListByScheduleType(ctx context.Context, scheduleType string, statuses ...model.CampaignStatus) ([]*model.Campaign, error)

	// TransitionStatus moves the campaign to `to` only if its current status is
	// one of `from` (any status when from is empty). It reports whether a row
	// changed.
	TransitionStatus(ctx context.Context, id int, to model.CampaignStatus, from ...model.CampaignStatus) (bool, error)
	Pause(ctx context.Context, id int, reason string) error
	IncrementMessagesSent(ctx context.Context, id int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, description, status, pause_reason, audience_filter, template_pool_id,
        schedule_type, window_start, window_end, timezone, days_of_week, messages_sent, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var days []string
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Status, &c.PauseReason, &c.AudienceFilter, &c.TemplatePoolID,
		&c.ScheduleType, &c.Schedule.Start, &c.Schedule.End, &c.Schedule.Timezone, pq.Array(&days),
		&c.MessagesSent, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Schedule.DaysOfWeek = days
	return &c, nil
}

func statusStrings(statuses []model.CampaignStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.AudienceFilter == "" {
		c.AudienceFilter = model.AudienceAll
	}
	if c.ScheduleType == "" {
		c.ScheduleType = model.ScheduleOnce
	}
	query := `
        INSERT INTO campaigns (name, description, status, audience_filter, template_pool_id, schedule_type,
            window_start, window_end, timezone, days_of_week, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING id
    `
	return r.DB.QueryRowContext(ctx, query,
		c.Name, c.Description, c.Status, c.AudienceFilter, c.TemplatePoolID, c.ScheduleType,
		c.Schedule.Start, c.Schedule.End, c.Schedule.Timezone, pq.Array(c.Schedule.DaysOfWeek), c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		filter := fmt.Sprintf(" AND status=$%d", argPos)
		query += filter
		countQuery += filter
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

func (r *CampaignRepository) ListByScheduleType(ctx context.Context, scheduleType string, statuses ...model.CampaignStatus) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE schedule_type=$1 AND status = ANY($2) ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, scheduleType, pq.Array(statusStrings(statuses)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ====================== Lifecycle ======================

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id int, to model.CampaignStatus, from ...model.CampaignStatus) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if len(from) == 0 {
		res, err = r.DB.ExecContext(ctx,
			`UPDATE campaigns SET status=$1, pause_reason='', updated_at=NOW() WHERE id=$2`, to, id)
	} else {
		res, err = r.DB.ExecContext(ctx,
			`UPDATE campaigns SET status=$1, pause_reason='', updated_at=NOW() WHERE id=$2 AND status = ANY($3)`,
			to, id, pq.Array(statusStrings(from)))
	}
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CampaignRepository) Pause(ctx context.Context, id int, reason string) error {
	query := `UPDATE campaigns SET status=$1, pause_reason=$2, updated_at=NOW() WHERE id=$3 AND status = ANY($4)`
	_, err := r.DB.ExecContext(ctx, query, model.CampaignPaused, reason, id, pq.Array(statusStrings(model.PausableStatuses)))
	return err
}

func (r *CampaignRepository) IncrementMessagesSent(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET messages_sent = messages_sent + 1, updated_at=NOW() WHERE id=$1`, id)
	return err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
