package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

// RecipientRepositoryInterface defines methods used by service
type RecipientRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Recipient, error)
	ListByAudience(ctx context.Context, filter string) ([]model.Recipient, error)
}

// RecipientRepository is the concrete implementation
type RecipientRepository struct {
	DB *sql.DB
}

const recipientColumns = `id, name, address, organization, tag, attributes`

func scanRecipient(row rowScanner) (model.Recipient, error) {
	var rc model.Recipient
	var attrs []byte
	if err := row.Scan(&rc.ID, &rc.Name, &rc.Address, &rc.Organization, &rc.Tag, &attrs); err != nil {
		return rc, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rc.Attributes); err != nil {
			return rc, err
		}
	}
	return rc, nil
}

// GetByID fetches a recipient by ID. A missing row returns (nil, nil).
func (r *RecipientRepository) GetByID(ctx context.Context, id int) (*model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients WHERE id = $1`
	rc, err := scanRecipient(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found
		}
		return nil, err
	}
	return &rc, nil
}

// ListByAudience returns recipients matching the audience filter in id order.
// "all" (or empty) selects everyone, any other value selects that tag.
func (r *RecipientRepository) ListByAudience(ctx context.Context, filter string) ([]model.Recipient, error) {
	query := `SELECT ` + recipientColumns + ` FROM recipients`
	args := []interface{}{}
	if filter != "" && filter != model.AudienceAll {
		query += ` WHERE tag = $1`
		args = append(args, filter)
	}
	query += ` ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rc)
	}
	return recipients, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
