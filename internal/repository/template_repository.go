package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/campaign-dispatcher/internal/model"
)

type TemplateRepositoryInterface interface {
	ListByPool(ctx context.Context, poolID int) ([]model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) ListByPool(ctx context.Context, poolID int) ([]model.Template, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, pool_id, name, body FROM templates WHERE pool_id = $1 ORDER BY id`, poolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.PoolID, &t.Name, &t.Body); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
