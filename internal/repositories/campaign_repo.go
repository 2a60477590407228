package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viewpledge/backend/internal/models"
)

type CampaignRepo struct {
	pool *pgxpool.Pool
}

func NewCampaignRepo(pool *pgxpool.Pool) *CampaignRepo {
	return &CampaignRepo{pool: pool}
}

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO campaigns (title, views_cap, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, c.Title, c.ViewsCap, c.Status).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *CampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, views_cap, final_views, status, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.ViewsCap, &c.FinalViews, &c.Status,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CampaignRepo) List(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, views_cap, final_views, status, created_at, updated_at
		FROM campaigns ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Title, &c.ViewsCap, &c.FinalViews, &c.Status,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// SetFinalViews records the measured view count and moves the campaign to
// locked. The status guard keeps final_views write-once.
func (r *CampaignRepo) SetFinalViews(ctx context.Context, id uuid.UUID, finalViews int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET final_views = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, finalViews, models.CampaignStatusLocked, id, models.CampaignStatusOpen)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = $1, updated_at = now() WHERE id = $2
	`, status, id)
	return err
}
