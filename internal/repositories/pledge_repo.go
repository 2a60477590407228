package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/viewpledge/backend/internal/models"
)

const pledgeColumns = `id, campaign_id, name, email, rate_per_1000_cents, cap_amount_cents,
	views_cap, setup_status, charge_status,
	stripe_customer_id, stripe_payment_method_id, stripe_payment_intent_id,
	computed_views, computed_amount_cents, error_message, created_at, updated_at`

type PledgeRepo struct {
	pool *pgxpool.Pool
}

func NewPledgeRepo(pool *pgxpool.Pool) *PledgeRepo {
	return &PledgeRepo{pool: pool}
}

func scanPledge(row interface{ Scan(dest ...any) error }, p *models.Pledge) error {
	return row.Scan(&p.ID, &p.CampaignID, &p.Name, &p.Email, &p.RatePer1000Cents, &p.CapAmountCents,
		&p.ViewsCap, &p.SetupStatus, &p.ChargeStatus,
		&p.StripeCustomerID, &p.StripePaymentMethodID, &p.StripePaymentIntentID,
		&p.ComputedViews, &p.ComputedAmountCents, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PledgeRepo) Create(ctx context.Context, p *models.Pledge) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO pledges (campaign_id, name, email, rate_per_1000_cents, cap_amount_cents,
			views_cap, setup_status, charge_status, stripe_customer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, p.CampaignID, p.Name, p.Email, p.RatePer1000Cents, p.CapAmountCents,
		p.ViewsCap, p.SetupStatus, p.ChargeStatus, p.StripeCustomerID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PledgeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Pledge, error) {
	var p models.Pledge
	err := scanPledge(r.pool.QueryRow(ctx,
		`SELECT `+pledgeColumns+` FROM pledges WHERE id = $1`, id), &p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindLatestByCustomer returns the most recently created pledge whose stored
// customer id matches. Best-effort correlation for setup flows that lost
// their pledge_id metadata.
func (r *PledgeRepo) FindLatestByCustomer(ctx context.Context, customerID string) (*models.Pledge, error) {
	var p models.Pledge
	err := scanPledge(r.pool.QueryRow(ctx, `
		SELECT `+pledgeColumns+` FROM pledges
		WHERE stripe_customer_id = $1
		ORDER BY created_at DESC LIMIT 1
	`, customerID), &p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ListEligible returns a campaign's pledges still awaiting their first charge
// attempt, oldest first.
func (r *PledgeRepo) ListEligible(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pledgeColumns+` FROM pledges
		WHERE campaign_id = $1 AND setup_status = $2 AND charge_status = $3
		ORDER BY created_at ASC
	`, campaignID, models.SetupStatusComplete, models.ChargeStatusNotCharged)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pledges []models.Pledge
	for rows.Next() {
		var p models.Pledge
		if err := scanPledge(rows, &p); err != nil {
			return nil, err
		}
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

func (r *PledgeRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pledgeColumns+` FROM pledges
		WHERE campaign_id = $1 ORDER BY created_at ASC
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pledges []models.Pledge
	for rows.Next() {
		var p models.Pledge
		if err := scanPledge(rows, &p); err != nil {
			return nil, err
		}
		pledges = append(pledges, p)
	}
	return pledges, rows.Err()
}

// CompleteSetup binds the stored payment method and clears any previous
// setup error. Deliberately unguarded on setup_status so a replayed
// reconciliation converges on the same terminal state.
func (r *PledgeRepo) CompleteSetup(ctx context.Context, id uuid.UUID, customerID, paymentMethodID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pledges SET stripe_customer_id = $1, stripe_payment_method_id = $2,
			setup_status = $3, error_message = NULL, updated_at = now()
		WHERE id = $4
	`, customerID, paymentMethodID, models.SetupStatusComplete, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PledgeRepo) MarkSetupFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pledges SET setup_status = $1, error_message = $2, updated_at = now()
		WHERE id = $3
	`, models.SetupStatusFailed, reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateComputed persists the charge run's diagnostic snapshot. Overwritten on
// every run by design.
func (r *PledgeRepo) UpdateComputed(ctx context.Context, id uuid.UUID, views, amountCents int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE pledges SET computed_views = $1, computed_amount_cents = $2, updated_at = now()
		WHERE id = $3
	`, views, amountCents, id)
	return err
}

// UpdateChargeOutcome records the terminal result of one charge attempt. The
// charge_status guard makes each pledge settle at most once even if two runs
// race.
func (r *PledgeRepo) UpdateChargeOutcome(ctx context.Context, id uuid.UUID, status string, intentID, errMsg *string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pledges SET charge_status = $1, stripe_payment_intent_id = $2,
			error_message = $3, updated_at = now()
		WHERE id = $4 AND charge_status = $5
	`, status, intentID, errMsg, id, models.ChargeStatusNotCharged)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
