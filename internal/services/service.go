package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/payments"
)

// Sentinel errors handlers branch on. Everything else surfaces verbatim.
var (
	// ErrUpstreamUnavailable wraps provider transport failures. No automatic
	// retry; the caller re-invokes.
	ErrUpstreamUnavailable = errors.New("payment provider unavailable")

	// ErrNotPledgeSetup marks a setup flow that belongs to another system.
	// Not an error condition, a no-op.
	ErrNotPledgeSetup = errors.New("not a pledge setup flow")

	// ErrNoPledgeMatch means no pledge could be resolved from the inputs;
	// nothing was mutated.
	ErrNoPledgeMatch = errors.New("no matching pledge")

	// ErrSetupIncomplete means the flow finished without yielding a payment
	// method; the pledge was marked setup-failed.
	ErrSetupIncomplete = errors.New("missing payment method/customer")

	ErrCampaignNotFound   = errors.New("campaign not found")
	ErrCampaignNotOpen    = errors.New("campaign is not accepting pledges")
	ErrFinalViewsUnset    = errors.New("campaign final views not recorded yet")
	ErrCampaignNotLocked  = errors.New("campaign must be open to lock")
	ErrInvalidPledgeTerms = errors.New("invalid pledge terms")
)

// CampaignStore is the campaign row access the services need.
type CampaignStore interface {
	Create(ctx context.Context, c *models.Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context) ([]models.Campaign, error)
	SetFinalViews(ctx context.Context, id uuid.UUID, finalViews int64) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// PledgeStore is the pledge row access the services need. Implementations
// return repositories.ErrNotFound for missing rows, distinct from transport
// errors.
type PledgeStore interface {
	Create(ctx context.Context, p *models.Pledge) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pledge, error)
	FindLatestByCustomer(ctx context.Context, customerID string) (*models.Pledge, error)
	ListEligible(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Pledge, error)
	CompleteSetup(ctx context.Context, id uuid.UUID, customerID, paymentMethodID string) error
	MarkSetupFailed(ctx context.Context, id uuid.UUID, reason string) error
	UpdateComputed(ctx context.Context, id uuid.UUID, views, amountCents int64) error
	UpdateChargeOutcome(ctx context.Context, id uuid.UUID, status string, intentID, errMsg *string) error
}

// PaymentProvider is the capability surface of the payment processor.
type PaymentProvider interface {
	RetrieveCheckoutSession(ctx context.Context, id string) (*payments.Session, error)
	RetrieveSetupIntent(ctx context.Context, id string) (*payments.SetupIntent, error)
	CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	CreateSetupSession(ctx context.Context, customerID string, metadata map[string]string) (*payments.Session, error)
	ChargeOffSession(ctx context.Context, req payments.ChargeRequest) (string, error)
}
