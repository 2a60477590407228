package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/events"
	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/repositories"
)

// Metadata keys stamped on provider customers, sessions and intents.
const (
	MetaFlow       = "flow"
	MetaPledgeID   = "pledge_id"
	MetaCampaignID = "campaign_id"

	FlowPledgeSetup = "pledge_setup"
)

type PledgeService struct {
	campaigns CampaignStore
	pledges   PledgeStore
	provider  PaymentProvider
	publisher events.Publisher
	log       *zap.Logger
}

func NewPledgeService(
	campaigns CampaignStore,
	pledges PledgeStore,
	provider PaymentProvider,
	publisher events.Publisher,
	log *zap.Logger,
) *PledgeService {
	return &PledgeService{
		campaigns: campaigns,
		pledges:   pledges,
		provider:  provider,
		publisher: publisher,
		log:       log,
	}
}

type CreatePledgeInput struct {
	CampaignID       uuid.UUID
	Name             string
	Email            string
	RatePer1000Cents int64
	CapAmountCents   *int64
}

type CreatePledgeResult struct {
	PledgeID   uuid.UUID
	SessionURL string
}

// CreatePledge validates the pledge terms, snapshots the campaign views cap,
// creates a provider customer and opens a setup checkout session for storing
// the donor's payment method.
func (s *PledgeService) CreatePledge(ctx context.Context, input CreatePledgeInput) (*CreatePledgeResult, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidPledgeTerms)
	}
	if input.RatePer1000Cents < models.MinRatePer1000Cents {
		return nil, fmt.Errorf("%w: rate must be at least %d cents per 1000 views",
			ErrInvalidPledgeTerms, models.MinRatePer1000Cents)
	}
	if input.CapAmountCents != nil && *input.CapAmountCents < models.MinCapAmountCents {
		return nil, fmt.Errorf("%w: cap must be at least %d cents",
			ErrInvalidPledgeTerms, models.MinCapAmountCents)
	}

	campaign, err := s.campaigns.GetByID(ctx, input.CampaignID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	if campaign.Status != models.CampaignStatusOpen {
		return nil, ErrCampaignNotOpen
	}

	customerID, err := s.provider.CreateCustomer(ctx, input.Email, input.Name, map[string]string{
		MetaCampaignID: campaign.ID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	pledge := &models.Pledge{
		CampaignID:       campaign.ID,
		Name:             input.Name,
		Email:            input.Email,
		RatePer1000Cents: input.RatePer1000Cents,
		CapAmountCents:   input.CapAmountCents,
		ViewsCap:         campaign.EffectiveViewsCap(),
		SetupStatus:      models.SetupStatusPending,
		ChargeStatus:     models.ChargeStatusNotCharged,
		StripeCustomerID: &customerID,
	}
	if err := s.pledges.Create(ctx, pledge); err != nil {
		return nil, err
	}

	session, err := s.provider.CreateSetupSession(ctx, customerID, map[string]string{
		MetaFlow:       FlowPledgeSetup,
		MetaPledgeID:   pledge.ID.String(),
		MetaCampaignID: campaign.ID.String(),
	})
	if err != nil {
		// The row stays pending; the donor can retry and a fresh session
		// will reconcile against the same pledge via customer correlation.
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	s.log.Info("pledge created",
		zap.String("pledge_id", pledge.ID.String()),
		zap.String("campaign_id", campaign.ID.String()),
		zap.Int64("rate_per_1000_cents", input.RatePer1000Cents),
	)

	return &CreatePledgeResult{PledgeID: pledge.ID, SessionURL: session.URL}, nil
}

// ReconcileInput carries whatever identifying information the trigger source
// had: webhook event metadata, a checkout session id from the client's
// success callback, or a bare setup intent id. At least one of SessionID and
// SetupIntentID must be set.
type ReconcileInput struct {
	Metadata      map[string]string
	SessionID     string
	SetupIntentID string
	CustomerID    string
}

// ReconcileSetup binds a completed setup flow to its pledge. Idempotent:
// replaying the same inputs converges on the same terminal state.
func (s *PledgeService) ReconcileSetup(ctx context.Context, input ReconcileInput) (uuid.UUID, error) {
	meta := input.Metadata
	intentID := input.SetupIntentID
	customerID := input.CustomerID

	if intentID == "" && input.SessionID != "" {
		session, err := s.provider.RetrieveCheckoutSession(ctx, input.SessionID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		intentID = session.SetupIntentID
		if customerID == "" {
			customerID = session.CustomerID
		}
		if meta == nil {
			meta = session.Metadata
		}
	}

	if flow, ok := meta[MetaFlow]; ok && flow != FlowPledgeSetup {
		return uuid.Nil, ErrNotPledgeSetup
	}

	var paymentMethodID string
	if intentID != "" {
		intent, err := s.provider.RetrieveSetupIntent(ctx, intentID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		paymentMethodID = intent.PaymentMethodID
		if intent.CustomerID != "" {
			customerID = intent.CustomerID
		}
		if _, ok := meta[MetaPledgeID]; !ok {
			if id, ok := intent.Metadata[MetaPledgeID]; ok {
				if meta == nil {
					meta = map[string]string{}
				}
				meta[MetaPledgeID] = id
			}
		}
	}

	pledge, err := s.resolvePledge(ctx, meta, customerID)
	if err != nil {
		return uuid.Nil, err
	}

	if paymentMethodID == "" || customerID == "" {
		if models.IsValidSetupTransition(pledge.SetupStatus, models.SetupStatusFailed) {
			if err := s.pledges.MarkSetupFailed(ctx, pledge.ID, "missing payment method/customer"); err != nil {
				return uuid.Nil, err
			}
			s.publish(ctx, events.EventPledgeSetupFailed, pledge.ID)
		}
		return pledge.ID, ErrSetupIncomplete
	}

	if !models.IsValidSetupTransition(pledge.SetupStatus, models.SetupStatusComplete) {
		return pledge.ID, fmt.Errorf("pledge %s cannot move from setup %s to %s",
			pledge.ID, pledge.SetupStatus, models.SetupStatusComplete)
	}
	if err := s.pledges.CompleteSetup(ctx, pledge.ID, customerID, paymentMethodID); err != nil {
		return uuid.Nil, err
	}

	s.publish(ctx, events.EventPledgeSetupCompleted, pledge.ID)
	s.log.Info("pledge setup reconciled",
		zap.String("pledge_id", pledge.ID.String()),
		zap.String("customer_id", customerID),
	)
	return pledge.ID, nil
}

// resolvePledge locates the target pledge: metadata pledge_id first, then the
// most recently created pledge for the resolved customer. The customer
// fallback is best-effort correlation, not a guaranteed unique match.
func (s *PledgeService) resolvePledge(ctx context.Context, meta map[string]string, customerID string) (*models.Pledge, error) {
	if raw, ok := meta[MetaPledgeID]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad pledge_id metadata %q", ErrNoPledgeMatch, raw)
		}
		pledge, err := s.pledges.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrNoPledgeMatch
			}
			return nil, err
		}
		return pledge, nil
	}

	if customerID == "" {
		return nil, ErrNoPledgeMatch
	}
	pledge, err := s.pledges.FindLatestByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoPledgeMatch
		}
		return nil, err
	}
	return pledge, nil
}

func (s *PledgeService) GetPledge(ctx context.Context, id uuid.UUID) (*models.Pledge, error) {
	return s.pledges.GetByID(ctx, id)
}

func (s *PledgeService) publish(ctx context.Context, eventType string, pledgeID uuid.UUID) {
	_ = s.publisher.Publish(ctx, events.StreamBilling, events.Event{
		Type:    eventType,
		Payload: map[string]any{"pledge_id": pledgeID.String()},
	})
}
