package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/events"
	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/payments"
	"github.com/viewpledge/backend/internal/pricing"
	"github.com/viewpledge/backend/internal/repositories"
)

// ChargeCounts is the aggregate outcome of one charge run.
type ChargeCounts struct {
	Charged        int `json:"charged"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
	RequiresAction int `json:"requires_action"`
}

type ChargeService struct {
	campaigns CampaignStore
	pledges   PledgeStore
	provider  PaymentProvider
	publisher events.Publisher
	log       *zap.Logger
}

func NewChargeService(
	campaigns CampaignStore,
	pledges PledgeStore,
	provider PaymentProvider,
	publisher events.Publisher,
	log *zap.Logger,
) *ChargeService {
	return &ChargeService{
		campaigns: campaigns,
		pledges:   pledges,
		provider:  provider,
		publisher: publisher,
		log:       log,
	}
}

// RunCharges settles every eligible pledge of one campaign, sequentially and
// with per-pledge failure isolation: one declined card never aborts the
// batch. Each pledge's outcome is committed individually, so a crash mid-run
// leaves a rerun to pick up only the pledges still not_charged.
func (s *ChargeService) RunCharges(ctx context.Context, campaignID uuid.UUID) (*ChargeCounts, error) {
	campaign, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	if !campaign.Chargeable() {
		return nil, ErrFinalViewsUnset
	}

	pledges, err := s.pledges.ListEligible(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	counts := &ChargeCounts{}
	for i := range pledges {
		s.chargePledge(ctx, campaign, &pledges[i], counts)
	}

	// A run counts as done even if every pledge failed; reruns are safe
	// because resolved pledges are no longer eligible.
	if campaign.Status != models.CampaignStatusCharged {
		if err := s.campaigns.UpdateStatus(ctx, campaignID, models.CampaignStatusCharged); err != nil {
			s.log.Error("failed to mark campaign charged",
				zap.String("campaign_id", campaignID.String()), zap.Error(err))
		}
	}

	_ = s.publisher.Publish(ctx, events.StreamBilling, events.Event{
		Type: events.EventChargeRunCompleted,
		Payload: map[string]any{
			"campaign_id":     campaignID.String(),
			"charged":         counts.Charged,
			"skipped":         counts.Skipped,
			"failed":          counts.Failed,
			"requires_action": counts.RequiresAction,
		},
	})

	s.log.Info("charge run completed",
		zap.String("campaign_id", campaignID.String()),
		zap.Int("charged", counts.Charged),
		zap.Int("skipped", counts.Skipped),
		zap.Int("failed", counts.Failed),
		zap.Int("requires_action", counts.RequiresAction),
	)
	return counts, nil
}

func (s *ChargeService) chargePledge(ctx context.Context, campaign *models.Campaign, pledge *models.Pledge, counts *ChargeCounts) {
	amount := pricing.ComputeAmount(*campaign.FinalViews, campaign.EffectiveViewsCap(),
		pledge.RatePer1000Cents, pledge.CapAmountCents)

	// Diagnostic snapshot, persisted regardless of outcome. A failed write
	// here must not stop the charge attempt.
	if err := s.pledges.UpdateComputed(ctx, pledge.ID, amount.CountedViews, amount.AmountCents); err != nil {
		s.log.Warn("failed to persist computed amount",
			zap.String("pledge_id", pledge.ID.String()), zap.Error(err))
	}

	if amount.AmountCents <= 0 {
		s.recordOutcome(ctx, pledge, models.ChargeStatusSkipped, nil, nil)
		counts.Skipped++
		return
	}

	// The eligibility filter should guarantee these, but the run re-validates.
	if pledge.StripeCustomerID == nil || pledge.StripePaymentMethodID == nil {
		msg := "setup marked complete but payment method binding is missing"
		s.recordOutcome(ctx, pledge, models.ChargeStatusFailed, nil, &msg)
		counts.Failed++
		return
	}

	intentID, err := s.provider.ChargeOffSession(ctx, payments.ChargeRequest{
		AmountCents:     amount.AmountCents,
		CustomerID:      *pledge.StripeCustomerID,
		PaymentMethodID: *pledge.StripePaymentMethodID,
		Metadata: map[string]string{
			MetaPledgeID:     pledge.ID.String(),
			MetaCampaignID:   campaign.ID.String(),
			"computed_views": fmt.Sprintf("%d", amount.CountedViews),
		},
	})
	if err == nil {
		s.recordOutcome(ctx, pledge, models.ChargeStatusCharged, &intentID, nil)
		counts.Charged++
		return
	}

	var decline *payments.ChargeError
	if errors.As(err, &decline) && decline.RequiresAction() {
		msg := decline.Error()
		var partialIntent *string
		if decline.IntentID != "" {
			partialIntent = &decline.IntentID
		}
		s.recordOutcome(ctx, pledge, models.ChargeStatusRequiresAction, partialIntent, &msg)
		counts.RequiresAction++
		return
	}

	msg := err.Error()
	var partialIntent *string
	if decline != nil && decline.IntentID != "" {
		partialIntent = &decline.IntentID
	}
	s.recordOutcome(ctx, pledge, models.ChargeStatusFailed, partialIntent, &msg)
	counts.Failed++
}

func (s *ChargeService) recordOutcome(ctx context.Context, pledge *models.Pledge, status string, intentID, errMsg *string) {
	if !models.IsValidChargeTransition(pledge.ChargeStatus, status) {
		s.log.Error("illegal charge transition",
			zap.String("pledge_id", pledge.ID.String()),
			zap.String("from", pledge.ChargeStatus),
			zap.String("to", status),
		)
		return
	}
	if err := s.pledges.UpdateChargeOutcome(ctx, pledge.ID, status, intentID, errMsg); err != nil {
		s.log.Error("failed to persist charge outcome",
			zap.String("pledge_id", pledge.ID.String()),
			zap.String("status", status),
			zap.Error(err),
		)
		return
	}
	pledge.ChargeStatus = status
	s.log.Info("pledge settled",
		zap.String("pledge_id", pledge.ID.String()),
		zap.String("charge_status", status),
	)
}
