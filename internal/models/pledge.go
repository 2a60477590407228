package models

import (
	"time"

	"github.com/google/uuid"
)

// Pledge setup statuses
const (
	SetupStatusPending  = "pending"
	SetupStatusComplete = "complete"
	SetupStatusFailed   = "failed"
)

// Pledge charge statuses
const (
	ChargeStatusNotCharged     = "not_charged"
	ChargeStatusCharged        = "charged"
	ChargeStatusSkipped        = "skipped"
	ChargeStatusFailed         = "failed"
	ChargeStatusRequiresAction = "requires_action"
)

// MinRatePer1000Cents is the lowest accepted pledge rate ($1 per 1000 views).
// MinCapAmountCents mirrors it for the optional donor cap.
const (
	MinRatePer1000Cents = 100
	MinCapAmountCents   = 100
)

// Valid setup transitions: from -> []to.
// complete -> complete is allowed so a replayed reconciliation (webhook
// redelivery, duplicate client confirm) converges instead of erroring.
// failed -> complete lets a later reconcile with full provider data recover
// a pledge that was first seen without a payment method.
var ValidSetupTransitions = map[string][]string{
	SetupStatusPending:  {SetupStatusComplete, SetupStatusFailed},
	SetupStatusComplete: {SetupStatusComplete},
	SetupStatusFailed:   {SetupStatusComplete, SetupStatusFailed},
}

// Valid charge transitions: from -> []to. Every outcome is terminal; a later
// charge run never revisits a resolved pledge.
var ValidChargeTransitions = map[string][]string{
	ChargeStatusNotCharged:     {ChargeStatusCharged, ChargeStatusSkipped, ChargeStatusFailed, ChargeStatusRequiresAction},
	ChargeStatusCharged:        {},
	ChargeStatusSkipped:        {},
	ChargeStatusFailed:         {},
	ChargeStatusRequiresAction: {},
}

func IsValidSetupTransition(from, to string) bool {
	allowed, ok := ValidSetupTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidChargeTransition(from, to string) bool {
	allowed, ok := ValidChargeTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

type Pledge struct {
	ID                    uuid.UUID `json:"id"`
	CampaignID            uuid.UUID `json:"campaign_id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	RatePer1000Cents      int64     `json:"rate_per_1000_cents"`
	CapAmountCents        *int64    `json:"cap_amount_cents,omitempty"`
	ViewsCap              int64     `json:"views_cap"`
	SetupStatus           string    `json:"setup_status"`
	ChargeStatus          string    `json:"charge_status"`
	StripeCustomerID      *string   `json:"stripe_customer_id,omitempty"`
	StripePaymentMethodID *string   `json:"stripe_payment_method_id,omitempty"`
	StripePaymentIntentID *string   `json:"stripe_payment_intent_id,omitempty"`
	ComputedViews         *int64    `json:"computed_views,omitempty"`
	ComputedAmountCents   *int64    `json:"computed_amount_cents,omitempty"`
	ErrorMessage          *string   `json:"error_message,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// EligibleForCharge reports whether a charge run may attempt this pledge.
func (p *Pledge) EligibleForCharge() bool {
	return p.SetupStatus == SetupStatusComplete && p.ChargeStatus == ChargeStatusNotCharged
}
