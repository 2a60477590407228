package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses
const (
	CampaignStatusOpen    = "open"
	CampaignStatusLocked  = "locked"
	CampaignStatusCharged = "charged"
)

// DefaultViewsCap applies when a campaign was created without a usable cap.
const DefaultViewsCap = 20000

// Valid state transitions: from -> []to
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusOpen:    {CampaignStatusLocked},
	CampaignStatusLocked:  {CampaignStatusCharged},
	CampaignStatusCharged: {},
}

func IsValidCampaignTransition(from, to string) bool {
	allowed, ok := ValidCampaignTransitions[from]
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

type Campaign struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	ViewsCap   int64     `json:"views_cap"`
	FinalViews *int64    `json:"final_views,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// EffectiveViewsCap returns the campaign-wide billable views ceiling,
// falling back to DefaultViewsCap when the stored value is unset or invalid.
func (c *Campaign) EffectiveViewsCap() int64 {
	if c.ViewsCap > 0 {
		return c.ViewsCap
	}
	return DefaultViewsCap
}

// Chargeable reports whether a charge run may execute against this campaign.
// A "charged" campaign is still chargeable: the rerun finds no eligible
// pledges and is a safe no-op.
func (c *Campaign) Chargeable() bool {
	return c.FinalViews != nil
}
