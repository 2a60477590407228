package dto

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type CreatePledgeRequest struct {
	CampaignID       string `json:"campaign_id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	RatePer1000Cents int64  `json:"rate_per_1000_cents"`
	CapAmountCents   *int64 `json:"cap_amount_cents,omitempty"`
}

// ConfirmSetupRequest is the client-side callback after checkout. Either field
// is sufficient; setup_intent_id wins when both are present.
type ConfirmSetupRequest struct {
	SessionID     string `json:"session_id,omitempty"`
	SetupIntentID string `json:"setup_intent_id,omitempty"`
}

type CreateCampaignRequest struct {
	Title    string `json:"title"`
	ViewsCap int64  `json:"views_cap,omitempty"`
}

type LockCampaignRequest struct {
	FinalViews *int64 `json:"final_views"`
}
