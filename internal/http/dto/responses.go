package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type AdminAuthResponse struct {
	Token string `json:"token"`
}

type CreatePledgeResponse struct {
	PledgeID   string `json:"pledge_id"`
	SessionURL string `json:"session_url"`
}

type ConfirmSetupResponse struct {
	PledgeID string `json:"pledge_id,omitempty"`
	Status   string `json:"status"`
}

// PledgeStatusResponse is the public view of a pledge; donor identity and
// provider references stay internal.
type PledgeStatusResponse struct {
	PledgeID            string `json:"pledge_id"`
	SetupStatus         string `json:"setup_status"`
	ChargeStatus        string `json:"charge_status"`
	ComputedViews       *int64 `json:"computed_views,omitempty"`
	ComputedAmountCents *int64 `json:"computed_amount_cents,omitempty"`
}
