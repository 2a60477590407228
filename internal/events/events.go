package events

import "context"

// Event types
const (
	EventPledgeSetupCompleted = "pledge_setup_completed"
	EventPledgeSetupFailed    = "pledge_setup_failed"
	EventChargeRunCompleted   = "charge_run_completed"
)

// StreamBilling carries all pledge setup and charge-run events.
const StreamBilling = "events:billing"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
