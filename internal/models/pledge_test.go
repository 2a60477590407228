package models

import "testing"

func TestIsValidSetupTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{SetupStatusPending, SetupStatusComplete, true},
		{SetupStatusPending, SetupStatusFailed, true},
		// Replayed reconciliation converges.
		{SetupStatusComplete, SetupStatusComplete, true},
		// A later reconcile with full provider data may recover a failure.
		{SetupStatusFailed, SetupStatusComplete, true},
		{SetupStatusFailed, SetupStatusFailed, true},

		{SetupStatusComplete, SetupStatusFailed, false},
		{SetupStatusComplete, SetupStatusPending, false},
		{SetupStatusFailed, SetupStatusPending, false},
		{SetupStatusPending, SetupStatusPending, false},
		{"nonexistent", SetupStatusComplete, false},
		{SetupStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidSetupTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidSetupTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidChargeTransition(t *testing.T) {
	outcomes := []string{ChargeStatusCharged, ChargeStatusSkipped, ChargeStatusFailed, ChargeStatusRequiresAction}

	for _, to := range outcomes {
		if !IsValidChargeTransition(ChargeStatusNotCharged, to) {
			t.Errorf("not_charged -> %s should be valid", to)
		}
	}

	// Every outcome is terminal; nothing returns to not_charged.
	for _, from := range outcomes {
		for _, to := range append(outcomes, ChargeStatusNotCharged) {
			if IsValidChargeTransition(from, to) {
				t.Errorf("%s -> %s should be invalid", from, to)
			}
		}
	}

	if IsValidChargeTransition("nonexistent", ChargeStatusCharged) {
		t.Error("unknown status should have no transitions")
	}
}

func TestEligibleForCharge(t *testing.T) {
	tests := []struct {
		setup    string
		charge   string
		expected bool
	}{
		{SetupStatusComplete, ChargeStatusNotCharged, true},
		{SetupStatusPending, ChargeStatusNotCharged, false},
		{SetupStatusFailed, ChargeStatusNotCharged, false},
		{SetupStatusComplete, ChargeStatusCharged, false},
		{SetupStatusComplete, ChargeStatusSkipped, false},
		{SetupStatusComplete, ChargeStatusFailed, false},
		{SetupStatusComplete, ChargeStatusRequiresAction, false},
	}

	for _, tt := range tests {
		p := Pledge{SetupStatus: tt.setup, ChargeStatus: tt.charge}
		if got := p.EligibleForCharge(); got != tt.expected {
			t.Errorf("EligibleForCharge(setup=%s, charge=%s) = %v, want %v", tt.setup, tt.charge, got, tt.expected)
		}
	}
}
