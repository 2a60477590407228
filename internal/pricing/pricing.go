// Package pricing converts raw view counts and pledge terms into a billable
// amount. All amounts are integral minor currency units (cents).
package pricing

// MinChargeCents is the floor for any non-zero charge; sub-dollar amounts are
// rounded up to avoid sub-minimum transactions. An exact zero stays zero.
const MinChargeCents = 100

// Amount is the result of a pledge amount computation.
type Amount struct {
	CountedViews int64
	AmountCents  int64
}

// ComputeAmount derives the billable amount for one pledge.
//
//   - countedViews = min(finalViews, viewsCap): the campaign-wide cap limits
//     every pledge identically.
//   - Billing granularity is whole thousands of views; fractional thousands
//     are not charged.
//   - donorCapCents, when set, is a hard ceiling on the amount.
//
// Inputs are pre-validated by the caller: finalViews must be non-negative,
// viewsCap and ratePer1000Cents positive, donorCapCents nil or positive.
func ComputeAmount(finalViews, viewsCap, ratePer1000Cents int64, donorCapCents *int64) Amount {
	counted := finalViews
	if viewsCap < counted {
		counted = viewsCap
	}

	units := counted / 1000
	amount := units * ratePer1000Cents

	if donorCapCents != nil && amount > *donorCapCents {
		amount = *donorCapCents
	}

	if amount > 0 && amount < MinChargeCents {
		amount = MinChargeCents
	}

	return Amount{CountedViews: counted, AmountCents: amount}
}
