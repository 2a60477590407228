package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/payments"
)

func openCampaign() *models.Campaign {
	return &models.Campaign{
		ID:       uuid.New(),
		Title:    "launch video",
		ViewsCap: 20000,
		Status:   models.CampaignStatusOpen,
	}
}

func pendingPledge(campaignID uuid.UUID, customer string) *models.Pledge {
	return &models.Pledge{
		ID:               uuid.New(),
		CampaignID:       campaignID,
		Name:             "Donor",
		Email:            "donor@example.com",
		RatePer1000Cents: 500,
		ViewsCap:         20000,
		SetupStatus:      models.SetupStatusPending,
		ChargeStatus:     models.ChargeStatusNotCharged,
		StripeCustomerID: strp(customer),
	}
}

func newPledgeService(campaigns *fakeCampaignStore, pledges *fakePledgeStore, provider *fakeProvider) *PledgeService {
	return NewPledgeService(campaigns, pledges, provider, nopPublisher{}, testLogger())
}

func TestCreatePledgeValidatesTerms(t *testing.T) {
	campaign := openCampaign()
	svc := newPledgeService(newFakeCampaignStore(campaign), newFakePledgeStore(), newFakeProvider())

	tests := []struct {
		name  string
		input CreatePledgeInput
	}{
		{"missing name", CreatePledgeInput{CampaignID: campaign.ID, Email: "d@example.com", RatePer1000Cents: 500}},
		{"missing email", CreatePledgeInput{CampaignID: campaign.ID, Name: "D", RatePer1000Cents: 500}},
		{"rate below minimum", CreatePledgeInput{CampaignID: campaign.ID, Name: "D", Email: "d@example.com", RatePer1000Cents: 99}},
		{"cap below minimum", CreatePledgeInput{CampaignID: campaign.ID, Name: "D", Email: "d@example.com", RatePer1000Cents: 500, CapAmountCents: int64p(50)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePledge(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidPledgeTerms) {
				t.Errorf("err = %v, want ErrInvalidPledgeTerms", err)
			}
		})
	}
}

func TestCreatePledgeRejectsClosedCampaign(t *testing.T) {
	campaign := openCampaign()
	campaign.Status = models.CampaignStatusLocked
	svc := newPledgeService(newFakeCampaignStore(campaign), newFakePledgeStore(), newFakeProvider())

	_, err := svc.CreatePledge(context.Background(), CreatePledgeInput{
		CampaignID: campaign.ID, Name: "D", Email: "d@example.com", RatePer1000Cents: 500,
	})
	if !errors.Is(err, ErrCampaignNotOpen) {
		t.Fatalf("err = %v, want ErrCampaignNotOpen", err)
	}
}

func TestCreatePledgeHappyPath(t *testing.T) {
	campaign := openCampaign()
	campaign.ViewsCap = 0 // snapshot falls back to the default
	pledges := newFakePledgeStore()
	provider := newFakeProvider()
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	result, err := svc.CreatePledge(context.Background(), CreatePledgeInput{
		CampaignID:       campaign.ID,
		Name:             "Donor",
		Email:            "donor@example.com",
		RatePer1000Cents: 500,
		CapAmountCents:   int64p(6000),
	})
	if err != nil {
		t.Fatalf("CreatePledge: %v", err)
	}
	if result.SessionURL == "" {
		t.Error("expected a checkout session URL")
	}

	pledge, err := pledges.GetByID(context.Background(), result.PledgeID)
	if err != nil {
		t.Fatalf("pledge row not created: %v", err)
	}
	if pledge.SetupStatus != models.SetupStatusPending {
		t.Errorf("setup_status = %s, want pending", pledge.SetupStatus)
	}
	if pledge.ViewsCap != models.DefaultViewsCap {
		t.Errorf("views_cap snapshot = %d, want default %d", pledge.ViewsCap, models.DefaultViewsCap)
	}
	if pledge.StripeCustomerID == nil {
		t.Error("customer id should be stored at creation")
	}

	if provider.lastSetupMeta[MetaFlow] != FlowPledgeSetup {
		t.Errorf("session metadata flow = %q, want %q", provider.lastSetupMeta[MetaFlow], FlowPledgeSetup)
	}
	if provider.lastSetupMeta[MetaPledgeID] != result.PledgeID.String() {
		t.Errorf("session metadata pledge_id = %q, want %q", provider.lastSetupMeta[MetaPledgeID], result.PledgeID)
	}
}

func TestCreatePledgeProviderDown(t *testing.T) {
	campaign := openCampaign()
	provider := newFakeProvider()
	provider.customerErr = fmt.Errorf("connection refused")
	svc := newPledgeService(newFakeCampaignStore(campaign), newFakePledgeStore(), provider)

	_, err := svc.CreatePledge(context.Background(), CreatePledgeInput{
		CampaignID: campaign.ID, Name: "D", Email: "d@example.com", RatePer1000Cents: 500,
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestReconcileSetupFromEventMetadata(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", PaymentMethodID: "pm_1",
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{
		Metadata:      map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
		SetupIntentID: "seti_1",
	})
	if err != nil {
		t.Fatalf("ReconcileSetup: %v", err)
	}
	if id != pledge.ID {
		t.Fatalf("pledge id = %s, want %s", id, pledge.ID)
	}

	got, _ := pledges.GetByID(context.Background(), pledge.ID)
	if got.SetupStatus != models.SetupStatusComplete {
		t.Errorf("setup_status = %s, want complete", got.SetupStatus)
	}
	if got.StripePaymentMethodID == nil || *got.StripePaymentMethodID != "pm_1" {
		t.Errorf("payment method = %v, want pm_1", got.StripePaymentMethodID)
	}
	if got.ErrorMessage != nil {
		t.Errorf("error message should be cleared, got %q", *got.ErrorMessage)
	}
}

func TestReconcileSetupForeignFlowIsNoOp(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, newFakeProvider())

	_, err := svc.ReconcileSetup(context.Background(), ReconcileInput{
		Metadata:      map[string]string{MetaFlow: "subscription_signup", MetaPledgeID: pledge.ID.String()},
		SetupIntentID: "seti_other",
	})
	if !errors.Is(err, ErrNotPledgeSetup) {
		t.Fatalf("err = %v, want ErrNotPledgeSetup", err)
	}

	got, _ := pledges.GetByID(context.Background(), pledge.ID)
	if got.SetupStatus != models.SetupStatusPending {
		t.Errorf("foreign flow mutated the pledge: setup_status = %s", got.SetupStatus)
	}
}

func TestReconcileSetupViaSessionLookup(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.sessions["cs_1"] = &payments.Session{
		ID:            "cs_1",
		CustomerID:    "cus_1",
		SetupIntentID: "seti_1",
		Metadata:      map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
	}
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", PaymentMethodID: "pm_1",
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{SessionID: "cs_1"})
	if err != nil {
		t.Fatalf("ReconcileSetup: %v", err)
	}
	if id != pledge.ID {
		t.Fatalf("pledge id = %s, want %s", id, pledge.ID)
	}
}

func TestReconcileSetupIdempotentReplay(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.sessions["cs_1"] = &payments.Session{
		ID:            "cs_1",
		CustomerID:    "cus_1",
		SetupIntentID: "seti_1",
		Metadata:      map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
	}
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", PaymentMethodID: "pm_1",
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	for i := 0; i < 2; i++ {
		id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{SessionID: "cs_1"})
		if err != nil {
			t.Fatalf("replay %d: %v", i+1, err)
		}
		if id != pledge.ID {
			t.Fatalf("replay %d resolved %s, want %s", i+1, id, pledge.ID)
		}
	}

	got, _ := pledges.GetByID(context.Background(), pledge.ID)
	if got.SetupStatus != models.SetupStatusComplete {
		t.Errorf("setup_status = %s, want complete", got.SetupStatus)
	}
	if *got.StripeCustomerID != "cus_1" || *got.StripePaymentMethodID != "pm_1" {
		t.Errorf("replay changed the stored binding: %v / %v", *got.StripeCustomerID, *got.StripePaymentMethodID)
	}
	if len(pledges.pledges) != 1 {
		t.Errorf("replay created pledge rows: %d total", len(pledges.pledges))
	}
}

func TestReconcileSetupCustomerFallback(t *testing.T) {
	campaign := openCampaign()
	older := pendingPledge(campaign.ID, "cus_1")
	newer := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(older, newer) // insertion order fixes created_at
	provider := newFakeProvider()
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", PaymentMethodID: "pm_1",
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	// Bare intent id, no metadata anywhere: correlation falls back to the
	// most recently created pledge for the customer.
	id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{SetupIntentID: "seti_1"})
	if err != nil {
		t.Fatalf("ReconcileSetup: %v", err)
	}
	if id != newer.ID {
		t.Fatalf("resolved %s, want the most recent pledge %s", id, newer.ID)
	}

	got, _ := pledges.GetByID(context.Background(), older.ID)
	if got.SetupStatus != models.SetupStatusPending {
		t.Errorf("older pledge was mutated: setup_status = %s", got.SetupStatus)
	}
}

func TestReconcileSetupIntentFetchFailure(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.intentErr = fmt.Errorf("connection reset")
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	_, err := svc.ReconcileSetup(context.Background(), ReconcileInput{
		Metadata:      map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
		SetupIntentID: "seti_1",
	})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}

	got, _ := pledges.GetByID(context.Background(), pledge.ID)
	if got.SetupStatus != models.SetupStatusPending {
		t.Errorf("provider failure mutated the pledge: setup_status = %s", got.SetupStatus)
	}
}

func TestReconcileSetupMissingPaymentMethod(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", // no payment method attached
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{
		Metadata:      map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
		SetupIntentID: "seti_1",
	})
	if !errors.Is(err, ErrSetupIncomplete) {
		t.Fatalf("err = %v, want ErrSetupIncomplete", err)
	}
	if id != pledge.ID {
		t.Fatalf("pledge id = %s, want %s", id, pledge.ID)
	}

	got, _ := pledges.GetByID(context.Background(), pledge.ID)
	if got.SetupStatus != models.SetupStatusFailed {
		t.Errorf("setup_status = %s, want failed", got.SetupStatus)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "missing payment method/customer" {
		t.Errorf("error message = %v, want missing payment method/customer", got.ErrorMessage)
	}
}

func TestReconcileSetupNoPledgeResolvable(t *testing.T) {
	campaign := openCampaign()
	pledges := newFakePledgeStore(pendingPledge(campaign.ID, "cus_other"))
	provider := newFakeProvider()
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_unknown", PaymentMethodID: "pm_1",
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	_, err := svc.ReconcileSetup(context.Background(), ReconcileInput{SetupIntentID: "seti_1"})
	if !errors.Is(err, ErrNoPledgeMatch) {
		t.Fatalf("err = %v, want ErrNoPledgeMatch", err)
	}

	for _, p := range pledges.pledges {
		if p.SetupStatus != models.SetupStatusPending {
			t.Errorf("unrelated pledge was mutated: setup_status = %s", p.SetupStatus)
		}
	}
}

func TestReconcileSetupIntentMetadataPledgeID(t *testing.T) {
	campaign := openCampaign()
	pledge := pendingPledge(campaign.ID, "cus_1")
	pledges := newFakePledgeStore(pledge)
	provider := newFakeProvider()
	provider.intents["seti_1"] = &payments.SetupIntent{
		ID: "seti_1", CustomerID: "cus_1", PaymentMethodID: "pm_1",
		Metadata: map[string]string{MetaFlow: FlowPledgeSetup, MetaPledgeID: pledge.ID.String()},
	}
	svc := newPledgeService(newFakeCampaignStore(campaign), pledges, provider)

	id, err := svc.ReconcileSetup(context.Background(), ReconcileInput{SetupIntentID: "seti_1"})
	if err != nil {
		t.Fatalf("ReconcileSetup: %v", err)
	}
	if id != pledge.ID {
		t.Fatalf("pledge id = %s, want %s (from intent metadata)", id, pledge.ID)
	}
}
