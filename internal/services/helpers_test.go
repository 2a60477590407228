package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/events"
	"github.com/viewpledge/backend/internal/models"
	"github.com/viewpledge/backend/internal/payments"
	"github.com/viewpledge/backend/internal/repositories"
)

// In-memory stores and provider used across the service tests.

type fakeCampaignStore struct {
	campaigns map[uuid.UUID]*models.Campaign
}

func newFakeCampaignStore(campaigns ...*models.Campaign) *fakeCampaignStore {
	s := &fakeCampaignStore{campaigns: make(map[uuid.UUID]*models.Campaign)}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *fakeCampaignStore) Create(_ context.Context, c *models.Campaign) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.campaigns[c.ID] = c
	return nil
}

func (s *fakeCampaignStore) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeCampaignStore) List(_ context.Context) ([]models.Campaign, error) {
	var out []models.Campaign
	for _, c := range s.campaigns {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeCampaignStore) SetFinalViews(_ context.Context, id uuid.UUID, finalViews int64) error {
	c, ok := s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusOpen {
		return repositories.ErrNotFound
	}
	c.FinalViews = &finalViews
	c.Status = models.CampaignStatusLocked
	return nil
}

func (s *fakeCampaignStore) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	c, ok := s.campaigns[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Status = status
	return nil
}

type fakePledgeStore struct {
	pledges map[uuid.UUID]*models.Pledge
	seq     int
}

func newFakePledgeStore(pledges ...*models.Pledge) *fakePledgeStore {
	s := &fakePledgeStore{pledges: make(map[uuid.UUID]*models.Pledge)}
	for _, p := range pledges {
		s.seq++
		p.CreatedAt = time.Unix(int64(s.seq), 0)
		s.pledges[p.ID] = p
	}
	return s
}

func (s *fakePledgeStore) Create(_ context.Context, p *models.Pledge) error {
	p.ID = uuid.New()
	s.seq++
	p.CreatedAt = time.Unix(int64(s.seq), 0)
	p.UpdatedAt = p.CreatedAt
	s.pledges[p.ID] = p
	return nil
}

func (s *fakePledgeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Pledge, error) {
	p, ok := s.pledges[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePledgeStore) FindLatestByCustomer(_ context.Context, customerID string) (*models.Pledge, error) {
	var match *models.Pledge
	for _, p := range s.pledges {
		if p.StripeCustomerID == nil || *p.StripeCustomerID != customerID {
			continue
		}
		if match == nil || p.CreatedAt.After(match.CreatedAt) {
			match = p
		}
	}
	if match == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (s *fakePledgeStore) ListEligible(_ context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	var out []models.Pledge
	for _, p := range s.pledges {
		if p.CampaignID == campaignID && p.EligibleForCharge() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakePledgeStore) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]models.Pledge, error) {
	var out []models.Pledge
	for _, p := range s.pledges {
		if p.CampaignID == campaignID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakePledgeStore) CompleteSetup(_ context.Context, id uuid.UUID, customerID, paymentMethodID string) error {
	p, ok := s.pledges[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.StripeCustomerID = &customerID
	p.StripePaymentMethodID = &paymentMethodID
	p.SetupStatus = models.SetupStatusComplete
	p.ErrorMessage = nil
	return nil
}

func (s *fakePledgeStore) MarkSetupFailed(_ context.Context, id uuid.UUID, reason string) error {
	p, ok := s.pledges[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.SetupStatus = models.SetupStatusFailed
	p.ErrorMessage = &reason
	return nil
}

func (s *fakePledgeStore) UpdateComputed(_ context.Context, id uuid.UUID, views, amountCents int64) error {
	p, ok := s.pledges[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.ComputedViews = &views
	p.ComputedAmountCents = &amountCents
	return nil
}

func (s *fakePledgeStore) UpdateChargeOutcome(_ context.Context, id uuid.UUID, status string, intentID, errMsg *string) error {
	p, ok := s.pledges[id]
	if !ok || p.ChargeStatus != models.ChargeStatusNotCharged {
		return repositories.ErrNotFound
	}
	p.ChargeStatus = status
	p.StripePaymentIntentID = intentID
	p.ErrorMessage = errMsg
	return nil
}

// fakeProvider answers with canned sessions/intents and records charges.
type fakeProvider struct {
	sessions map[string]*payments.Session
	intents  map[string]*payments.SetupIntent

	sessionErr error
	intentErr  error

	customerSeq int
	customerErr error

	setupSessionErr error
	lastSetupMeta   map[string]string

	chargeErrByCustomer map[string]error
	charges             []payments.ChargeRequest
	chargeSeq           int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:            make(map[string]*payments.Session),
		intents:             make(map[string]*payments.SetupIntent),
		chargeErrByCustomer: make(map[string]error),
	}
}

func (f *fakeProvider) RetrieveCheckoutSession(_ context.Context, id string) (*payments.Session, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session %s", id)
	}
	return s, nil
}

func (f *fakeProvider) RetrieveSetupIntent(_ context.Context, id string) (*payments.SetupIntent, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	si, ok := f.intents[id]
	if !ok {
		return nil, fmt.Errorf("no such setup intent %s", id)
	}
	return si, nil
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _, _ string, _ map[string]string) (string, error) {
	if f.customerErr != nil {
		return "", f.customerErr
	}
	f.customerSeq++
	return fmt.Sprintf("cus_%d", f.customerSeq), nil
}

func (f *fakeProvider) CreateSetupSession(_ context.Context, customerID string, metadata map[string]string) (*payments.Session, error) {
	if f.setupSessionErr != nil {
		return nil, f.setupSessionErr
	}
	f.lastSetupMeta = metadata
	return &payments.Session{
		ID:         "cs_" + customerID,
		URL:        "https://checkout.example.com/" + customerID,
		CustomerID: customerID,
		Metadata:   metadata,
	}, nil
}

func (f *fakeProvider) ChargeOffSession(_ context.Context, req payments.ChargeRequest) (string, error) {
	f.charges = append(f.charges, req)
	if err, ok := f.chargeErrByCustomer[req.CustomerID]; ok {
		return "", err
	}
	f.chargeSeq++
	return fmt.Sprintf("pi_%d", f.chargeSeq), nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, events.Event) error { return nil }

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func testLogger() *zap.Logger { return zap.NewNop() }
