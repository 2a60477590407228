// Package payments wraps stripe-go behind an explicitly constructed provider
// handle. Nothing in this package touches the global stripe.Key.
package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

// Currency is the single supported settlement currency. Amounts are always
// integral minor units.
const Currency = "usd"

// Session is the subset of a provider checkout session the reconciler needs.
type Session struct {
	ID            string
	URL           string
	CustomerID    string
	SetupIntentID string
	Metadata      map[string]string
}

// SetupIntent is the subset of a provider setup intent the reconciler needs.
type SetupIntent struct {
	ID              string
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// ChargeRequest describes one off-session, auto-confirmed charge attempt.
type ChargeRequest struct {
	AmountCents     int64
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// ChargeError is a classified provider decline. IntentID and IntentStatus are
// populated when the provider created a payment intent before failing.
type ChargeError struct {
	Code         string
	Message      string
	IntentID     string
	IntentStatus string
}

func (e *ChargeError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("charge declined: %s", e.Code)
}

// RequiresAction reports whether the decline needs the customer to complete
// authentication rather than being a genuine failure.
func (e *ChargeError) RequiresAction() bool {
	return e.Code == string(stripe.ErrorCodeAuthenticationRequired) ||
		e.IntentStatus == string(stripe.PaymentIntentStatusRequiresAction)
}

type StripeProvider struct {
	api        *client.API
	successURL string
	cancelURL  string
	log        *zap.Logger
}

func NewStripeProvider(secretKey, successURL, cancelURL string, log *zap.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{
		api:        api,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        log,
	}
}

func (p *StripeProvider) RetrieveCheckoutSession(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}

	out := &Session{ID: s.ID, URL: s.URL, Metadata: s.Metadata}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.SetupIntent != nil {
		out.SetupIntentID = s.SetupIntent.ID
	}
	return out, nil
}

func (p *StripeProvider) RetrieveSetupIntent(ctx context.Context, id string) (*SetupIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx

	si, err := p.api.SetupIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve setup intent %s: %w", id, err)
	}

	out := &SetupIntent{ID: si.ID, Metadata: si.Metadata}
	if si.Customer != nil {
		out.CustomerID = si.Customer.ID
	}
	if si.PaymentMethod != nil {
		out.PaymentMethodID = si.PaymentMethod.ID
	}
	return out, nil
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateSetupSession opens a mode=setup checkout session so the donor can
// store a payment method without being charged yet.
func (p *StripeProvider) CreateSetupSession(ctx context.Context, customerID string, metadata map[string]string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Customer:   stripe.String(customerID),
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		Metadata:   metadata,
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create setup session: %w", err)
	}
	return &Session{ID: s.ID, URL: s.URL, CustomerID: customerID, Metadata: metadata}, nil
}

// ChargeOffSession creates and confirms a payment intent against a stored
// payment method. Provider declines come back as *ChargeError; anything else
// is a transport-level error.
func (p *StripeProvider) ChargeOffSession(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(Currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		var sErr *stripe.Error
		if errors.As(err, &sErr) {
			ce := &ChargeError{Code: string(sErr.Code), Message: sErr.Msg}
			if sErr.PaymentIntent != nil {
				ce.IntentID = sErr.PaymentIntent.ID
				ce.IntentStatus = string(sErr.PaymentIntent.Status)
			}
			return "", ce
		}
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	return pi.ID, nil
}
