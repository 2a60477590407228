package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/config"
	"github.com/viewpledge/backend/internal/http/dto"
	"github.com/viewpledge/backend/internal/services"
)

// WebhookHandler receives Stripe events. Signature verification is the
// authentication mechanism for this endpoint.
type WebhookHandler struct {
	pledgeService *services.PledgeService
	cfg           *config.Config
	log           *zap.Logger
}

func NewWebhookHandler(pledgeService *services.PledgeService, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{pledgeService: pledgeService, cfg: cfg, log: log}
}

func (h *WebhookHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	if h.cfg.StripeWebhookSecret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "webhook secret not configured"})
	}

	event, err := webhook.ConstructEventWithOptions(c.Body(), c.Get("Stripe-Signature"),
		h.cfg.StripeWebhookSecret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.log.Warn("invalid stripe signature", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	var input services.ReconcileInput
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.log.Error("failed to parse checkout session", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "malformed event"})
		}
		input.SessionID = session.ID
		input.Metadata = session.Metadata
		if session.Customer != nil {
			input.CustomerID = session.Customer.ID
		}
		if session.SetupIntent != nil {
			input.SetupIntentID = session.SetupIntent.ID
		}
	case "setup_intent.succeeded":
		var intent stripe.SetupIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			h.log.Error("failed to parse setup intent", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "malformed event"})
		}
		input.SetupIntentID = intent.ID
		input.Metadata = intent.Metadata
		if intent.Customer != nil {
			input.CustomerID = intent.Customer.ID
		}
	default:
		return c.JSON(dto.SuccessResponse{OK: true})
	}

	pledgeID, err := h.pledgeService.ReconcileSetup(c.Context(), input)
	switch {
	case err == nil:
		h.log.Info("webhook reconciled pledge setup",
			zap.String("event_id", event.ID),
			zap.String("pledge_id", pledgeID.String()),
		)
	case errors.Is(err, services.ErrNotPledgeSetup):
		// Another system's flow; acknowledge so Stripe stops redelivering.
	case errors.Is(err, services.ErrUpstreamUnavailable):
		// Let Stripe retry later.
		h.log.Error("webhook reconcile hit provider error", zap.String("event_id", event.ID), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "payment provider unavailable"})
	case errors.Is(err, services.ErrNoPledgeMatch), errors.Is(err, services.ErrSetupIncomplete):
		// Terminal for this event; redelivery would reach the same state.
		h.log.Warn("webhook reconcile conflict", zap.String("event_id", event.ID), zap.Error(err))
	default:
		h.log.Error("webhook reconcile failed", zap.String("event_id", event.ID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
