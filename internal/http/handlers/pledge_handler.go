package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/http/dto"
	"github.com/viewpledge/backend/internal/repositories"
	"github.com/viewpledge/backend/internal/services"
)

type PledgeHandler struct {
	pledgeService *services.PledgeService
	log           *zap.Logger
}

func NewPledgeHandler(pledgeService *services.PledgeService, log *zap.Logger) *PledgeHandler {
	return &PledgeHandler{pledgeService: pledgeService, log: log}
}

func (h *PledgeHandler) CreatePledge(c *fiber.Ctx) error {
	var req dto.CreatePledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	result, err := h.pledgeService.CreatePledge(c.Context(), services.CreatePledgeInput{
		CampaignID:       campaignID,
		Name:             req.Name,
		Email:            req.Email,
		RatePer1000Cents: req.RatePer1000Cents,
		CapAmountCents:   req.CapAmountCents,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUpstreamUnavailable):
			h.log.Error("pledge creation failed upstream", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "payment provider unavailable"})
		case errors.Is(err, services.ErrCampaignNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(dto.CreatePledgeResponse{
		PledgeID:   result.PledgeID.String(),
		SessionURL: result.SessionURL,
	})
}

// ConfirmSetup is the synchronous client callback after checkout completes.
// It feeds the same reconciler as the webhook, so duplicate confirmation is
// harmless.
func (h *PledgeHandler) ConfirmSetup(c *fiber.Ctx) error {
	var req dto.ConfirmSetupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.SessionID == "" && req.SetupIntentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "session_id or setup_intent_id is required"})
	}

	pledgeID, err := h.pledgeService.ReconcileSetup(c.Context(), services.ReconcileInput{
		SessionID:     req.SessionID,
		SetupIntentID: req.SetupIntentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotPledgeSetup):
			return c.JSON(dto.ConfirmSetupResponse{Status: "ignored"})
		case errors.Is(err, services.ErrUpstreamUnavailable):
			h.log.Error("setup confirmation failed upstream", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Error: "payment provider unavailable"})
		case errors.Is(err, services.ErrSetupIncomplete):
			return c.Status(fiber.StatusConflict).JSON(dto.ConfirmSetupResponse{
				PledgeID: pledgeID.String(),
				Status:   "setup_failed",
			})
		case errors.Is(err, services.ErrNoPledgeMatch):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "no matching pledge"})
		default:
			h.log.Error("setup confirmation failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
		}
	}

	return c.JSON(dto.ConfirmSetupResponse{PledgeID: pledgeID.String(), Status: "complete"})
}

func (h *PledgeHandler) GetPledge(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid pledge id"})
	}

	pledge, err := h.pledgeService.GetPledge(c.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "pledge not found"})
		}
		h.log.Error("get pledge failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.PledgeStatusResponse{
		PledgeID:            pledge.ID.String(),
		SetupStatus:         pledge.SetupStatus,
		ChargeStatus:        pledge.ChargeStatus,
		ComputedViews:       pledge.ComputedViews,
		ComputedAmountCents: pledge.ComputedAmountCents,
	})
}
