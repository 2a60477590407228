package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/http/dto"
	"github.com/viewpledge/backend/internal/services"
)

type CampaignHandler struct {
	campaignService *services.CampaignService
	chargeService   *services.ChargeService
	log             *zap.Logger
}

func NewCampaignHandler(campaignService *services.CampaignService, chargeService *services.ChargeService, log *zap.Logger) *CampaignHandler {
	return &CampaignHandler{campaignService: campaignService, chargeService: chargeService, log: log}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "title is required"})
	}

	campaign, err := h.campaignService.Create(c.Context(), req.Title, req.ViewsCap)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaignService.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("get campaign failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.campaignService.List(c.Context())
	if err != nil {
		h.log.Error("list campaigns failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

// LockCampaign records the measured final view count and closes the campaign
// to new pledges.
func (h *CampaignHandler) LockCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.LockCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.FinalViews == nil || *req.FinalViews < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "final_views must be a non-negative integer"})
	}

	campaign, err := h.campaignService.Lock(c.Context(), id, *req.FinalViews)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCampaignNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		case errors.Is(err, services.ErrCampaignNotLocked):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
		}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

// RunCharges triggers the batch settlement for one campaign. Always returns
// aggregate counts when the run executed, even if every pledge failed.
func (h *CampaignHandler) RunCharges(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	counts, err := h.chargeService.RunCharges(c.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCampaignNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		case errors.Is(err, services.ErrFinalViewsUnset):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
		default:
			h.log.Error("charge run failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
		}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: counts})
}

func (h *CampaignHandler) ListPledges(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	pledges, err := h.campaignService.ListPledges(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrCampaignNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
		}
		h.log.Error("list pledges failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pledges})
}
