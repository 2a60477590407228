package handlers

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/auth"
	"github.com/viewpledge/backend/internal/config"
	"github.com/viewpledge/backend/internal/http/dto"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// AdminLogin exchanges the operator password for a short-lived admin token.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if h.cfg.AdminPassword == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "admin login is not configured"})
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.cfg.AdminPassword)) != 1 {
		h.log.Warn("admin login rejected", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid password"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, auth.RoleAdmin, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to issue admin token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AdminAuthResponse{Token: token})
}
