package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/config"
	"github.com/viewpledge/backend/internal/http/handlers"
	"github.com/viewpledge/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	pledgeHandler *handlers.PledgeHandler,
	campaignHandler *handlers.CampaignHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Stripe webhook (authenticated by signature, not by token)
	app.Post("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	api := app.Group("/api/v1")

	// Admin auth (public)
	api.Post("/auth/admin", authHandler.AdminLogin)

	// Public pledge surface, rate limited
	public := api.Group("", middleware.RateLimitMiddleware(rdb, cfg.PledgeRateLimit, cfg.PledgeRateLimitWindow))
	public.Post("/pledges", pledgeHandler.CreatePledge)
	public.Post("/pledges/confirm", pledgeHandler.ConfirmSetup)
	public.Get("/pledges/:id", pledgeHandler.GetPledge)

	// Admin endpoints
	admin := api.Group("", middleware.AdminMiddleware(cfg, log))
	admin.Post("/campaigns", campaignHandler.CreateCampaign)
	admin.Get("/campaigns", campaignHandler.ListCampaigns)
	admin.Get("/campaigns/:id", campaignHandler.GetCampaign)
	admin.Post("/campaigns/:id/lock", campaignHandler.LockCampaign)
	admin.Post("/campaigns/:id/charge", campaignHandler.RunCharges)
	admin.Get("/campaigns/:id/pledges", campaignHandler.ListPledges)

	// WebSocket (admin live event feed)
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
