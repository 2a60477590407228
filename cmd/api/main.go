package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/viewpledge/backend/internal/config"
	"github.com/viewpledge/backend/internal/db"
	"github.com/viewpledge/backend/internal/events"
	apphttp "github.com/viewpledge/backend/internal/http"
	"github.com/viewpledge/backend/internal/http/handlers"
	"github.com/viewpledge/backend/internal/payments"
	"github.com/viewpledge/backend/internal/repositories"
	"github.com/viewpledge/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	campaignRepo := repositories.NewCampaignRepo(pool)
	pledgeRepo := repositories.NewPledgeRepo(pool)

	// Payment provider
	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeSuccessURL, cfg.StripeCancelURL, log)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	pledgeService := services.NewPledgeService(campaignRepo, pledgeRepo, provider, publisher, log)
	chargeService := services.NewChargeService(campaignRepo, pledgeRepo, provider, publisher, log)
	campaignService := services.NewCampaignService(campaignRepo, pledgeRepo, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, log)
	pledgeHandler := handlers.NewPledgeHandler(pledgeService, log)
	campaignHandler := handlers.NewCampaignHandler(campaignService, chargeService, log)
	webhookHandler := handlers.NewWebhookHandler(pledgeService, cfg, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, pledgeHandler, campaignHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
