package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Ahmad-Mosha/chat-api/internal/config"
	"github.com/Ahmad-Mosha/chat-api/internal/database"
	"github.com/Ahmad-Mosha/chat-api/internal/handler"
	"github.com/Ahmad-Mosha/chat-api/internal/middleware"
	"github.com/Ahmad-Mosha/chat-api/internal/models"
	"github.com/Ahmad-Mosha/chat-api/internal/repository"
	"github.com/Ahmad-Mosha/chat-api/internal/router"
	"github.com/Ahmad-Mosha/chat-api/internal/service"
	cloud "github.com/Ahmad-Mosha/chat-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.ConversationAdmin{},
		&models.Message{},
		&models.MessageReaction{},
		&models.MessageRead{},
		&models.Attachment{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional; without them realtime fan-out stays
	// single-node.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, cross-node delivery via redis disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	statsRepo := repository.NewStatsRepository(db)

	presence := service.NewPresenceRegistry()
	userService := service.NewUserService(userRepo, validate, logger)
	conversationService := service.NewConversationService(conversationRepo, userRepo, messageRepo, validate, logger)
	messageService := service.NewMessageService(messageRepo, conversationRepo, validate, logger)
	deliveryService := service.NewDeliveryService(conversationRepo, messageService, userService, presence, redisClient, cfg.EventChannel, natsConn, validate, logger)
	statsService := service.NewUsageStatsService(statsRepo, presence, redisClient, cfg.StatsCacheTTL, logger)
	seedService := service.NewSeedService(userRepo, conversationRepo, cfg.SeedEnabled, cfg.SeedToken, logger)

	var uploadHandler *handler.UploadHandler
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		uploadService := service.NewUploadService(uploader, attachmentRepo, cfg.UploadMaxSizeMB, logger)
		uploadHandler = handler.NewUploadHandler(uploadService, logger)
	} else {
		logger.Warn().Msg("cloudinary credentials not configured, attachment uploads disabled")
	}

	conversationHandler := handler.NewConversationHandler(conversationService, deliveryService, logger)
	messageHandler := handler.NewMessageHandler(messageService, deliveryService, logger)
	userHandler := handler.NewUserHandler(userService, deliveryService, logger)
	gatewayHandler := handler.NewGatewayHandler(deliveryService, logger)
	statsHandler := handler.NewStatsHandler(statsService, logger)
	seedHandler := handler.NewSeedHandler(seedService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		ConversationHandler: conversationHandler,
		MessageHandler:      messageHandler,
		UserHandler:         userHandler,
		UploadHandler:       uploadHandler,
		GatewayHandler:      gatewayHandler,
		StatsHandler:        statsHandler,
		SeedHandler:         seedHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deliveryService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(runCtx, app)
}

func waitForShutdown(runCtx context.Context, app *fiber.App) {
	<-runCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
