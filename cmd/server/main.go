// Package main runs the approval credential HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/waas-labs/backend/config"
	"github.com/waas-labs/backend/internal/auth"
	"github.com/waas-labs/backend/internal/chain"
	"github.com/waas-labs/backend/internal/credential"
	"github.com/waas-labs/backend/internal/email"
	"github.com/waas-labs/backend/internal/events"
	"github.com/waas-labs/backend/internal/middleware"
	"github.com/waas-labs/backend/internal/models"
	"github.com/waas-labs/backend/internal/registrations"
	"github.com/waas-labs/backend/internal/worker"
	"github.com/waas-labs/backend/internal/zkproof"
	"github.com/waas-labs/backend/pkg/database"
	"github.com/waas-labs/backend/pkg/queue"
	"github.com/waas-labs/backend/pkg/redis"
	"github.com/waas-labs/backend/pkg/response"
	"github.com/waas-labs/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			QRBucket:        cfg.AWS.QRBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	var registry *chain.Registry
	if cfg.Chain.RPCURL != "" && cfg.Chain.RegistryAddress != "" {
		registry, err = chain.NewRegistry(cfg.Chain.RPCURL, cfg.Chain.RegistryAddress)
		if err != nil {
			logger.Warn("chain client disabled", zap.Error(err))
		} else {
			defer registry.Close()
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	prover := zkproof.NewProver(zkproof.ArtifactPaths{
		ConstraintSystem: cfg.Circuit.ConstraintSystemPath,
		ProvingKey:       cfg.Circuit.ProvingKeyPath,
		VerifyingKey:     cfg.Circuit.VerifyingKeyPath,
	}, logger)
	if !prover.Ready() {
		logger.Warn("circuit artifacts missing, proofs will be mocked")
	}

	sender := email.NewSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.FromAddress, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo)

	// Registrations
	var images credential.ImageHost
	if s3Client != nil {
		images = s3Client
	}
	issuer := credential.NewIssuer(prover, images, logger)
	regRepo := registrations.NewRepository(pool)

	var mailer registrations.Mailer
	if sender != nil {
		mailer = sender
	}
	var receipts registrations.ReceiptConfirmer
	if registry != nil {
		receipts = registry
	}
	regService := registrations.NewService(regRepo, eventRepo, issuer, mailer, jobQueue, receipts, logger)
	regHandler := registrations.NewHandler(regService, regRepo, authRepo, logger)

	// Delivery retries run inside the server too, so a single-process deploy
	// still gets them. Without SMTP credentials no consumer starts here and
	// queued deliveries wait for a cmd/worker process that has them.
	processor := worker.NewDeliveryProcessor(regRepo, eventRepo, sender, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public: browse events, register a wallet, self-service lifecycle
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.Get)
	router.POST("/events/:id/registrations", regHandler.Submit)
	router.GET("/wallets/:address/registrations", regHandler.ListByWallet)
	router.GET("/registrations/:id", regHandler.Get)
	router.POST("/registrations/:id/cancel", regHandler.Cancel)
	router.POST("/registrations/:id/verify", regHandler.RecordVerification)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole(models.RoleAdmin), authHandler.ListUsers)
		api.GET("/auth/me", authHandler.Me)

		// Events (admin)
		api.POST("/events", middleware.RequireRole(models.RoleAdmin), eventHandler.Create)
		api.GET("/me/events", middleware.RequireRole(models.RoleAdmin), eventHandler.ListMine)
		api.PUT("/events/:id", middleware.RequireRole(models.RoleAdmin), eventHandler.Update)
		api.DELETE("/events/:id", middleware.RequireRole(models.RoleAdmin), eventHandler.Delete)

		// Approval queue and decisions (admin)
		api.GET("/events/:id/registrations", middleware.RequireRole(models.RoleAdmin), regHandler.ListByEvent)
		api.POST("/registrations/:id/approve", middleware.RequireRole(models.RoleAdmin), regHandler.Approve)
		api.POST("/registrations/:id/reject", middleware.RequireRole(models.RoleAdmin), regHandler.Reject)
		api.POST("/registrations/:id/revoke", middleware.RequireRole(models.RoleAdmin), regHandler.Revoke)
		api.POST("/registrations/:id/retry-proof", middleware.RequireRole(models.RoleAdmin), regHandler.RetryProof)

		// Door scanning (admin or staff)
		api.POST("/events/:id/verify-qr", middleware.RequireRole(models.RoleAdmin, models.RoleStaff), regHandler.VerifyQR)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if sender != nil {
		go processor.Run(workerCtx)
		go processor.RunSweep(workerCtx)
		logger.Info("delivery worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
