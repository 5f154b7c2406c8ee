package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/bootstrap"
	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/database"
	"github.com/noah-isme/grade-sanchalaak/internal/handler"
	"github.com/noah-isme/grade-sanchalaak/internal/logging"
	"github.com/noah-isme/grade-sanchalaak/internal/middleware"
	"github.com/noah-isme/grade-sanchalaak/internal/models"
	"github.com/noah-isme/grade-sanchalaak/internal/repository"
	"github.com/noah-isme/grade-sanchalaak/internal/router"
	"github.com/noah-isme/grade-sanchalaak/internal/service"
	cloud "github.com/noah-isme/grade-sanchalaak/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
		Service: cfg.AppName,
	})
	defer logCloser.Close()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("invalid server configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.Evaluation{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	probes := map[string]handler.Probe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var redisClient *redis.Client
	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		limiterStorage = middleware.NewRedisStorage(redisClient, "grade:limiter:")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
	}

	var uploader service.FileUploader
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		store, err := cloud.New(cloudCfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create cloudinary client")
		}
		uploader = store
	} else {
		logger.Info().Msg("cloudinary not configured, original files are not retained")
	}

	pipeline, err := bootstrap.NewPipeline(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build grading pipeline")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)

	reports := service.NewReportCache(redisClient, cfg.ReportCacheTTL, logger)
	progress := service.NewProgressService(redisClient, "grade", natsConn, logger)

	assignmentService := service.NewAssignmentService(assignmentRepo, pipeline.Extractor, reports, validate, cfg.Scoring.DefaultMaxPoints, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, pipeline.Parser, uploader, reports, validate, cfg.UploadMaxSizeMB, logger)
	evaluationService := service.NewEvaluationService(assignmentRepo, submissionRepo, evaluationRepo, pipeline.Runner, progress, reports, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB*20 + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, MetricsPrefix: router.GradingPrefix, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, progress, logger),
		HealthProbes:      probes,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		LimiterStorage:    limiterStorage,
		ExposeMetrics:     true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	progress.Start(ctx)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("ai_provider", pipeline.LLM.Name()).Msg("grading api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(ctx, app, logger)
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
