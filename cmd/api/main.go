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
	"github.com/rs/zerolog"

	"github.com/noah-isme/sage-go-api/internal/config"
	"github.com/noah-isme/sage-go-api/internal/database"
	"github.com/noah-isme/sage-go-api/internal/handler"
	"github.com/noah-isme/sage-go-api/internal/middleware"
	"github.com/noah-isme/sage-go-api/internal/models"
	"github.com/noah-isme/sage-go-api/internal/observability"
	"github.com/noah-isme/sage-go-api/internal/repository"
	"github.com/noah-isme/sage-go-api/internal/router"
	"github.com/noah-isme/sage-go-api/internal/scoring"
	"github.com/noah-isme/sage-go-api/internal/service"
	"github.com/noah-isme/sage-go-api/pkg/ai"
	"github.com/noah-isme/sage-go-api/pkg/similarity"
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

	if err := db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.Question{}, &models.EvaluationRecord{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, result caching disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, lifecycle events disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	var oracle similarity.Oracle = similarity.NewLexicalOracle()
	if cfg.UseEmbeddings {
		embedding, err := similarity.NewEmbeddingOracle(similarity.EmbeddingConfig{
			BaseURL: cfg.OllamaBaseURL,
			APIKey:  cfg.OllamaAPIKey,
			Model:   cfg.EmbeddingModel,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create embedding oracle: %v", err)
		}
		oracle = embedding
	}

	defaults := scoring.DefaultConfig()
	if cfg.ModelName != "" {
		defaults.ModelName = cfg.ModelName
	}

	explainer, err := ai.NewOllamaEvaluator(ai.OllamaConfig{
		BaseURL: cfg.OllamaBaseURL,
		APIKey:  cfg.OllamaAPIKey,
		Model:   defaults.ModelName,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create evaluator: %v", err)
	}

	evaluationRepo := repository.NewEvaluationRepository(db)
	examRepo := repository.NewExamRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	settingsService := service.NewSettingsService(defaults, validate, logger)
	examService := service.NewExamService(examRepo, validate, logger)
	evaluationService := service.NewEvaluationService(
		evaluationRepo, examRepo, studentRepo,
		settingsService, oracle, explainer,
		natsConn, cfg.NATSSubject,
		validate, logger,
	)
	approvalService := service.NewApprovalService(evaluationRepo, redisClient, validate, logger)
	resultService := service.NewResultService(evaluationRepo, redisClient, cfg.ResultCacheTTL, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:       handler.NewExamHandler(examService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, logger),
		ApprovalHandler:   handler.NewApprovalHandler(approvalService, logger),
		ResultHandler:     handler.NewResultHandler(resultService, logger),
		SettingsHandler:   handler.NewSettingsHandler(settingsService, logger),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		ReviewerOnly:      middleware.RequireRole("admin", "teacher"),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
