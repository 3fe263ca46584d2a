package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluation-api/internal/config"
	"github.com/noah-isme/gema-evaluation-api/internal/database"
	"github.com/noah-isme/gema-evaluation-api/internal/directory"
	"github.com/noah-isme/gema-evaluation-api/internal/handler"
	"github.com/noah-isme/gema-evaluation-api/internal/lock"
	"github.com/noah-isme/gema-evaluation-api/internal/middleware"
	"github.com/noah-isme/gema-evaluation-api/internal/models"
	"github.com/noah-isme/gema-evaluation-api/internal/repository"
	"github.com/noah-isme/gema-evaluation-api/internal/router"
	"github.com/noah-isme/gema-evaluation-api/internal/scoring"
	"github.com/noah-isme/gema-evaluation-api/internal/service"
	"github.com/noah-isme/gema-evaluation-api/internal/utils"
)

type directorySource interface {
	directory.Directory
	directory.QuestionSource
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	policy, err := scoring.ParseGatePolicy(cfg.UnansweredGate)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid scoring configuration")
	}

	var db *gorm.DB
	if cfg.UsesDatabase() {
		driver := cfg.StoreDriver
		if driver == config.StoreDriverFile {
			driver = config.StoreDriverPostgres
		}
		db, err = database.Connect(driver, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := db.AutoMigrate(&models.Department{}, &models.StaffMember{}, &models.FormQuestion{}, &models.Evaluation{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
	}

	var evaluations repository.EvaluationRepository
	switch cfg.StoreDriver {
	case config.StoreDriverFile:
		evaluations, err = repository.NewEvaluationFileRepository(cfg.StoreDir, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open evaluation store")
		}
	default:
		evaluations = repository.NewEvaluationGormRepository(db)
	}

	var people directorySource
	switch cfg.DirectorySource {
	case config.DirectorySourceDatabase:
		people = directory.NewGormDirectory(db)
	default:
		roster, err := directory.LoadRoster(cfg.DirectoryFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load directory roster")
		}
		people = directory.NewStaticDirectory(roster)
		if db != nil {
			// The relational store lists departments through staff_members.
			if err := directory.SyncRoster(context.Background(), db, roster); err != nil {
				logger.Fatal().Err(err).Msg("failed to sync directory roster")
			}
		}
	}

	var probes []handler.HealthProbe
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to access database pool")
		}
		probes = append(probes, handler.HealthProbe{Name: "database", Check: sqlDB.PingContext})
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisURL != "" {
		redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		probes = append(probes, handler.HealthProbe{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
		locker = lock.NewRedisLocker(redisClient, "", lock.WithTTL(cfg.LockTTL), lock.WithWait(cfg.LockWait))
	}

	var publisher service.EvaluationEventPublisher
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Drain()
		probes = append(probes, handler.HealthProbe{Name: "nats", Check: func(context.Context) error {
			if !natsConn.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}})
		publisher = service.NewNATSEvaluationPublisher(natsConn, cfg.NATSSubject)
	}

	validate := utils.NewValidator()

	submissionService := service.NewEvaluationSubmissionService(evaluations, people, people, locker, publisher, validate, policy, logger)
	statusService := service.NewEvaluationStatusService(evaluations, people, validate, logger)
	evaluationHandler := handler.NewEvaluationHandler(submissionService, statusService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	deps := router.Dependencies{
		EvaluationHandler: evaluationHandler,
		SubmitRateLimit:   middleware.RateLimit("evaluation-submit", cfg.SubmitRateMax, cfg.SubmitRateWin),
		HealthProbes:      probes,
	}
	if cfg.JWTSecret != "" {
		deps.JWTMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	middleware.Register(app, middleware.Config{
		Logger:       logger,
		AllowOrigins: cfg.CORSOrigins,
		AccessLog:    cfg.AppEnv == "development",
	})
	router.Register(app, cfg, deps)

	go func() {
		logger.Info().
			Str("address", cfg.HTTPAddress()).
			Str("store", cfg.StoreDriver).
			Str("directory", cfg.DirectorySource).
			Msg("evaluation api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
