package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sena-attendance-api/internal/auth"
	"github.com/noah-isme/sena-attendance-api/internal/config"
	"github.com/noah-isme/sena-attendance-api/internal/database"
	"github.com/noah-isme/sena-attendance-api/internal/handler"
	"github.com/noah-isme/sena-attendance-api/internal/middleware"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
	"github.com/noah-isme/sena-attendance-api/internal/router"
	"github.com/noah-isme/sena-attendance-api/internal/service"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, summary cache disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured, domain events disabled")
	}

	validate := utils.Validator()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	summaries := service.NewSummaryCache(redisClient, cfg.SummaryCacheTTL, logger)
	events := service.NewEventPublisher(natsConn, cfg.EventSubject, logger)
	activityService := service.NewActivityService(activityRepo, validate, logger)

	authService := service.NewAuthService(userRepo, tokens, hasher, validate, activityService, events, logger)
	userService := service.NewUserService(userRepo, validate, activityService, events, summaries, logger)
	courseService := service.NewCourseService(courseRepo, userRepo, validate, activityService, events, summaries, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, courseRepo, validate, activityService, events, summaries, logger)
	evaluationService := service.NewEvaluationService(evaluationRepo, gradeRepo, courseRepo, validate, activityService, events, summaries, logger)
	gradeService := service.NewGradeService(service.GradeDependencies{
		Grades:      gradeRepo,
		Evaluations: evaluationRepo,
		Courses:     courseRepo,
		Attendance:  attendanceRepo,
		Users:       userRepo,
	}, validate, activityService, events, summaries, logger)

	seedService := service.NewSeedService(userRepo, hasher, validate, activityService, logger)
	admin, err := seedService.EnsureAdmin(context.Background(), service.AdminAccount{
		Name:     cfg.AdminName,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		logger.Warn().Msg("SENA_ADMIN_EMAIL not configured, no admin account provisioned")
	case err != nil:
		log.Fatalf("failed to provision admin account: %v", err)
	default:
		logger.Info().Uint("user_id", admin.ID).Msg("admin account ready")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
		AccessLog:    !cfg.IsProduction(),
	})

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error { return natsConn.FlushTimeout(time.Second) }
	}

	router.Register(app, cfg, router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		CourseHandler:     handler.NewCourseHandler(courseService, logger),
		AttendanceHandler: handler.NewAttendanceHandler(attendanceService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, logger),
		GradeHandler:      handler.NewGradeHandler(gradeService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		JWTMiddleware:     middleware.JWTProtected(tokens, authService.ResolveActor),
		LoginLimiter:      middleware.RateLimit("auth", cfg.LoginRateLimit, cfg.LoginRateWindow),
		HealthProbes:      probes,
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("starting http server")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
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
