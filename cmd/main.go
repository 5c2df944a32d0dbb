package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournify/brackets"
	"github.com/Dosada05/tournify/config"
	"github.com/Dosada05/tournify/db"
	"github.com/Dosada05/tournify/handlers"
	"github.com/Dosada05/tournify/repositories"
	"github.com/Dosada05/tournify/routes"
	"github.com/Dosada05/tournify/services"
	"github.com/Dosada05/tournify/storage"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Bool("archive_enabled", cfg.ArchiveEnabled()))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx, dbConn)
	cancelMigrate()
	if err != nil {
		logger.Error("failed to apply database schema", slog.Any("error", err))
		os.Exit(1)
	}

	// Архив завершенных сеток (Cloudflare R2), опционально
	var archiver storage.BracketArchiver
	if cfg.ArchiveEnabled() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewBracketArchiver(uploader)
		logger.Info("Cloudflare R2 bracket archive enabled", slog.String("bucket", cfg.R2.BucketName))
	}

	var src brackets.RandomSource
	if cfg.BracketSeed != nil {
		src = brackets.NewRandomSource(*cfg.BracketSeed)
		logger.Info("using fixed bracket seed", slog.Int64("seed", *cfg.BracketSeed))
	} else {
		src = brackets.NewTimeSeededSource()
	}
	rng := brackets.NewLockedSource(src)

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run()
	defer wsHub.Stop()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tx := repositories.NewTransactor(dbConn, logger)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	membershipRepo := repositories.NewPostgresMembershipRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	paymentRepo := repositories.NewPostgresPaymentRepository(dbConn)

	// Инициализация сервисов
	tournamentService := services.NewTournamentService(tx, tournamentRepo, participantRepo, matchRepo, rng, wsHub, logger)
	participantService := services.NewParticipantService(
		tx,
		tournamentRepo,
		participantRepo,
		membershipRepo,
		matchRepo,
		paymentRepo,
		rng,
		wsHub,
		logger,
	)
	bracketService := services.NewBracketService(
		tx,
		tournamentRepo,
		participantRepo,
		matchRepo,
		standingRepo,
		rng,
		wsHub,
		archiver,
		logger,
	)
	paymentService := services.NewPaymentService(tx, tournamentRepo, membershipRepo, paymentRepo, participantService, logger)
	logger.Info("services initialized")

	// Планировщик закрытия регистрации по дедлайну
	sweeper, err := services.NewRegistrationSweeper(tournamentService, cfg.RegistrationSweepInterval, logger)
	if err != nil {
		logger.Error("failed to create registration sweeper", slog.Any("error", err))
		os.Exit(1)
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Stop(); err != nil {
			logger.Error("failed to stop registration sweeper", slog.Any("error", err))
		}
	}()
	logger.Info("registration sweeper started", slog.Duration("interval", cfg.RegistrationSweepInterval))

	if cfg.PaymentWebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET is not set, payment callbacks are disabled")
	}

	// Настройка маршрутизатора
	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Options{
		JWTSecret:      []byte(cfg.JWTSecretKey),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	}, routes.Handlers{
		Tournament:  handlers.NewTournamentHandler(tournamentService, bracketService),
		Participant: handlers.NewParticipantHandler(participantService),
		Match:       handlers.NewMatchHandler(bracketService),
		Payment:     handlers.NewPaymentHandler(paymentService, cfg.PaymentWebhookSecret),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	})
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
