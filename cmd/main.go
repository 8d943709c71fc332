package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/agent-league/brackets"
	"github.com/Dosada05/agent-league/config"
	"github.com/Dosada05/agent-league/db"
	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/handlers"
	"github.com/Dosada05/agent-league/repositories"
	api "github.com/Dosada05/agent-league/routes"
	"github.com/Dosada05/agent-league/services"
	"github.com/Dosada05/agent-league/storage"
	"github.com/Dosada05/agent-league/telemetry"
)

const (
	serviceName    = "league-manager"
	serviceVersion = "1.0.0"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.LoadManager()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With(slog.String("service", serviceName))
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("league_id", cfg.LeagueID),
		slog.String("store", cfg.StoreDriver),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("application exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(cfg *config.Manager, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", slog.Any("error", err))
	}
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	// Хранилище: память по умолчанию, либо postgres/sqlite
	repo := repositories.NewMemoryLeagueRepository()
	if cfg.StoreDriver != "memory" {
		var dbConn *sql.DB
		dbConn, err = db.Connect(cfg.StoreDriver, cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Error("failed to close database connection", slog.Any("error", err))
			} else {
				logger.Info("database connection closed")
			}
		}()
		repo, err = repositories.NewSQLLeagueRepository(ctx, dbConn, cfg.StoreDriver)
		if err != nil {
			return fmt.Errorf("failed to prepare league schema: %w", err)
		}
		logger.Info("database connection established", slog.String("driver", cfg.StoreDriver))
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	var reporters []services.LeagueReporter
	if cfg.R2Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
		}
		reporters = append(reporters, services.NewReportArchiver(uploader, logger))
		logger.Info("Cloudflare R2 report archive enabled")
	}
	if cfg.EmailEnabled() {
		reporters = append(reporters, services.NewResendReportMailer(cfg.ResendAPIKey, services.ReportMailerConfig{
			From: cfg.ReportFrom,
			To:   cfg.ReportTo,
		}, logger))
		logger.Info("email report enabled", slog.Int("recipients", len(cfg.ReportTo)))
	}

	// Исходящие вызовы к агентам
	client := gateway.NewClient(serviceName, serviceVersion, cfg.CallTimeout, logger)
	caller := gateway.NewRetryingCaller(client, gateway.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, logger)

	// Инициализация сервисов
	registry := services.NewRegistryService(services.RegistryConfig{
		LeagueID:                cfg.LeagueID,
		GameType:                cfg.GameType,
		RequiredProtocolVersion: cfg.RequiredProtocolVersion,
	}, repo, logger)

	league := services.NewLeagueService(
		services.LeagueConfig{
			LeagueID:            cfg.LeagueID,
			GameType:            cfg.GameType,
			RegistrationTimeout: cfg.RegistrationTimeout,
			MinPlayers:          cfg.MinPlayers,
			Points: games.Points{
				Win:           cfg.WinPoints,
				Draw:          cfg.DrawPoints,
				Loss:          cfg.LossPoints,
				TechnicalLoss: cfg.TechnicalLossPoints,
			},
		},
		registry,
		brackets.NewRoundRobinGenerator(),
		caller,
		gateway.NewNotifier(caller, logger),
		repo,
		logger,
		services.WithEventPublisher(wsHub),
		services.WithReporters(reporters...),
	)
	queries := services.NewQueryService(league, registry, logger)
	logger.Info("Services initialized")

	// Инициализация обработчиков
	tools := gateway.NewToolServer(serviceName, serviceVersion, logger)
	if err := handlers.NewManagerToolsHandler(registry, league, queries, logger).Register(tools); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	var adminHandler *handlers.AdminHandler
	if cfg.AdminEnabled() {
		adminHandler = handlers.NewAdminHandler(league, cfg.AdminPasswordHash, cfg.JWTSecretKey)
	}
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cfg.LeagueID, logger)
	logger.Info("HTTP handlers initialized", slog.Any("tools", tools.Tools()))

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupManagerRoutes(router, api.ManagerRoutes{
		Tools:          tools,
		WebSocket:      webSocketHandler,
		Admin:          adminHandler,
		JWTSecret:      cfg.JWTSecretKey,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	logger.Info("Routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Лига идёт в фоне, сервер остаётся поднятым после её завершения.
	leagueErrors := make(chan error, 1)
	go func() {
		if err := league.Run(ctx); err != nil {
			leagueErrors <- err
		}
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case err := <-leagueErrors:
		runErr = fmt.Errorf("league stopped: %w", err)
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	logger.Info("shutting down server", slog.Duration("timeout", cfg.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return errors.Join(runErr, err)
	}
	logger.Info("server shutdown complete")
	return runErr
}
