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

	"github.com/Dosada05/agent-league/config"
	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/handlers"
	"github.com/Dosada05/agent-league/models"
	api "github.com/Dosada05/agent-league/routes"
	"github.com/Dosada05/agent-league/services"
	"github.com/Dosada05/agent-league/telemetry"
)

const serviceName = "league-referee"

func main() {
	cfg, err := config.LoadReferee()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With(slog.String("service", serviceName), slog.String("referee", cfg.DisplayName))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("referee exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("referee exited")
}

func run(cfg *config.Referee, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", slog.Any("error", err))
	}
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer tcancel()
		_ = shutdownTracing(tctx)
	}()

	client := gateway.NewClient(serviceName, cfg.Version, cfg.CallTimeout, logger)
	caller := gateway.NewRetryingCaller(client, gateway.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, logger)

	// client без повторов: choose_parity координатор повторяет сам.
	coordinator := services.NewMatchCoordinator(services.CoordinatorConfig{
		ManagerEndpoint:  cfg.ManagerEndpoint,
		DefaultGameType:  games.GameTypeEvenOdd,
		ChoiceTimeout:    cfg.ChoiceTimeout,
		ChoiceAttempts:   cfg.ChoiceAttempts,
		ChoiceRetryDelay: cfg.ChoiceRetryDelay,
		Points:           games.DefaultPoints(),
	}, games.NewRegistry(games.NewEvenOdd()), caller, client, logger)
	runner := services.NewMatchRunner(ctx, coordinator, cfg.MaxConcurrentMatches, logger)

	tools := gateway.NewToolServer(serviceName, cfg.Version, logger)
	if err := handlers.NewRefereeToolsHandler(runner, coordinator, logger).Register(tools); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	router := chi.NewRouter()
	api.SetupRefereeRoutes(router, tools)

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

	resp, err := services.RegisterReferee(ctx, caller, cfg.ManagerEndpoint, &models.RefereeMeta{
		DisplayName:          cfg.DisplayName,
		Version:              cfg.Version,
		GameTypes:            cfg.GameTypes,
		ContactEndpoint:      cfg.PublicEndpoint,
		MaxConcurrentMatches: cfg.MaxConcurrentMatches,
	})
	if err != nil {
		_ = server.Close()
		return fmt.Errorf("registration failed: %w", err)
	}
	coordinator.SetIdentity(services.RefereeIdentity{
		RefereeID: resp.RefereeID,
		AuthToken: resp.AuthToken,
		LeagueID:  resp.LeagueID,
	})
	logger.Info("registered with league manager", slog.String("referee_id", resp.RefereeID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		runErr = errors.Join(runErr, err)
	}
	// Матчи в фоне останавливаются через ctx.
	interrupted := len(runner.Active())
	cancel()
	runner.Wait()
	logger.Info("server shutdown complete", slog.Int("interrupted_matches", interrupted))
	return runErr
}
