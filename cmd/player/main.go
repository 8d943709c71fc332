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
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/handlers"
	"github.com/Dosada05/agent-league/models"
	api "github.com/Dosada05/agent-league/routes"
	"github.com/Dosada05/agent-league/services"
	"github.com/Dosada05/agent-league/telemetry"
)

const serviceName = "league-player"

func main() {
	cfg, err := config.LoadPlayer()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})).
		With(slog.String("service", serviceName), slog.String("player", cfg.DisplayName))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("player exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("player exited")
}

func run(cfg *config.Player, logger *slog.Logger) error {
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

	strategy, err := services.NewStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	client := gateway.NewClient(serviceName, cfg.AgentVersion, cfg.CallTimeout, logger)
	caller := gateway.NewRetryingCaller(client, gateway.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, logger)

	player := services.NewPlayerService(services.PlayerConfig{ManagerEndpoint: cfg.ManagerEndpoint}, strategy, caller, logger)
	playerHandler := handlers.NewPlayerToolsHandler(player, logger)

	tools := gateway.NewToolServer(serviceName, cfg.AgentVersion, logger)
	if err := playerHandler.Register(tools); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	router := chi.NewRouter()
	api.SetupPlayerRoutes(router, tools, playerHandler)

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
		logger.Info("starting server", slog.String("address", server.Addr), slog.String("strategy", strategy.Name()))
		serverErrors <- server.ListenAndServe()
	}()

	resp, err := services.RegisterPlayer(ctx, caller, cfg.ManagerEndpoint, &models.PlayerMeta{
		DisplayName:     cfg.DisplayName,
		ProtocolVersion: cfg.ProtocolVersion,
		AgentVersion:    cfg.AgentVersion,
		GameTypes:       cfg.GameTypes,
		ContactEndpoint: cfg.PublicEndpoint,
	})
	if err != nil {
		_ = server.Close()
		return fmt.Errorf("registration failed: %w", err)
	}
	player.SetIdentity(services.PlayerIdentity{
		PlayerID:  resp.PlayerID,
		AuthToken: resp.AuthToken,
		LeagueID:  resp.LeagueID,
	})
	logger.Info("registered with league manager", slog.String("player_id", resp.PlayerID), slog.String("league_id", resp.LeagueID))

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
	logger.Info("server shutdown complete", slog.Int("games_played", len(player.History())))
	return runErr
}
