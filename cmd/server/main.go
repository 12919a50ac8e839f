package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/impostorgame/internal/api"
	"github.com/mcoot/impostorgame/internal/config"
	"github.com/mcoot/impostorgame/internal/factory"
	"github.com/mcoot/impostorgame/internal/services/auth"
	"github.com/mcoot/impostorgame/internal/services/game"
	pgstorage "github.com/mcoot/impostorgame/internal/storage/postgres"
	redisstorage "github.com/mcoot/impostorgame/internal/storage/redis"
)

const housekeepingInterval = time.Minute

func main() {
	dotEnvErr := config.LoadDotEnv(".env")
	cfg := config.Load()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if dotEnvErr != nil {
		logger.Warn("could not read .env", slog.String("error", dotEnvErr.Error()))
	}

	// Build factory config from environment
	factoryCfg := factory.Config{
		AuthConfig: auth.Config{SessionDuration: cfg.SessionDuration()},
		Timings: game.Timings{
			AnswerWindow:    cfg.AnswerWindow(),
			VoteWindow:      cfg.VoteWindow(),
			InterRoundPause: cfg.InterRoundPause(),
		},
		Logger:      logger,
		StorageType: cfg.StorageType,
	}

	switch cfg.StorageType {
	case factory.StorageTypeRedis:
		if cfg.RedisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		if cfg.DatabaseURL == "" {
			logger.Error("DATABASE_URL required when STORAGE_TYPE=postgres")
			os.Exit(1)
		}
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.DatabaseURL = cfg.DatabaseURL
		pgCfg.AutoMigrate = cfg.DBAutoMigrate
		factoryCfg.PostgresConfig = &pgCfg
	}

	// Create application factory
	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Re-arm timers for games that were mid-round when the last process stopped
	recovered, err := app.GameController.Recover(context.Background())
	if err != nil {
		logger.Error("failed to recover games", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("recovered games", slog.Int("count", recovered))

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		GameController: app.GameController,
		Gateway:        app.Gateway,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go housekeeping(ctx, app, logger)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Open event streams would otherwise hold Shutdown until its timeout
		app.HubManager.CloseAll()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}
	stop()

	if err := app.Close(); err != nil {
		logger.Error("failed to close application", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}

// housekeeping drops idle hubs and expired sessions until ctx is done
func housekeeping(ctx context.Context, app *factory.App, logger *slog.Logger) {
	ticker := time.NewTicker(housekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hubs := app.HubManager.CleanupEmptyHubs()
			sessions := app.AuthService.CleanExpiredSessions()
			if hubs > 0 || sessions > 0 {
				logger.Debug("housekeeping",
					slog.Int("hubs_removed", hubs),
					slog.Int("sessions_expired", sessions),
				)
			}
		}
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
