package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/impostorgame/internal/config"
	"github.com/mcoot/impostorgame/internal/dependencies/clock"
	"github.com/mcoot/impostorgame/internal/dependencies/random"
	"github.com/mcoot/impostorgame/internal/realtime"
	"github.com/mcoot/impostorgame/internal/services/auth"
	"github.com/mcoot/impostorgame/internal/services/game"
	"github.com/mcoot/impostorgame/internal/services/scheduler"
	"github.com/mcoot/impostorgame/internal/services/scoring"
	"github.com/mcoot/impostorgame/internal/storage"
	"github.com/mcoot/impostorgame/internal/storage/memory"
	pgstorage "github.com/mcoot/impostorgame/internal/storage/postgres"
	redisstorage "github.com/mcoot/impostorgame/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	ScoringService *scoring.Service
	Scheduler      *scheduler.Scheduler
	GameController *game.Controller
	AuthService    *auth.Service

	// Realtime delivery
	HubManager  *realtime.HubManager
	Broadcaster *realtime.Broadcaster
	Gateway     *realtime.Gateway

	closer io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Timings sets the timed windows (optional)
	// If zero value, defaults to game.DefaultTimings()
	Timings game.Timings
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closer, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg = auth.DefaultConfig()
	}
	timings := cfg.Timings
	if timings == (game.Timings{}) {
		timings = game.DefaultTimings()
	}

	app := newWithDependencies(store, clk, rnd, authCfg, timings, logger)
	app.closer = closer
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, io.Closer, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return redisStore, redisStore, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		pgStore, err := pgstorage.New(*cfg.PostgresConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return pgStore, pgStore, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'postgres'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	timings game.Timings,
	logger *slog.Logger,
) *App {
	hubManager := realtime.NewHubManager(logger)
	broadcaster := realtime.NewBroadcaster(hubManager, logger)
	scoringService := scoring.New()
	sched := scheduler.New(clk, logger)
	gameController := game.NewController(store, scoringService, sched, broadcaster, clk, rnd, timings, logger)
	gateway := realtime.NewGateway(hubManager, gameController, logger)
	authService := auth.New(store, clk, rnd, authCfg)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		ScoringService: scoringService,
		Scheduler:      sched,
		GameController: gameController,
		AuthService:    authService,
		HubManager:     hubManager,
		Broadcaster:    broadcaster,
		Gateway:        gateway,
	}
}

// Close stops timers, disconnects realtime clients and releases the storage backend
func (a *App) Close() error {
	a.GameController.Shutdown()
	a.HubManager.CloseAll()
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}
