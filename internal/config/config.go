package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Config holds server settings read from the environment
type Config struct {
	Port        int
	LogLevel    string
	StorageType string

	RedisURL      string
	DatabaseURL   string
	DBAutoMigrate bool

	AnswerWindowSeconds    int
	VoteWindowSeconds      int
	InterRoundPauseSeconds int
	SessionHours           int
}

// Default returns the configuration used when no environment is set
func Default() Config {
	return Config{
		Port:                   8080,
		LogLevel:               "info",
		StorageType:            StorageMemory,
		DBAutoMigrate:          true,
		AnswerWindowSeconds:    60,
		VoteWindowSeconds:      180,
		InterRoundPauseSeconds: 5,
		SessionHours:           24,
	}
}

// Load reads the environment on top of Default. Malformed values keep the default.
func Load() Config {
	cfg := Default()
	if value, ok := positiveInt("PORT"); ok {
		cfg.Port = value
	}
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = strings.ToLower(raw)
	}
	if raw := os.Getenv("STORAGE_TYPE"); raw != "" {
		cfg.StorageType = strings.ToLower(raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		cfg.RedisURL = raw
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("DB_AUTO_MIGRATE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.DBAutoMigrate = value
		}
	}
	if value, ok := positiveInt("ANSWER_WINDOW_SECONDS"); ok {
		cfg.AnswerWindowSeconds = value
	}
	if value, ok := positiveInt("VOTE_WINDOW_SECONDS"); ok {
		cfg.VoteWindowSeconds = value
	}
	if raw := os.Getenv("INTER_ROUND_PAUSE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.InterRoundPauseSeconds = value
		}
	}
	if value, ok := positiveInt("SESSION_HOURS"); ok {
		cfg.SessionHours = value
	}
	return cfg
}

func positiveInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// AnswerWindow is the length of the ANSWERING phase
func (c Config) AnswerWindow() time.Duration {
	return time.Duration(c.AnswerWindowSeconds) * time.Second
}

// VoteWindow is the length of the VOTING phase
func (c Config) VoteWindow() time.Duration {
	return time.Duration(c.VoteWindowSeconds) * time.Second
}

// InterRoundPause is the length of the ROUND_END phase
func (c Config) InterRoundPause() time.Duration {
	return time.Duration(c.InterRoundPauseSeconds) * time.Second
}

// SessionDuration is how long a guest session stays valid
func (c Config) SessionDuration() time.Duration {
	return time.Duration(c.SessionHours) * time.Hour
}

// Addr is the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
