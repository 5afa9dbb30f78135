// Package config reads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"taskapi/internal/kv"
	"taskapi/internal/logger"
)

const (
	DefaultPort            = "8080"
	DefaultRedisAddr       = "localhost:6379"
	DefaultSQLitePath      = "./data/taskapi.db"
	DefaultShutdownTimeout = 10 * time.Second

	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	LogFile         string
	Store           kv.Config
	AllowedOrigins  []string
	UseMetrics      bool
	BcryptCost      int
	ShutdownTimeout time.Duration
}

// Addr is the listen address for the HTTP server. Port 0 picks a free port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// LoggerOptions turns the log settings into logger.New options.
func (c Config) LoggerOptions() []logger.ResourceOption {
	var opts []logger.ResourceOption
	if c.LogFormat == LogFormatConsole {
		opts = append(opts, logger.WithConsole())
	}
	if c.LogFile != "" {
		opts = append(opts, logger.WithFile(c.LogFile))
	}
	return opts
}

// LoadDotenv loads the first of paths that exists. Variables already in the
// environment win over the file. It returns the path loaded, or "".
func LoadDotenv(paths ...string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", fmt.Errorf("load %s: %w", p, err)
		}
		return p, nil
	}
	return "", nil
}

// Load reads the configuration from the environment. Every invalid value is
// reported, not just the first.
func Load() (Config, error) {
	var errs []error
	intValue := func(key string, fallback int) int {
		v, err := GetIntWithDefault(key, fallback)
		errs = append(errs, err)
		return v
	}
	truthy := func(key string, fallback bool) bool {
		v, err := GetTruthyWithDefault(key, fallback)
		errs = append(errs, err)
		return v
	}

	cfg := Config{
		Port:      GetWithDefault("PORT", DefaultPort),
		LogLevel:  strings.ToUpper(GetWithDefault("LOGLEVEL", logger.InfoLevel)),
		LogFormat: strings.ToLower(GetWithDefault("LOG_FORMAT", LogFormatJSON)),
		LogFile:   os.Getenv("LOG_FILE"),
		Store: kv.Config{
			Backend: strings.ToLower(GetWithDefault("STORE_BACKEND", kv.BackendRedis)),
			Redis: kv.RedisConfig{
				Addr:         GetWithDefault("REDIS_ADDR", DefaultRedisAddr),
				Password:     os.Getenv("REDIS_PASSWORD"),
				DB:           intValue("REDIS_DB", 0),
				ClusterAddrs: GetListWithDefault("REDIS_CLUSTER_ADDRS", nil),
				TLS:          truthy("REDIS_TLS", false),
			},
			SQLitePath: GetWithDefault("SQLITE_PATH", DefaultSQLitePath),
		},
		AllowedOrigins:  GetListWithDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		UseMetrics:      truthy("USE_METRICS", true),
		BcryptCost:      intValue("BCRYPT_COST", 0),
		ShutdownTimeout: time.Duration(intValue("SHUTDOWN_TIMEOUT_SECONDS", int(DefaultShutdownTimeout/time.Second))) * time.Second,
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("%w PORT=%q: not a tcp port", ErrInvalid, cfg.Port))
	}
	if cfg.LogFormat != LogFormatJSON && cfg.LogFormat != LogFormatConsole {
		errs = append(errs, fmt.Errorf("%w LOG_FORMAT=%q: must be json or console", ErrInvalid, cfg.LogFormat))
	}
	switch cfg.Store.Backend {
	case kv.BackendRedis, kv.BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("%w STORE_BACKEND=%q: %w", ErrInvalid, cfg.Store.Backend, kv.ErrUnknownBackend))
	}
	if cfg.Store.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("%w REDIS_DB=%d: must not be negative", ErrInvalid, cfg.Store.Redis.DB))
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w SHUTDOWN_TIMEOUT_SECONDS: must not be negative", ErrInvalid))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
