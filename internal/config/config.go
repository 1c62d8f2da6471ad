package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StateBackendFile     = "file"
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
)

type Config struct {
	HTTP             HTTPConfig
	DatabaseURL      string
	Redis            RedisConfig
	State            StateConfig
	Auth             AuthConfig
	FrontendDistDir  string
	CatalogStateFile string
	AuditLogFile     string
	LogLevel         string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StateConfig struct {
	// Backend selects where cart, saved and auth containers persist.
	Backend string
	Dir     string
}

type AuthConfig struct {
	BootstrapUsername string
	BootstrapPassword string
	PasswordPepper    string
	BcryptCost        int
	SessionTTL        time.Duration
	SessionStateFile  string
	UserStateFile     string
	OracleTimeout     time.Duration
	UserCacheTTL      time.Duration
	CookieSecure      bool
}

// Load reads configuration from the environment. Variables from ENV_FILE (default
// .env) fill in keys that are not already set; a missing file is ignored.
func Load() (Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:     time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
		},
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		State: StateConfig{
			Backend: strings.ToLower(getEnv("STATE_BACKEND", StateBackendFile)),
			Dir:     getEnv("STATE_DIR", "./data/state"),
		},
		Auth: AuthConfig{
			BootstrapUsername: getEnv("AUTH_BOOTSTRAP_USERNAME", "admin"),
			BootstrapPassword: getEnv("AUTH_BOOTSTRAP_PASSWORD", "admin123"),
			PasswordPepper:    getEnv("AUTH_PASSWORD_PEPPER", "change-me-in-production"),
			BcryptCost:        getEnvInt("AUTH_BCRYPT_COST", 10),
			SessionTTL:        time.Duration(getEnvInt("AUTH_SESSION_TTL_SEC", 3600)) * time.Second,
			SessionStateFile:  getEnv("AUTH_SESSION_STATE_FILE", "./data/auth_sessions.json"),
			UserStateFile:     getEnv("AUTH_USER_STATE_FILE", "./data/auth_users.json"),
			OracleTimeout:     time.Duration(getEnvInt("AUTH_ORACLE_TIMEOUT_MS", 3000)) * time.Millisecond,
			UserCacheTTL:      time.Duration(getEnvInt("AUTH_ORACLE_USER_CACHE_TTL_MS", 5000)) * time.Millisecond,
			CookieSecure:      getEnvBool("SESSION_COOKIE_SECURE", false),
		},
		FrontendDistDir:  getEnv("FRONTEND_DIST_DIR", "./web/dist"),
		CatalogStateFile: getEnv("CATALOG_STATE_FILE", "./data/catalog.json"),
		AuditLogFile:     getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.Auth.BootstrapUsername == "" {
		return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_USERNAME must not be empty")
	}
	if cfg.Auth.BootstrapPassword == "" {
		return Config{}, fmt.Errorf("AUTH_BOOTSTRAP_PASSWORD must not be empty")
	}
	if cfg.Auth.PasswordPepper == "" {
		return Config{}, fmt.Errorf("AUTH_PASSWORD_PEPPER must not be empty")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return Config{}, fmt.Errorf("AUTH_BCRYPT_COST must be between 4 and 31")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("AUTH_SESSION_TTL_SEC must be > 0")
	}
	if cfg.Auth.OracleTimeout < 0 {
		return Config{}, fmt.Errorf("AUTH_ORACLE_TIMEOUT_MS must be >= 0")
	}
	if cfg.Auth.UserCacheTTL < 0 {
		return Config{}, fmt.Errorf("AUTH_ORACLE_USER_CACHE_TTL_MS must be >= 0")
	}
	if cfg.Auth.SessionStateFile == "" {
		return Config{}, fmt.Errorf("AUTH_SESSION_STATE_FILE must not be empty")
	}
	if cfg.Auth.UserStateFile == "" {
		return Config{}, fmt.Errorf("AUTH_USER_STATE_FILE must not be empty")
	}
	if cfg.FrontendDistDir == "" {
		return Config{}, fmt.Errorf("FRONTEND_DIST_DIR must not be empty")
	}
	if cfg.CatalogStateFile == "" {
		return Config{}, fmt.Errorf("CATALOG_STATE_FILE must not be empty")
	}
	if cfg.AuditLogFile == "" {
		return Config{}, fmt.Errorf("AUDIT_LOG_FILE must not be empty")
	}

	switch cfg.State.Backend {
	case StateBackendFile:
		if cfg.State.Dir == "" {
			return Config{}, fmt.Errorf("STATE_DIR must not be empty")
		}
	case StateBackendRedis:
		if cfg.Redis.Addr == "" {
			return Config{}, fmt.Errorf("REDIS_ADDR is required when STATE_BACKEND=redis")
		}
	case StateBackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STATE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("STATE_BACKEND must be file, redis, or postgres")
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
