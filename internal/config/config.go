package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Title match modes accepted by CATALOG_TITLE_MATCH.
const (
	TitleMatchExact    = "exact"
	TitleMatchContains = "contains"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	DBURL             string
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	UPCAPIURL       string
	UPCAPIKey       string
	UPCTimeoutSecs  int
	UPCRatePerMin   int
	UPCCacheTTLSecs int
	RedisURL        string

	TMDBAPIURL      string
	TMDBAPIKey      string
	TMDBTimeoutSecs int
	TMDBLanguage    string

	UniqueTitle bool
	TitleMatch  string

	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int
}

// Development reports whether APP_ENV selects local development behaviour.
func (c Config) Development() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev" || c.AppEnv == "local"
}

// Load reads the server configuration from environment variables, applying
// defaults and validation. Every upstream and the HTTP port are required.
func Load() (Config, error) {
	return load("PORT", "DB_URL", "UPC_API_URL", "TMDB_API_URL", "TMDB_API_KEY")
}

// LoadTools is Load for operator tooling: only DB_URL is required. Commands
// that reach an upstream fail when its client is built without a URL or key.
func LoadTools() (Config, error) {
	return load("DB_URL")
}

func load(required ...string) (Config, error) {
	var parseErrs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return v
	}

	cfg := Config{
		Port:              os.Getenv("PORT"),
		AppEnv:            strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBURL:             os.Getenv("DB_URL"),
		DBMaxConns:        intVar("DB_MAX_CONNS", 20),
		DBMinConns:        intVar("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:     intVar("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:     intVar("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs: intVar("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:  intVar("DB_STATEMENT_CACHE_CAPACITY", 256),
		UPCAPIURL:         os.Getenv("UPC_API_URL"),
		UPCAPIKey:         os.Getenv("UPC_API_KEY"),
		UPCTimeoutSecs:    intVar("UPC_TIMEOUT_SECS", 10),
		UPCRatePerMin:     intVar("UPC_RATE_PER_MIN", 0),
		UPCCacheTTLSecs:   intVar("UPC_CACHE_TTL_SECS", 86400),
		RedisURL:          os.Getenv("REDIS_URL"),
		TMDBAPIURL:        os.Getenv("TMDB_API_URL"),
		TMDBAPIKey:        os.Getenv("TMDB_API_KEY"),
		TMDBTimeoutSecs:   intVar("TMDB_TIMEOUT_SECS", 10),
		TMDBLanguage:      os.Getenv("TMDB_LANGUAGE"),
		UniqueTitle:       boolVar("CATALOG_UNIQUE_TITLE", false),
		TitleMatch:        strings.ToLower(getEnv("CATALOG_TITLE_MATCH", TitleMatchExact)),
		ReadTimeoutSecs:   intVar("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:  intVar("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:   intVar("SERVER_IDLE_TIMEOUT", 60),
	}
	if len(parseErrs) > 0 {
		return Config{}, errors.Join(parseErrs...)
	}

	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			return Config{}, fmt.Errorf("%s is required", key)
		}
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil || cfg.LogLevel == "" {
		return Config{}, fmt.Errorf("LOG_LEVEL %q is not a valid level", cfg.LogLevel)
	}
	if cfg.Port != "" {
		if port, err := strconv.Atoi(cfg.Port); err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("PORT must be a number between 1 and 65535")
		}
	}
	if cfg.UPCTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("UPC_TIMEOUT_SECS must be positive")
	}
	if cfg.UPCRatePerMin < 0 {
		return Config{}, fmt.Errorf("UPC_RATE_PER_MIN must be non-negative")
	}
	if cfg.UPCCacheTTLSecs <= 0 {
		return Config{}, fmt.Errorf("UPC_CACHE_TTL_SECS must be positive")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.TitleMatch != TitleMatchExact && cfg.TitleMatch != TitleMatchContains {
		return Config{}, fmt.Errorf("CATALOG_TITLE_MATCH must be %q or %q", TitleMatchExact, TitleMatchContains)
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer, got %q", key, val)
	}
	return parsed, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a boolean, got %q", key, val)
	}
	return parsed, nil
}
