// Package app assembles the catalog's components from configuration. The
// server and the operator CLI share it so both run the same wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/disc-catalog/internal/catalog"
	"github.com/Clark-Hu/disc-catalog/internal/config"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/store"
	"github.com/Clark-Hu/disc-catalog/internal/tmdb"
	"github.com/Clark-Hu/disc-catalog/internal/upc"
)

// App holds every long-lived component. Close releases them.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Store    *store.Store
	Repo     *repository.Repository
	Redis    *redis.Client
	Products upc.Client
	Movies   tmdb.Client
	Resolver *catalog.Resolver
	Service  *catalog.Service
}

// New connects to the database, applies migrations and builds the upstream
// clients, the resolver and the service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, Store: st}

	mode := repository.TitleMatchExact
	if cfg.TitleMatch != "" {
		if mode, err = repository.ParseTitleMatch(cfg.TitleMatch); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Repo = repository.New(st, repository.Options{UniqueTitle: cfg.UniqueTitle})

	if cfg.RedisURL != "" {
		if a.Redis, err = OpenRedis(ctx, cfg.RedisURL); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info().Dur("ttl", time.Duration(cfg.UPCCacheTTLSecs)*time.Second).Msg("app: upc lookup cache enabled")
	}

	if a.Products, err = NewProductClient(cfg, a.Redis, logger); err != nil {
		a.Close()
		return nil, err
	}
	if a.Movies, err = NewMovieClient(cfg, logger); err != nil {
		a.Close()
		return nil, err
	}

	a.Resolver = catalog.NewResolver(a.Repo.Catalog, a.Products, a.Movies, logger.With().Str("component", "resolver").Logger())
	a.Service = catalog.NewService(a.Repo.Catalog, a.Movies, catalog.ServiceOptions{
		TitleMatch: mode,
		Logger:     logger.With().Str("component", "catalog").Logger(),
	})
	return a, nil
}

// OpenStore creates the connection pool from the DB_* settings without
// touching the schema.
func OpenStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*store.Store, error) {
	return openStore(ctx, cfg, logger, false)
}

func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, migrate bool) (*store.Store, error) {
	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Migrate:                migrate,
		Logger:                 logger.With().Str("component", "store").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	return st, nil
}

// OpenRedis connects to REDIS_URL and verifies it answers.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewProductClient builds the barcode lookup client, wrapped with the Redis
// cache when cache is non-nil.
func NewProductClient(cfg config.Config, cache *redis.Client, logger zerolog.Logger) (upc.Client, error) {
	httpClient, err := upc.NewHTTPClient(cfg.UPCAPIURL, upc.Options{
		APIKey:        cfg.UPCAPIKey,
		Timeout:       time.Duration(cfg.UPCTimeoutSecs) * time.Second,
		RatePerMinute: cfg.UPCRatePerMin,
		Logger:        logger.With().Str("component", "upc").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("init upc client: %w", err)
	}
	if cache == nil {
		return httpClient, nil
	}
	ttl := time.Duration(cfg.UPCCacheTTLSecs) * time.Second
	return upc.NewCachedClient(httpClient, cache, ttl, logger.With().Str("component", "upc-cache").Logger()), nil
}

// NewMovieClient builds the metadata client.
func NewMovieClient(cfg config.Config, logger zerolog.Logger) (tmdb.Client, error) {
	client, err := tmdb.New(cfg.TMDBAPIKey, cfg.TMDBAPIURL,
		tmdb.WithTimeout(time.Duration(cfg.TMDBTimeoutSecs)*time.Second),
		tmdb.WithLanguage(cfg.TMDBLanguage),
		tmdb.WithLogger(logger.With().Str("component", "tmdb").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("init tmdb client: %w", err)
	}
	return client, nil
}

// HealthCheck reports whether the database and, when configured, Redis are
// reachable.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.Store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the Redis client and the connection pool.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("app: close redis")
		}
	}
	a.Store.Close()
}
