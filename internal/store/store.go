package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// applicationName tags catalog sessions in pg_stat_activity.
const applicationName = "disc-catalog"

// ErrSchemaMissing is returned by HealthCheck when the database answers but
// the catalog table has not been created yet.
var ErrSchemaMissing = errors.New("store: catalog schema not migrated")

// Options tunes the catalog database pool. Zero values keep the pgx defaults.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	// Migrate applies pending schema migrations once the pool is up.
	Migrate bool
	Logger  zerolog.Logger
}

// Store owns the catalog's connection pool.
type Store struct {
	pool    *pgxpool.Pool
	logger  zerolog.Logger
	timeout time.Duration
}

// New opens the pool, waits for the database to answer and, when
// opts.Migrate is set, brings the schema up to date before returning.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	cfg, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, err
	}

	s := &Store{logger: opts.Logger, timeout: opts.ConnTimeout}
	connCtx, cancel := s.bounded(ctx)
	defer cancel()

	if s.pool, err = pgxpool.NewWithConfig(connCtx, cfg); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := s.pool.Ping(connCtx); err != nil {
		s.pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s.logger.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Str("exec_mode", cfg.ConnConfig.DefaultQueryExecMode.String()).
		Msg("store: connected")

	if opts.Migrate {
		if err := s.Migrate(ctx); err != nil {
			s.pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// poolConfig turns DB_URL and the pool options into a pgx configuration.
// A statement cache capacity of zero disables prepared statement caching.
func poolConfig(dbURL string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if cfg.MinConns > cfg.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", cfg.MinConns, cfg.MaxConns)
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	conn := cfg.ConnConfig
	if opts.StatementCacheCapacity > 0 {
		conn.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		conn.StatementCacheCapacity = opts.StatementCacheCapacity
	} else {
		conn.DefaultQueryExecMode = pgx.QueryExecModeExec
		conn.StatementCacheCapacity = 0
	}
	if _, ok := conn.RuntimeParams["application_name"]; !ok {
		conn.RuntimeParams["application_name"] = applicationName
	}
	return cfg, nil
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Info().Msg("store: closing connection pool")
	s.pool.Close()
}

// HealthCheck confirms the database answers and holds the catalog table.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("store not initialized")
	}
	checkCtx, cancel := s.bounded(ctx)
	defer cancel()

	var migrated bool
	if err := s.pool.QueryRow(checkCtx, `SELECT to_regclass('catalog_entries') IS NOT NULL`).Scan(&migrated); err != nil {
		return err
	}
	if !migrated {
		return ErrSchemaMissing
	}
	return nil
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.pool, s.logger)
}

// MigrationStatus logs the applied/pending state of every migration.
func (s *Store) MigrationStatus(ctx context.Context) error {
	return MigrationStatus(ctx, s.pool, s.logger)
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// PoolStats is a snapshot of pool usage, loggable with zerolog's Object.
type PoolStats struct {
	TotalConns      int32
	IdleConns       int32
	AcquireCount    int64
	AcquireDuration time.Duration
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (p PoolStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int32("total_conns", p.TotalConns).
		Int32("idle_conns", p.IdleConns).
		Int64("acquire_count", p.AcquireCount).
		Dur("acquire_duration", p.AcquireDuration)
}

// Stats snapshots pool usage. A closed or nil store reports zeros.
func (s *Store) Stats() PoolStats {
	if s == nil || s.pool == nil {
		return PoolStats{}
	}
	stat := s.pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration(),
	}
}
