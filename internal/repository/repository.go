package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/disc-catalog/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// DuplicateKeyError reports a uniqueness conflict on Field.
type DuplicateKeyError struct {
	Field string
	Value string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("repository: duplicate %s %q", e.Field, e.Value)
}

// Options holds catalog persistence policies.
type Options struct {
	// UniqueTitle additionally rejects entries whose title is already stored.
	UniqueTitle bool
}

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Catalog *CatalogRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store, opts Options) *Repository {
	return NewWithPool(st.Pool(), opts)
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool, opts Options) *Repository {
	return &Repository{
		Catalog: &CatalogRepository{pool: pool, uniqueTitle: opts.UniqueTitle},
	}
}
