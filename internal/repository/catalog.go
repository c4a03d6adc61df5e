package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
)

const (
	uniqueViolationCode = "23505"
	barcodeConstraint   = "catalog_entries_barcode_key"
)

const entryColumns = `
    id::text,
    barcode,
    title,
    comments,
    image_url,
    release_year,
    director,
    brand,
    created_at,
    updated_at
`

// TitleMatch selects how FindByTitle compares titles.
type TitleMatch string

const (
	// TitleMatchExact requires a byte-for-byte title match.
	TitleMatchExact TitleMatch = "exact"
	// TitleMatchContains is a case-insensitive substring match.
	TitleMatchContains TitleMatch = "contains"
)

// ParseTitleMatch validates a configured match mode.
func ParseTitleMatch(value string) (TitleMatch, error) {
	switch TitleMatch(strings.ToLower(strings.TrimSpace(value))) {
	case "", TitleMatchExact:
		return TitleMatchExact, nil
	case TitleMatchContains:
		return TitleMatchContains, nil
	default:
		return "", fmt.Errorf("unknown title match mode %q", value)
	}
}

// EntryParams carries every writable column of a catalog entry.
type EntryParams struct {
	Barcode     string
	Title       string
	Comments    string
	ImageURL    string
	ReleaseYear *int
	Director    *string
	Brand       *string
}

// CatalogRepository persists catalog entries.
type CatalogRepository struct {
	pool        *pgxpool.Pool
	uniqueTitle bool
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a new entry. Barcode conflicts are caught by the unique
// index and returned as *DuplicateKeyError, so concurrent inserts of the same
// barcode yield exactly one success.
func (r *CatalogRepository) Create(ctx context.Context, params EntryParams) (domain.CatalogEntry, error) {
	if params.ImageURL == "" {
		params.ImageURL = domain.CoverNotFoundImageURL
	}
	if !r.uniqueTitle {
		return insertEntry(ctx, r.pool, params)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockAndCheckTitle(ctx, tx, params.Title, ""); err != nil {
		return domain.CatalogEntry{}, err
	}
	entry, err := insertEntry(ctx, tx, params)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CatalogEntry{}, translateWriteError(err, params)
	}
	return entry, nil
}

func insertEntry(ctx context.Context, q querier, params EntryParams) (domain.CatalogEntry, error) {
	query := fmt.Sprintf(`
        INSERT INTO catalog_entries (barcode, title, comments, image_url, release_year, director, brand)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, entryColumns)

	row := q.QueryRow(ctx, query, params.Barcode, params.Title, params.Comments, params.ImageURL, params.ReleaseYear, params.Director, params.Brand)
	entry, err := scanEntry(row)
	if err != nil {
		return domain.CatalogEntry{}, translateWriteError(err, params)
	}
	return entry, nil
}

// lockAndCheckTitle serializes writers of the same title for the rest of the
// transaction and rejects a title already held by another entry.
func lockAndCheckTitle(ctx context.Context, tx pgx.Tx, title, excludeID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, title); err != nil {
		return fmt.Errorf("lock title: %w", err)
	}
	var exists bool
	err := tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM catalog_entries WHERE title = $1 AND ($2 = '' OR id::text <> $2)
        )
    `, title, excludeID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check title: %w", err)
	}
	if exists {
		return &DuplicateKeyError{Field: "title", Value: title}
	}
	return nil
}

// List returns all entries ordered by title using ordinal comparison.
func (r *CatalogRepository) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_entries ORDER BY title COLLATE "C" ASC, id ASC`, entryColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CatalogEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetByID fetches an entry by its identifier. Identifiers that are not UUIDs
// cannot exist and return ErrNotFound.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (domain.CatalogEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.CatalogEntry{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM catalog_entries WHERE id = $1`, entryColumns)
	return r.getOne(ctx, query, id)
}

// GetByBarcode fetches the entry registered for barcode.
func (r *CatalogRepository) GetByBarcode(ctx context.Context, barcode string) (domain.CatalogEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM catalog_entries WHERE barcode = $1`, entryColumns)
	return r.getOne(ctx, query, barcode)
}

// FindByTitle returns the first entry matching title under mode.
func (r *CatalogRepository) FindByTitle(ctx context.Context, title string, mode TitleMatch) (domain.CatalogEntry, error) {
	var query string
	switch mode {
	case TitleMatchContains:
		query = fmt.Sprintf(`
            SELECT %s FROM catalog_entries
            WHERE title ILIKE '%%' || $1 || '%%' ESCAPE '\'
            ORDER BY title COLLATE "C" ASC, id ASC
            LIMIT 1
        `, entryColumns)
		title = likeEscaper.Replace(title)
	default:
		query = fmt.Sprintf(`
            SELECT %s FROM catalog_entries
            WHERE title = $1
            ORDER BY created_at ASC
            LIMIT 1
        `, entryColumns)
	}
	return r.getOne(ctx, query, title)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Replace overwrites every writable column of the entry.
func (r *CatalogRepository) Replace(ctx context.Context, id string, params EntryParams) (domain.CatalogEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.CatalogEntry{}, ErrNotFound
	}
	if params.ImageURL == "" {
		params.ImageURL = domain.CoverNotFoundImageURL
	}

	query := fmt.Sprintf(`
        UPDATE catalog_entries
        SET barcode = $2,
            title = $3,
            comments = $4,
            image_url = $5,
            release_year = $6,
            director = $7,
            brand = $8,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, entryColumns)
	args := []any{id, params.Barcode, params.Title, params.Comments, params.ImageURL, params.ReleaseYear, params.Director, params.Brand}

	if !r.uniqueTitle {
		return r.replaceWith(ctx, r.pool, query, args, params)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockAndCheckTitle(ctx, tx, params.Title, id); err != nil {
		return domain.CatalogEntry{}, err
	}
	entry, err := r.replaceWith(ctx, tx, query, args, params)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.CatalogEntry{}, translateWriteError(err, params)
	}
	return entry, nil
}

func (r *CatalogRepository) replaceWith(ctx context.Context, q querier, query string, args []any, params EntryParams) (domain.CatalogEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CatalogEntry{}, ErrNotFound
		}
		return domain.CatalogEntry{}, translateWriteError(err, params)
	}
	return entry, nil
}

// Delete removes an entry by id.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM catalog_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) getOne(ctx context.Context, query string, args ...any) (domain.CatalogEntry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CatalogEntry{}, ErrNotFound
		}
		return domain.CatalogEntry{}, err
	}
	return entry, nil
}

func scanEntry(row pgx.Row) (domain.CatalogEntry, error) {
	var entry domain.CatalogEntry
	err := row.Scan(
		&entry.ID,
		&entry.Barcode,
		&entry.Title,
		&entry.Comments,
		&entry.ImageURL,
		&entry.ReleaseYear,
		&entry.Director,
		&entry.Brand,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	return entry, nil
}

func translateWriteError(err error, params EntryParams) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		if pgErr.ConstraintName == barcodeConstraint {
			return &DuplicateKeyError{Field: "barcode", Value: params.Barcode}
		}
		return &DuplicateKeyError{Field: pgErr.ConstraintName}
	}
	return err
}
