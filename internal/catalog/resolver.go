package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/title"
	"github.com/Clark-Hu/disc-catalog/internal/tmdb"
	"github.com/Clark-Hu/disc-catalog/internal/upc"
)

// MaxCandidates caps the number of matches returned by Resolve.
const MaxCandidates = 5

// BarcodeFinder reports whether a barcode is already catalogued.
type BarcodeFinder interface {
	GetByBarcode(ctx context.Context, barcode string) (domain.CatalogEntry, error)
}

// Resolver runs the barcode → product → title → candidates pipeline.
type Resolver struct {
	entries  BarcodeFinder
	products upc.Client
	movies   tmdb.Client
	logger   zerolog.Logger
}

// NewResolver wires a Resolver.
func NewResolver(entries BarcodeFinder, products upc.Client, movies tmdb.Client, logger zerolog.Logger) *Resolver {
	return &Resolver{entries: entries, products: products, movies: movies, logger: logger}
}

// Resolve looks up barcode and returns up to MaxCandidates matches in the
// order the metadata service ranked them. Steps run sequentially and the
// first failure is returned; upstream failures surface as
// *domain.ExternalServiceError.
func (r *Resolver) Resolve(ctx context.Context, barcode string) ([]domain.Candidate, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, fmt.Errorf("%w: barcode", domain.ErrMissingInput)
	}

	if err := ensureNotCatalogued(ctx, r.entries, barcode); err != nil {
		return nil, err
	}

	result, err := r.products.Lookup(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if result == nil || len(result.Items) == 0 {
		return nil, domain.ErrProductNotFound
	}

	rawTitle := result.Items[0].DisplayTitle()
	if rawTitle == "" {
		return nil, domain.ErrTitleNotFound
	}

	query := title.Normalize(rawTitle)
	if !title.Searchable(query) {
		r.logger.Debug().Str("barcode", barcode).Str("raw_title", rawTitle).Str("query", query).Msg("resolve: title too short")
		return nil, domain.ErrTitleTooShort
	}

	movies, err := r.movies.SearchMovies(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, domain.ErrNoMatchFound
	}
	if len(movies) > MaxCandidates {
		movies = movies[:MaxCandidates]
	}

	candidates := make([]domain.Candidate, 0, len(movies))
	for _, m := range movies {
		candidates = append(candidates, toCandidate(m))
	}
	r.logger.Debug().Str("barcode", barcode).Str("query", query).Int("candidates", len(candidates)).Msg("resolve: complete")
	return candidates, nil
}

func toCandidate(m tmdb.MovieSummary) domain.Candidate {
	c := domain.Candidate{ExternalID: m.ID, Title: m.Title}
	if year := yearPrefix(m.ReleaseDate); year != "" {
		c.ReleaseYear = &year
	}
	if img := tmdb.ImageURL(tmdb.SizeThumbnail, m.PosterPath); img != "" {
		c.ImageURL = &img
	}
	return c
}

// yearPrefix returns the first four characters of a release date, or "" when
// the date is shorter than that.
func yearPrefix(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

func ensureNotCatalogued(ctx context.Context, entries BarcodeFinder, barcode string) error {
	_, err := entries.GetByBarcode(ctx, barcode)
	switch {
	case err == nil:
		return domain.ErrDuplicateBarcode
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("%w: lookup barcode: %w", domain.ErrStorage, err)
	}
}
