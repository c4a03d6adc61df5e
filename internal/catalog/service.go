package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/tmdb"
)

// EntryStore is the persistence surface the service needs.
// *repository.CatalogRepository satisfies it.
type EntryStore interface {
	BarcodeFinder
	Create(ctx context.Context, params repository.EntryParams) (domain.CatalogEntry, error)
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	GetByID(ctx context.Context, id string) (domain.CatalogEntry, error)
	FindByTitle(ctx context.Context, title string, mode repository.TitleMatch) (domain.CatalogEntry, error)
	Replace(ctx context.Context, id string, params repository.EntryParams) (domain.CatalogEntry, error)
	Delete(ctx context.Context, id string) error
}

var _ EntryStore = (*repository.CatalogRepository)(nil)

// ServiceOptions tunes a Service.
type ServiceOptions struct {
	TitleMatch repository.TitleMatch
	Logger     zerolog.Logger
}

// Service creates and manages catalog entries.
type Service struct {
	store      EntryStore
	movies     tmdb.Client
	titleMatch repository.TitleMatch
	logger     zerolog.Logger
}

// NewService wires a Service. An empty TitleMatch means exact matching.
func NewService(store EntryStore, movies tmdb.Client, opts ServiceOptions) *Service {
	mode := opts.TitleMatch
	if mode == "" {
		mode = repository.TitleMatchExact
	}
	return &Service{store: store, movies: movies, titleMatch: mode, logger: opts.Logger}
}

// ManualInput carries user-entered fields for an entry created without
// external lookups.
type ManualInput struct {
	Barcode     string  `json:"barcode"`
	Title       string  `json:"title"`
	Comments    *string `json:"comments"`
	ImageURL    *string `json:"imageUrl"`
	ReleaseYear *int    `json:"releaseYear"`
	Director    *string `json:"director"`
	Brand       *string `json:"brand"`
}

// Validate checks required fields and value ranges.
func (in ManualInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Barcode, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&in.ReleaseYear, validation.NilOrNotEmpty, validation.Min(1870), validation.Max(9999)),
	)
}

// EntryPatch lists the fields to change on an existing entry. Nil fields keep
// their stored value.
type EntryPatch struct {
	Barcode     *string `json:"barcode"`
	Title       *string `json:"title"`
	Comments    *string `json:"comments"`
	ImageURL    *string `json:"imageUrl"`
	ReleaseYear *int    `json:"releaseYear"`
	Director    *string `json:"director"`
	Brand       *string `json:"brand"`
}

// Validate rejects patches that would blank out a required field.
func (p EntryPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Barcode, validation.NilOrNotEmpty, validation.Length(1, 64)),
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, 500)),
		validation.Field(&p.ReleaseYear, validation.NilOrNotEmpty, validation.Min(1870), validation.Max(9999)),
	)
}

// ConfirmFromExternal builds an entry from the metadata service's record for
// externalID and stores it under barcode.
func (s *Service) ConfirmFromExternal(ctx context.Context, externalID int64, barcode string) (domain.CatalogEntry, error) {
	barcode = strings.TrimSpace(barcode)
	switch {
	case externalID == 0 && barcode == "":
		return domain.CatalogEntry{}, fmt.Errorf("%w: externalId and barcode", domain.ErrMissingInput)
	case externalID == 0:
		return domain.CatalogEntry{}, fmt.Errorf("%w: externalId", domain.ErrMissingInput)
	case barcode == "":
		return domain.CatalogEntry{}, fmt.Errorf("%w: barcode", domain.ErrMissingInput)
	case externalID < 0:
		return domain.CatalogEntry{}, fmt.Errorf("%w: externalId must be positive", domain.ErrInvalidInput)
	}

	if err := ensureNotCatalogued(ctx, s.store, barcode); err != nil {
		return domain.CatalogEntry{}, err
	}

	var (
		details *tmdb.MovieDetails
		credits *tmdb.Credits
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		details, err = s.movies.MovieDetails(gctx, externalID)
		return err
	})
	g.Go(func() error {
		var err error
		credits, err = s.movies.MovieCredits(gctx, externalID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.CatalogEntry{}, err
	}

	params := repository.EntryParams{
		Barcode:  barcode,
		Title:    details.Title,
		ImageURL: domain.CoverNotFoundImageURL,
		Director: extractDirector(credits),
	}
	if img := tmdb.ImageURL(tmdb.SizePoster, details.PosterPath); img != "" {
		params.ImageURL = img
	}
	if year, err := strconv.Atoi(yearPrefix(details.ReleaseDate)); err == nil {
		params.ReleaseYear = &year
	}
	brand := domain.UnknownBrand
	if len(details.ProductionCompanies) > 0 && strings.TrimSpace(details.ProductionCompanies[0].Name) != "" {
		brand = details.ProductionCompanies[0].Name
	}
	params.Brand = &brand

	entry, err := s.create(ctx, params)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	s.logger.Info().Str("id", entry.ID).Str("barcode", entry.Barcode).Int64("external_id", externalID).Msg("catalog: entry confirmed")
	return entry, nil
}

// extractDirector returns the first crew member credited with the Director
// job, or nil.
func extractDirector(credits *tmdb.Credits) *string {
	if credits == nil {
		return nil
	}
	for _, member := range credits.Crew {
		if member.Job == "Director" {
			name := member.Name
			return &name
		}
	}
	return nil
}

// CreateManual stores an entry built only from user input.
func (s *Service) CreateManual(ctx context.Context, in ManualInput) (domain.CatalogEntry, error) {
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return domain.CatalogEntry{}, classifyValidation(err)
	}

	params := repository.EntryParams{
		Barcode:     in.Barcode,
		Title:       in.Title,
		ImageURL:    domain.ManualEntryImageURL,
		ReleaseYear: in.ReleaseYear,
		Director:    trimmedOrNil(in.Director),
		Brand:       trimmedOrNil(in.Brand),
	}
	if in.Comments != nil {
		params.Comments = *in.Comments
	}
	if img := trimmedOrNil(in.ImageURL); img != nil {
		params.ImageURL = *img
	}

	entry, err := s.create(ctx, params)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	s.logger.Info().Str("id", entry.ID).Str("barcode", entry.Barcode).Msg("catalog: manual entry created")
	return entry, nil
}

func (s *Service) create(ctx context.Context, params repository.EntryParams) (domain.CatalogEntry, error) {
	entry, err := s.store.Create(ctx, params)
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}
	return entry, nil
}

// List returns every entry ordered by title.
func (s *Service) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, translateStoreError(err)
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (s *Service) Get(ctx context.Context, id string) (domain.CatalogEntry, error) {
	entry, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}
	return entry, nil
}

// GetByBarcode returns the entry registered for barcode.
func (s *Service) GetByBarcode(ctx context.Context, barcode string) (domain.CatalogEntry, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.CatalogEntry{}, fmt.Errorf("%w: barcode", domain.ErrMissingInput)
	}
	entry, err := s.store.GetByBarcode(ctx, barcode)
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}
	return entry, nil
}

// FindByTitle returns the first entry matching title under the configured
// match mode.
func (s *Service) FindByTitle(ctx context.Context, title string) (domain.CatalogEntry, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.CatalogEntry{}, fmt.Errorf("%w: title", domain.ErrMissingInput)
	}
	entry, err := s.store.FindByTitle(ctx, title, s.titleMatch)
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}
	return entry, nil
}

// Update merges patch over the stored entry and replaces it.
func (s *Service) Update(ctx context.Context, id string, patch EntryPatch) (domain.CatalogEntry, error) {
	if patch.Barcode != nil {
		v := strings.TrimSpace(*patch.Barcode)
		patch.Barcode = &v
	}
	if patch.Title != nil {
		v := strings.TrimSpace(*patch.Title)
		patch.Title = &v
	}
	if err := patch.Validate(); err != nil {
		return domain.CatalogEntry{}, classifyValidation(err)
	}

	current, err := s.store.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}

	params := repository.EntryParams{
		Barcode:     current.Barcode,
		Title:       current.Title,
		Comments:    current.Comments,
		ImageURL:    current.ImageURL,
		ReleaseYear: current.ReleaseYear,
		Director:    current.Director,
		Brand:       current.Brand,
	}
	if patch.Barcode != nil {
		params.Barcode = *patch.Barcode
	}
	if patch.Title != nil {
		params.Title = *patch.Title
	}
	if patch.Comments != nil {
		params.Comments = *patch.Comments
	}
	if patch.ImageURL != nil {
		params.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.ReleaseYear != nil {
		params.ReleaseYear = patch.ReleaseYear
	}
	if patch.Director != nil {
		params.Director = trimmedOrNil(patch.Director)
	}
	if patch.Brand != nil {
		params.Brand = trimmedOrNil(patch.Brand)
	}

	updated, err := s.store.Replace(ctx, current.ID, params)
	if err != nil {
		return domain.CatalogEntry{}, translateStoreError(err)
	}
	return updated, nil
}

// Delete removes the entry with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return translateStoreError(err)
	}
	s.logger.Info().Str("id", id).Msg("catalog: entry deleted")
	return nil
}

// translateStoreError maps repository errors onto domain sentinels.
func translateStoreError(err error) error {
	var dup *repository.DuplicateKeyError
	switch {
	case errors.As(err, &dup) && dup.Field == "title":
		return domain.ErrDuplicateTitle
	case errors.As(err, &dup):
		return domain.ErrDuplicateBarcode
	case errors.Is(err, repository.ErrNotFound):
		return domain.ErrNotFound
	default:
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
}

// classifyValidation reports a blank required field as ErrMissingInput and
// any other rule failure as ErrInvalidInput.
func classifyValidation(err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for _, fieldErr := range fields {
		var verr validation.Error
		if errors.As(fieldErr, &verr) && verr.Code() == validation.ErrRequired.Code() {
			return fmt.Errorf("%w: %v", domain.ErrMissingInput, err)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func trimmedOrNil(ptr *string) *string {
	if ptr == nil {
		return nil
	}
	val := strings.TrimSpace(*ptr)
	if val == "" {
		return nil
	}
	return &val
}
