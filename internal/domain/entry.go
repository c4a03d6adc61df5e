package domain

import "time"

// Placeholder artwork used when no poster is available.
const (
	CoverNotFoundImageURL = "https://placehold.co/300x400?text=Cover+Not+Found"
	ManualEntryImageURL   = "https://placehold.co/300x400?text=Manual+Entry"
)

// UnknownBrand is stored when the metadata service lists no production company.
const UnknownBrand = "N/A"

// CatalogEntry represents one physical disc in the collection.
type CatalogEntry struct {
	ID          string
	Barcode     string
	Title       string
	Comments    string
	ImageURL    string
	ReleaseYear *int
	Director    *string
	Brand       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Candidate is a metadata match offered to the user for confirmation.
// Candidates are never persisted.
type Candidate struct {
	ExternalID  int64
	Title       string
	ReleaseYear *string
	ImageURL    *string
}
