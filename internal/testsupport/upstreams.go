package testsupport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Clark-Hu/disc-catalog/internal/tmdb"
	"github.com/Clark-Hu/disc-catalog/internal/upc"
)

// ProductLookup is a scripted upc.Client.
type ProductLookup struct {
	mu       sync.Mutex
	products map[string]*upc.Result
	calls    atomic.Int64

	// Err, when set, is returned by every Lookup.
	Err error
}

var _ upc.Client = (*ProductLookup)(nil)

// NewProductLookup returns a lookup with no registered barcodes. Unknown
// barcodes resolve to an empty result.
func NewProductLookup() *ProductLookup {
	return &ProductLookup{products: make(map[string]*upc.Result)}
}

// Add registers products for barcode.
func (p *ProductLookup) Add(barcode string, items ...upc.Product) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.products[barcode] = &upc.Result{Code: "OK", Total: len(items), Items: items}
}

func (p *ProductLookup) Lookup(_ context.Context, barcode string) (*upc.Result, error) {
	p.calls.Add(1)
	if p.Err != nil {
		return nil, p.Err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if res, ok := p.products[barcode]; ok {
		return res, nil
	}
	return &upc.Result{Code: "OK"}, nil
}

// Calls reports how many lookups were made.
func (p *ProductLookup) Calls() int64 { return p.calls.Load() }

// MovieMetadata is a scripted tmdb.Client.
type MovieMetadata struct {
	mu          sync.Mutex
	searches    map[string][]tmdb.MovieSummary
	details     map[int64]*tmdb.MovieDetails
	credits     map[int64]*tmdb.Credits
	queries     []string
	searchCalls atomic.Int64
	detailCalls atomic.Int64
	creditCalls atomic.Int64

	// SearchErr, DetailsErr and CreditsErr override the matching call.
	SearchErr  error
	DetailsErr error
	CreditsErr error
}

var _ tmdb.Client = (*MovieMetadata)(nil)

// NewMovieMetadata returns an empty metadata fake.
func NewMovieMetadata() *MovieMetadata {
	return &MovieMetadata{
		searches: make(map[string][]tmdb.MovieSummary),
		details:  make(map[int64]*tmdb.MovieDetails),
		credits:  make(map[int64]*tmdb.Credits),
	}
}

// AddSearch registers the results returned for query.
func (m *MovieMetadata) AddSearch(query string, results ...tmdb.MovieSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[query] = results
}

// AddMovie registers details and credits for a movie id.
func (m *MovieMetadata) AddMovie(details tmdb.MovieDetails, crew ...tmdb.CrewMember) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := details
	m.details[details.ID] = &d
	m.credits[details.ID] = &tmdb.Credits{ID: details.ID, Crew: crew}
}

func (m *MovieMetadata) SearchMovies(_ context.Context, query string) ([]tmdb.MovieSummary, error) {
	m.searchCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.searches[query], nil
}

func (m *MovieMetadata) MovieDetails(_ context.Context, movieID int64) (*tmdb.MovieDetails, error) {
	m.detailCalls.Add(1)
	if m.DetailsErr != nil {
		return nil, m.DetailsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[movieID]
	if !ok {
		return &tmdb.MovieDetails{ID: movieID}, nil
	}
	return d, nil
}

func (m *MovieMetadata) MovieCredits(_ context.Context, movieID int64) (*tmdb.Credits, error) {
	m.creditCalls.Add(1)
	if m.CreditsErr != nil {
		return nil, m.CreditsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credits[movieID]
	if !ok {
		return &tmdb.Credits{ID: movieID}, nil
	}
	return c, nil
}

// Queries returns the search queries received so far.
func (m *MovieMetadata) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Calls reports the total number of calls across all operations.
func (m *MovieMetadata) Calls() int64 {
	return m.searchCalls.Load() + m.detailCalls.Load() + m.creditCalls.Load()
}

// SearchCalls reports how many searches were made.
func (m *MovieMetadata) SearchCalls() int64 { return m.searchCalls.Load() }
