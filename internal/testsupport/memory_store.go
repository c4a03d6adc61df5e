// Package testsupport provides in-memory stand-ins for the catalog's storage
// and upstream services. They are safe for concurrent use and count calls so
// tests can assert which collaborators were reached.
package testsupport

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
)

// MemoryStore mirrors repository.CatalogRepository semantics in memory.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]domain.CatalogEntry
	uniqueTitle bool
	now         func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts repository.Options) *MemoryStore {
	return &MemoryStore{
		entries:     make(map[string]domain.CatalogEntry),
		uniqueTitle: opts.UniqueTitle,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Create(_ context.Context, params repository.EntryParams) (domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.CatalogEntry{}, m.Err
	}
	if err := m.checkUniqueLocked("", params); err != nil {
		return domain.CatalogEntry{}, err
	}
	now := m.now()
	entry := fromParams(uuid.NewString(), params)
	entry.CreatedAt = now
	entry.UpdatedAt = now
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *MemoryStore) List(_ context.Context) ([]domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]domain.CatalogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.CatalogEntry{}, m.Err
	}
	entry, ok := m.entries[id]
	if !ok {
		return domain.CatalogEntry{}, repository.ErrNotFound
	}
	return entry, nil
}

func (m *MemoryStore) GetByBarcode(_ context.Context, barcode string) (domain.CatalogEntry, error) {
	return m.findFirst(func(e domain.CatalogEntry) bool { return e.Barcode == barcode })
}

func (m *MemoryStore) FindByTitle(_ context.Context, title string, mode repository.TitleMatch) (domain.CatalogEntry, error) {
	if mode == repository.TitleMatchContains {
		needle := strings.ToLower(title)
		return m.findFirst(func(e domain.CatalogEntry) bool {
			return strings.Contains(strings.ToLower(e.Title), needle)
		})
	}
	return m.findFirst(func(e domain.CatalogEntry) bool { return e.Title == title })
}

func (m *MemoryStore) Replace(_ context.Context, id string, params repository.EntryParams) (domain.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.CatalogEntry{}, m.Err
	}
	current, ok := m.entries[id]
	if !ok {
		return domain.CatalogEntry{}, repository.ErrNotFound
	}
	if err := m.checkUniqueLocked(id, params); err != nil {
		return domain.CatalogEntry{}, err
	}
	entry := fromParams(id, params)
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = m.now()
	m.entries[id] = entry
	return entry, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

// Len reports how many entries are stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// findFirst returns the matching entry that sorts first by title.
func (m *MemoryStore) findFirst(match func(domain.CatalogEntry) bool) (domain.CatalogEntry, error) {
	entries, err := m.List(context.Background())
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	for _, e := range entries {
		if match(e) {
			return e, nil
		}
	}
	return domain.CatalogEntry{}, repository.ErrNotFound
}

func (m *MemoryStore) checkUniqueLocked(excludeID string, params repository.EntryParams) error {
	for id, e := range m.entries {
		if id == excludeID {
			continue
		}
		if e.Barcode == params.Barcode {
			return &repository.DuplicateKeyError{Field: "barcode", Value: params.Barcode}
		}
		if m.uniqueTitle && e.Title == params.Title {
			return &repository.DuplicateKeyError{Field: "title", Value: params.Title}
		}
	}
	return nil
}

func fromParams(id string, params repository.EntryParams) domain.CatalogEntry {
	imageURL := params.ImageURL
	if imageURL == "" {
		imageURL = domain.CoverNotFoundImageURL
	}
	return domain.CatalogEntry{
		ID:          id,
		Barcode:     params.Barcode,
		Title:       params.Title,
		Comments:    params.Comments,
		ImageURL:    imageURL,
		ReleaseYear: params.ReleaseYear,
		Director:    params.Director,
		Brand:       params.Brand,
	}
}
