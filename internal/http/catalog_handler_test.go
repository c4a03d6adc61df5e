package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/disc-catalog/internal/catalog"
	"github.com/Clark-Hu/disc-catalog/internal/config"
	"github.com/Clark-Hu/disc-catalog/internal/domain"
	"github.com/Clark-Hu/disc-catalog/internal/repository"
	"github.com/Clark-Hu/disc-catalog/internal/testsupport"
	"github.com/Clark-Hu/disc-catalog/internal/tmdb"
	"github.com/Clark-Hu/disc-catalog/internal/upc"
)

type handlerFixture struct {
	srv      *Server
	store    *testsupport.MemoryStore
	products *testsupport.ProductLookup
	movies   *testsupport.MovieMetadata
	health   *stubHealth
}

type stubHealth struct{ err error }

func (h *stubHealth) HealthCheck(context.Context) error { return h.err }

func newHandlerFixture(t testing.TB) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		store:    testsupport.NewMemoryStore(repository.Options{}),
		products: testsupport.NewProductLookup(),
		movies:   testsupport.NewMovieMetadata(),
		health:   &stubHealth{},
	}
	resolver := catalog.NewResolver(f.store, f.products, f.movies, zerolog.Nop())
	svc := catalog.NewService(f.store, f.movies, catalog.ServiceOptions{Logger: zerolog.Nop()})
	f.srv = New(config.Config{Port: "0"}, resolver, svc, f.health, zerolog.Nop())
	return f
}

func (f *handlerFixture) do(t testing.TB, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t testing.TB, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.health.err = errors.New("db down")
	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanReturnsCandidates(t *testing.T) {
	f := newHandlerFixture(t)
	f.products.Add("7321900170187", upc.Product{Title: "The Matrix DVD Special Edition 1999"})
	f.movies.AddSearch("the matrix special",
		tmdb.MovieSummary{ID: 603, Title: "The Matrix", ReleaseDate: "1999-03-30", PosterPath: "/m.jpg"},
		tmdb.MovieSummary{ID: 55931, Title: "The Matrix Revisited"},
	)

	rec := f.do(t, http.MethodPost, "/catalog/scan", `{"barcode":"7321900170187"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[
		{"externalId":603,"title":"The Matrix","releaseYear":"1999","imageUrl":"https://image.tmdb.org/t/p/w200/m.jpg"},
		{"externalId":55931,"title":"The Matrix Revisited","releaseYear":null,"imageUrl":null}
	]`, rec.Body.String())
}

func TestScanAcceptsLegacyNumericEANCode(t *testing.T) {
	f := newHandlerFixture(t)
	f.products.Add("5051892002042", upc.Product{ProductName: "Inception [DVD]"})
	f.movies.AddSearch("inception", tmdb.MovieSummary{ID: 27205, Title: "Inception"})

	rec := f.do(t, http.MethodPost, "/catalog/scan", `{"eanCode":5051892002042}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[[]candidateResponse](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, int64(27205), got[0].ExternalID)
}

func TestScanErrorStatuses(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		setup    func(f *handlerFixture)
		status   int
		code     string
		detailed bool
	}{
		{name: "missing barcode", body: `{}`, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "malformed json", body: `{"barcode":`, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "empty body", body: ``, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "product not found", body: `{"barcode":"000"}`, status: http.StatusNotFound, code: "PRODUCT_NOT_FOUND"},
		{
			name: "title not found",
			body: `{"barcode":"1"}`,
			setup: func(f *handlerFixture) {
				f.products.Add("1", upc.Product{Brand: "Acme"})
			},
			status: http.StatusNotFound, code: "TITLE_NOT_FOUND",
		},
		{
			name: "title too short",
			body: `{"barcode":"2"}`,
			setup: func(f *handlerFixture) {
				f.products.Add("2", upc.Product{Title: "DVD"})
			},
			status: http.StatusNotFound, code: "TITLE_TOO_SHORT",
		},
		{
			name: "no match",
			body: `{"barcode":"3"}`,
			setup: func(f *handlerFixture) {
				f.products.Add("3", upc.Product{Title: "Unknown Film"})
			},
			status: http.StatusNotFound, code: "NO_MATCH",
		},
		{
			name: "duplicate",
			body: `{"barcode":"4"}`,
			setup: func(f *handlerFixture) {
				_, _ = f.store.Create(context.Background(), repository.EntryParams{Barcode: "4", Title: "Heat"})
			},
			status: http.StatusConflict, code: "DUPLICATE_BARCODE",
		},
		{
			name: "upstream rate limited",
			body: `{"barcode":"5"}`,
			setup: func(f *handlerFixture) {
				f.products.Err = &domain.ExternalServiceError{Service: upc.ServiceName, Status: 429, Detail: "TOO_FAST"}
			},
			status: http.StatusTooManyRequests, code: "EXTERNAL_SERVICE_ERROR", detailed: true,
		},
		{
			name: "upstream not found",
			body: `{"barcode":"6"}`,
			setup: func(f *handlerFixture) {
				f.products.Err = &domain.ExternalServiceError{Service: upc.ServiceName, Status: 404, Detail: "Not Found"}
			},
			status: http.StatusNotFound, code: "EXTERNAL_SERVICE_ERROR", detailed: true,
		},
		{
			name: "upstream server error",
			body: `{"barcode":"7"}`,
			setup: func(f *handlerFixture) {
				f.products.Add("7", upc.Product{Title: "Heat"})
				f.movies.SearchErr = &domain.ExternalServiceError{Service: tmdb.ServiceName, Status: 500, Detail: "boom"}
			},
			status: http.StatusBadGateway, code: "EXTERNAL_SERVICE_ERROR", detailed: true,
		},
		{
			name: "upstream unreachable",
			body: `{"barcode":"8"}`,
			setup: func(f *handlerFixture) {
				f.products.Err = &domain.ExternalServiceError{Service: upc.ServiceName, Detail: "connection refused"}
			},
			status: http.StatusBadGateway, code: "EXTERNAL_SERVICE_ERROR", detailed: true,
		},
		{
			name: "storage failure",
			body: `{"barcode":"9"}`,
			setup: func(f *handlerFixture) {
				f.store.Err = errors.New("pool closed")
			},
			status: http.StatusInternalServerError, code: "INTERNAL_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			rec := f.do(t, http.MethodPost, "/catalog/scan", tc.body)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			resp := decodeBody[errorResponse](t, rec)
			assert.Equal(t, tc.code, resp.Code)
			if tc.detailed {
				assert.NotEmpty(t, resp.Details)
			} else {
				assert.Nil(t, resp.Details)
			}
			assert.NotContains(t, rec.Body.String(), "pool closed")
		})
	}
}

func TestConfirmCreatesEntry(t *testing.T) {
	f := newHandlerFixture(t)
	f.movies.AddMovie(tmdb.MovieDetails{
		ID:                  949,
		Title:               "Heat",
		PosterPath:          "/heat.jpg",
		ReleaseDate:         "1995-12-15",
		ProductionCompanies: []tmdb.ProductionCompany{{Name: "Regency Enterprises"}},
	}, tmdb.CrewMember{Name: "Michael Mann", Job: "Director"})

	rec := f.do(t, http.MethodPost, "/catalog/confirm", `{"tmdbId":"949","eanCode":"5039036"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	got := decodeBody[entryResponse](t, rec)
	assert.Equal(t, "/catalog/"+got.ID, rec.Header().Get("Location"))
	assert.Equal(t, "5039036", got.Barcode)
	assert.Equal(t, "Heat", got.Title)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/heat.jpg", got.ImageURL)
	assert.Equal(t, 1995, *got.ReleaseYear)
	assert.Equal(t, "Michael Mann", *got.Director)
	assert.Equal(t, "Regency Enterprises", *got.Brand)

	rec = f.do(t, http.MethodPost, "/catalog/confirm", `{"externalId":949,"barcode":"5039036"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/catalog/confirm", `{"barcode":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/catalog/confirm", `{"externalId":"abc","barcode":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualEntryLifecycle(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/catalog/", `{"barcode":"42","title":"Zodiac"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	zodiac := decodeBody[entryResponse](t, rec)
	assert.Equal(t, domain.ManualEntryImageURL, zodiac.ImageURL)
	assert.Equal(t, "", zodiac.Comments)
	assert.Nil(t, zodiac.Director)

	rec = f.do(t, http.MethodPost, "/catalog/", `{"barcode":"43","title":"Amelie","releaseYear":2001}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/catalog/", `{"barcode":"42","title":"Other"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/catalog/", `{"barcode":"44"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/catalog/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]entryResponse](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Amelie", list[0].Title)
	assert.Equal(t, "Zodiac", list[1].Title)

	rec = f.do(t, http.MethodGet, "/catalog/"+zodiac.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, zodiac.ID, decodeBody[entryResponse](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/catalog/barcode/42", "")
	require.Equal(t, http.StatusOK, rec.Code)
	byBarcode := decodeBody[entryResponse](t, rec)
	assert.Equal(t, zodiac.ID, byBarcode.ID)
	assert.Equal(t, "", byBarcode.Comments)
	assert.Equal(t, domain.ManualEntryImageURL, byBarcode.ImageURL)

	rec = f.do(t, http.MethodGet, "/catalog/title/"+strings.ReplaceAll("Zodiac", " ", "%20"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPatch, "/catalog/"+zodiac.ID, `{"id":"ignored","comments":"director's cut","releaseYear":2007}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decodeBody[entryResponse](t, rec)
	assert.Equal(t, "director's cut", patched.Comments)
	assert.Equal(t, 2007, *patched.ReleaseYear)
	assert.Equal(t, "Zodiac", patched.Title)

	rec = f.do(t, http.MethodPatch, "/catalog/"+zodiac.ID, `{"barcode":"43"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodDelete, "/catalog/"+zodiac.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Entry deleted successfully"}`, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/catalog/"+zodiac.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/catalog/"+zodiac.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLookupRoutesDecodeEscapedParams(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/catalog/", `{"barcode":"100%","title":"100%"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/catalog/", `{"barcode":"a/b","title":"AC/DC Live"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cases := []struct {
		path  string
		title string
	}{
		{"/catalog/title/100%25", "100%"},
		{"/catalog/barcode/100%25", "100%"},
		{"/catalog/title/AC%2FDC%20Live", "AC/DC Live"},
		{"/catalog/barcode/a%2Fb", "AC/DC Live"},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodGet, tc.path, "")
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", tc.path, rec.Body.String())
		assert.Equal(t, tc.title, decodeBody[entryResponse](t, rec).Title, tc.path)
	}
}

func TestEntryRoutesRejectMalformedIDs(t *testing.T) {
	f := newHandlerFixture(t)

	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		rec := f.do(t, method, "/catalog/not-a-uuid", `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	rec := f.do(t, http.MethodGet, "/catalog/barcode/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/catalog/title/Unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLenientDecoding(t *testing.T) {
	var req confirmRequest
	require.NoError(t, json.Unmarshal([]byte(`{"tmdbId":" 12 ","eanCode":4006680,"barcode":null}`), &req))
	assert.Equal(t, lenientInt(12), req.TMDBID)
	assert.Equal(t, lenientString("4006680"), req.EANCode)
	assert.Equal(t, lenientString(""), req.Barcode)

	assert.Error(t, json.Unmarshal([]byte(`{"externalId":"twelve"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"barcode":{}}`), &req))
}
