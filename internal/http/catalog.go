package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/Clark-Hu/disc-catalog/internal/catalog"
	"github.com/Clark-Hu/disc-catalog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type entryResponse struct {
	ID          string    `json:"id"`
	Barcode     string    `json:"barcode"`
	Title       string    `json:"title"`
	Comments    string    `json:"comments"`
	ImageURL    string    `json:"imageUrl"`
	ReleaseYear *int      `json:"releaseYear"`
	Director    *string   `json:"director"`
	Brand       *string   `json:"brand"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type candidateResponse struct {
	ExternalID  int64   `json:"externalId"`
	Title       string  `json:"title"`
	ReleaseYear *string `json:"releaseYear"`
	ImageURL    *string `json:"imageUrl"`
}

// scanRequest accepts the legacy eanCode field alongside barcode.
type scanRequest struct {
	Barcode lenientString `json:"barcode"`
	EANCode lenientString `json:"eanCode"`
}

// confirmRequest accepts the legacy tmdbId and eanCode fields.
type confirmRequest struct {
	ExternalID lenientInt    `json:"externalId"`
	TMDBID     lenientInt    `json:"tmdbId"`
	Barcode    lenientString `json:"barcode"`
	EANCode    lenientString `json:"eanCode"`
}

type createRequest struct {
	Barcode     lenientString `json:"barcode"`
	EANCode     lenientString `json:"eanCode"`
	Title       string        `json:"title"`
	Comments    *string       `json:"comments"`
	ImageURL    *string       `json:"imageUrl"`
	ReleaseYear *int          `json:"releaseYear"`
	Director    *string       `json:"director"`
	Brand       *string       `json:"brand"`
}

type updateRequest struct {
	Barcode     *lenientString `json:"barcode"`
	Title       *string        `json:"title"`
	Comments    *string        `json:"comments"`
	ImageURL    *string        `json:"imageUrl"`
	ReleaseYear *int           `json:"releaseYear"`
	Director    *string        `json:"director"`
	Brand       *string        `json:"brand"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	entry, err := s.catalog.CreateManual(r.Context(), catalog.ManualInput{
		Barcode:     firstNonEmpty(string(req.Barcode), string(req.EANCode)),
		Title:       req.Title,
		Comments:    req.Comments,
		ImageURL:    req.ImageURL,
		ReleaseYear: req.ReleaseYear,
		Director:    req.Director,
		Brand:       req.Brand,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/catalog/"+entry.ID)
	s.respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	entry, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleGetByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode, err := decodePathParam(r, "barcode")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	entry, err := s.catalog.GetByBarcode(r.Context(), barcode)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleGetByTitle(w http.ResponseWriter, r *http.Request) {
	title, err := decodePathParam(r, "title")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	entry, err := s.catalog.FindByTitle(r.Context(), title)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	patch := catalog.EntryPatch{
		Title:       req.Title,
		Comments:    req.Comments,
		ImageURL:    req.ImageURL,
		ReleaseYear: req.ReleaseYear,
		Director:    req.Director,
		Brand:       req.Brand,
	}
	if req.Barcode != nil {
		barcode := string(*req.Barcode)
		patch.Barcode = &barcode
	}

	entry, err := s.catalog.Update(r.Context(), id, patch)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.entryID(w, r)
	if !ok {
		return
	}
	if err := s.catalog.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Entry deleted successfully"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	candidates, err := s.resolver.Resolve(r.Context(), firstNonEmpty(string(req.Barcode), string(req.EANCode)))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, candidateResponse{
			ExternalID:  c.ExternalID,
			Title:       c.Title,
			ReleaseYear: c.ReleaseYear,
			ImageURL:    c.ImageURL,
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	externalID := int64(req.ExternalID)
	if externalID == 0 {
		externalID = int64(req.TMDBID)
	}
	entry, err := s.catalog.ConfirmFromExternal(r.Context(), externalID, firstNonEmpty(string(req.Barcode), string(req.EANCode)))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/catalog/"+entry.ID)
	s.respondJSON(w, http.StatusCreated, toEntryResponse(entry))
}

// entryID extracts the {id} path parameter. Values that are not UUIDs cannot
// name an entry and are answered with 404 directly.
func (s *Server) entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Entry not found", nil)
		return "", false
	}
	return id, true
}

// respondServiceError maps catalog failures onto status codes. Unexpected
// errors are logged and answered with a generic 500.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ext *domain.ExternalServiceError
	switch {
	case errors.Is(err, domain.ErrMissingInput), errors.Is(err, domain.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, domain.ErrDuplicateTitle):
		s.respondError(w, http.StatusConflict, "DUPLICATE_TITLE", "An entry with this title already exists", nil)
	case errors.Is(err, domain.ErrDuplicateBarcode):
		s.respondError(w, http.StatusConflict, "DUPLICATE_BARCODE", "An entry with this barcode already exists", nil)
	case errors.Is(err, domain.ErrProductNotFound):
		s.respondError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found for barcode", nil)
	case errors.Is(err, domain.ErrTitleNotFound):
		s.respondError(w, http.StatusNotFound, "TITLE_NOT_FOUND", "Product title not found", nil)
	case errors.Is(err, domain.ErrTitleTooShort):
		s.respondError(w, http.StatusNotFound, "TITLE_TOO_SHORT", "Cleaned title is too short to search", nil)
	case errors.Is(err, domain.ErrNoMatchFound):
		s.respondError(w, http.StatusNotFound, "NO_MATCH", "No movie matched the product title", nil)
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Entry not found", nil)
	case errors.As(err, &ext):
		hlog.FromRequest(r).Warn().Err(err).Str("upstream", ext.Service).Int("upstream_status", ext.Status).Msg("external service error")
		s.respondError(w, upstreamStatus(ext), "EXTERNAL_SERVICE_ERROR", "External API Error", ext.Detail)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal Server Error", nil)
	}
}

// upstreamStatus passes through "not found" and "rate limited" and reports
// every other upstream failure as a bad gateway.
func upstreamStatus(ext *domain.ExternalServiceError) int {
	switch ext.Status {
	case http.StatusNotFound, http.StatusTooManyRequests:
		return ext.Status
	default:
		return http.StatusBadGateway
	}
}

// decodeJSONBody reads a single JSON document. Unknown fields are ignored
// because clients echo whole entries back on update.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	resp := errorResponse{Code: code, Message: message}
	if d, ok := details.(string); !ok || d != "" {
		resp.Details = details
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesError):
		s.respondError(w, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large", nil)
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON payload", nil)
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field), nil)
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body cannot be empty", nil)
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body", nil)
	}
}

func toEntryResponse(e domain.CatalogEntry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		Barcode:     e.Barcode,
		Title:       e.Title,
		Comments:    e.Comments,
		ImageURL:    e.ImageURL,
		ReleaseYear: e.ReleaseYear,
		Director:    e.Director,
		Brand:       e.Brand,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// decodePathParam returns a decoded route parameter. chi matches on RawPath
// when the request carries one, so only then is the value still escaped.
func decodePathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return "", fmt.Errorf("missing %s parameter", name)
	}
	if r.URL.RawPath == "" {
		return raw, nil
	}
	value, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter", name)
	}
	return value, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// lenientString decodes a JSON string or number. Barcodes scanned by older
// clients arrive as numbers.
type lenientString string

func (s *lenientString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = lenientString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = lenientString(n.String())
	return nil
}

// lenientInt decodes a JSON number or a numeric string.
type lenientInt int64

func (i *lenientInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q", raw)
	}
	*i = lenientInt(v)
	return nil
}
