package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
)

// ServiceName identifies this upstream in ExternalServiceError values.
const ServiceName = "tmdb"

const maxErrorBody = 4 << 10

// MovieSummary is a single search hit.
type MovieSummary struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	PosterPath  string `json:"poster_path"`
}

type searchResponse struct {
	Page         int            `json:"page"`
	Results      []MovieSummary `json:"results"`
	TotalResults int            `json:"total_results"`
}

// ProductionCompany names a studio credited on a movie.
type ProductionCompany struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MovieDetails is the detail payload for a single movie.
type MovieDetails struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title"`
	PosterPath          string              `json:"poster_path"`
	ReleaseDate         string              `json:"release_date"`
	ProductionCompanies []ProductionCompany `json:"production_companies"`
}

// CrewMember is one crew credit.
type CrewMember struct {
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// Credits lists the crew of a movie.
type Credits struct {
	ID   int64        `json:"id"`
	Crew []CrewMember `json:"crew"`
}

// Client defines the metadata operations used by the catalog.
type Client interface {
	SearchMovies(ctx context.Context, query string) ([]MovieSummary, error)
	MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
	MovieCredits(ctx context.Context, movieID int64) (*Credits, error)
}

// HTTPClient talks to the TMDB REST API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-call timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLanguage requests localized titles.
func WithLanguage(language string) Option {
	return func(c *HTTPClient) {
		c.language = strings.TrimSpace(language)
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logger
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL string, opts ...Option) (*HTTPClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &HTTPClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchMovies searches movies by title, preserving TMDB's ranking.
func (c *HTTPClient) SearchMovies(ctx context.Context, query string) ([]MovieSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)

	var payload searchResponse
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// MovieDetails fetches a movie by TMDB ID.
func (c *HTTPClient) MovieDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload MovieDetails
	if err := c.get(ctx, fmt.Sprintf("/movie/%d", movieID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MovieCredits fetches the cast and crew of a movie by TMDB ID.
func (c *HTTPClient) MovieCredits(ctx context.Context, movieID int64) (*Credits, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Credits
	if err := c.get(ctx, fmt.Sprintf("/movie/%d/credits", movieID), nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst interface{}) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		failure := domain.TransportFailure(ServiceName, err)
		c.logger.Warn().Err(failure).Str("path", path).Dur("latency", latency).Msg("tmdb: request failed")
		return failure
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Dur("latency", latency).Msg("tmdb: unexpected status")
		return &domain.ExternalServiceError{Service: ServiceName, Status: resp.StatusCode, Detail: errorDetail(resp)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &domain.ExternalServiceError{Service: ServiceName, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	return nil
}

// errorDetail prefers TMDB's status_message over the generic status text.
func errorDetail(resp *http.Response) string {
	var body struct {
		StatusMessage string `json:"status_message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &body) == nil && body.StatusMessage != "" {
		return body.StatusMessage
	}
	return http.StatusText(resp.StatusCode)
}
