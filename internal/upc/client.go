package upc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Clark-Hu/disc-catalog/internal/domain"
)

// ServiceName identifies this upstream in ExternalServiceError values.
const ServiceName = "upc"

const maxErrorBody = 4 << 10

// Product is a single retail record returned for a barcode.
type Product struct {
	EAN         string   `json:"ean"`
	UPC         string   `json:"upc"`
	Title       string   `json:"title"`
	ProductName string   `json:"product_name"`
	Brand       string   `json:"brand"`
	Images      []string `json:"images"`
}

// DisplayTitle returns the product title, falling back to the product name.
func (p Product) DisplayTitle() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return strings.TrimSpace(p.ProductName)
}

// Result is the decoded lookup response.
type Result struct {
	Code  string    `json:"code"`
	Total int       `json:"total"`
	Items []Product `json:"items"`
}

// Client defines the contract for the barcode-to-product service.
type Client interface {
	Lookup(ctx context.Context, barcode string) (*Result, error)
}

// Options tunes the HTTP client.
type Options struct {
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
	Logger        zerolog.Logger
}

// HTTPClient implements Client over HTTP. It makes a single attempt per call.
type HTTPClient struct {
	endpoint *url.URL
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a lookup client for the given endpoint, for example
// https://api.upcitemdb.com/prod/trial/lookup.
func NewHTTPClient(endpoint string, opts Options) (*HTTPClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("upc endpoint required")
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse upc url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &HTTPClient{
		endpoint: parsed,
		apiKey:   strings.TrimSpace(opts.APIKey),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: opts.Logger,
	}
	if opts.RatePerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), 1)
	}
	return c, nil
}

// Lookup retrieves the product records registered for barcode.
func (c *HTTPClient) Lookup(ctx context.Context, barcode string) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.ExternalServiceError{Service: ServiceName, Detail: fmt.Sprintf("rate limit wait: %v", err)}
		}
	}

	endpoint := *c.endpoint
	q := endpoint.Query()
	q.Set("upc", barcode)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upc: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("user_key", c.apiKey)
		req.Header.Set("key_type", "3scale")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("barcode", barcode).Dur("latency", time.Since(start)).Msg("upc: request failed")
		return nil, domain.TransportFailure(ServiceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(resp)
		c.logger.Warn().Int("status", resp.StatusCode).Str("barcode", barcode).Msg("upc: unexpected status")
		return nil, &domain.ExternalServiceError{Service: ServiceName, Status: resp.StatusCode, Detail: detail}
	}

	var payload Result
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &domain.ExternalServiceError{Service: ServiceName, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	c.logger.Debug().Str("barcode", barcode).Int("items", len(payload.Items)).Dur("latency", time.Since(start)).Msg("upc: lookup complete")
	return &payload, nil
}

// errorDetail extracts the service's own message from an error body, falling
// back to the status text. The raw body is never returned.
func errorDetail(resp *http.Response) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Code != "":
			return body.Code
		}
	}
	return http.StatusText(resp.StatusCode)
}
