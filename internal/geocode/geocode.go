// Package geocode provides the reverse-geocoding collaborator phase5 calls
// to attach a human-readable location to an augmented ski area, following
// pkg/geocode's functional-options Client shape and its
// golang.org/x/time/rate throttling, trimmed to the one operation this
// engine needs (centroid coordinates -> location), per spec.md §4.4/§6.
// Outbound calls are wrapped in the same resilience.Do/CircuitBreaker pair
// the enrichment CLI wraps its external HTTP clients in, since a
// reverse-geocoding provider is exactly the kind of flaky third party that
// pattern exists for.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/resilience"
)

// Geocoder resolves a coordinate to a human-readable location. Failures are
// the caller's concern to log and ignore (spec.md: "geocoder failures are
// logged and leave location unchanged").
type Geocoder interface {
	Reverse(ctx context.Context, lng, lat float64) (*model.GeocodedLocation, error)
}

// Option configures an HTTPGeocoder.
type Option func(*HTTPGeocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *HTTPGeocoder) { g.httpClient = hc }
}

// WithRateLimit sets the requests-per-second limit applied to outbound
// reverse-geocode calls.
func WithRateLimit(rps float64) Option {
	return func(g *HTTPGeocoder) { g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1) }
}

// WithAPIKey sets the provider API key, sent as a query parameter.
func WithAPIKey(key string) Option {
	return func(g *HTTPGeocoder) { g.apiKey = key }
}

// WithRetryConfig overrides the default retry/backoff behavior applied to
// each outbound reverse-geocode request.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(g *HTTPGeocoder) { g.retry = cfg }
}

// WithCircuitConfig overrides the default circuit breaker guarding the
// reverse-geocoding endpoint.
func WithCircuitConfig(cfg resilience.CircuitBreakerConfig) Option {
	return func(g *HTTPGeocoder) { g.breaker = resilience.NewCircuitBreaker(cfg) }
}

// HTTPGeocoder calls an HTTP reverse-geocoding endpoint, rate-limited to
// stay within the provider's quota.
type HTTPGeocoder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	retry      resilience.RetryConfig
}

// NewHTTPGeocoder returns a geocoder that queries baseURL with opts applied.
// Default rate limit is 5 req/s, a conservative default for unconfigured
// third-party reverse-geocoding APIs.
func NewHTTPGeocoder(baseURL string, opts ...Option) *HTTPGeocoder {
	g := &HTTPGeocoder{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type reverseGeocodeResponse struct {
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Postcode    string `json:"postcode"`
		State       string `json:"state"`
		StateCode   string `json:"state_code"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Reverse queries the configured endpoint for the location at (lng, lat),
// retrying transient failures and tripping the circuit breaker after
// repeated ones, following resilience.Do's usage on the enrichment CLI's
// other external HTTP clients.
func (g *HTTPGeocoder) Reverse(ctx context.Context, lng, lat float64) (*model.GeocodedLocation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limiter")
	}

	return resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (*model.GeocodedLocation, error) {
		return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*model.GeocodedLocation, error) {
			return g.reverseOnce(ctx, lng, lat)
		})
	})
}

func (g *HTTPGeocoder) reverseOnce(ctx context.Context, lng, lat float64) (*model.GeocodedLocation, error) {
	url := fmt.Sprintf("%s?lat=%f&lon=%f&format=json", g.baseURL, lat, lng)
	if g.apiKey != "" {
		url += "&key=" + g.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: reverse request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("geocode: reverse request: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var parsed reverseGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "geocode: decode response")
	}

	locality := parsed.Address.City
	if locality == "" {
		locality = parsed.Address.Town
	}
	if locality == "" {
		locality = parsed.Address.Village
	}

	return &model.GeocodedLocation{
		PostalCode:       parsed.Address.Postcode,
		Locality:         locality,
		RegionCode:       parsed.Address.StateCode,
		Country:          parsed.Address.CountryCode,
		LocalizedCountry: parsed.Address.Country,
	}, nil
}

// NoopGeocoder always returns no result without making a network call. It
// is the default when reverse geocoding is disabled (Geocoder.Enabled is
// false) or when pipeline.New is given no geocoder.
type NoopGeocoder struct{}

func (NoopGeocoder) Reverse(_ context.Context, _, _ float64) (*model.GeocodedLocation, error) {
	return nil, nil
}
