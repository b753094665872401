package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/rs/zerolog/log"

	"github.com/fleetview/backend/internal/domain"
	"github.com/fleetview/backend/internal/observability"
	"github.com/fleetview/backend/pkg/utils"
)

// ErrNoLabel is returned when the geocoder answers without a usable label
var ErrNoLabel = errors.New("geocoder: response has no address label")

const (
	geocodeCachePrecision = 5
	geocodeMaxRetries     = 2
)

// GeocodingService handles reverse geocoding against the dashboard API
type GeocodingService struct {
	baseURL    string
	httpClient *http.Client
	labels     *cache.Cache[string]
	cacheTTL   time.Duration
}

// NewGeocodingService creates a new geocoding service. An empty baseURL
// runs in mock mode; labels may be nil to disable caching.
func NewGeocodingService(baseURL string, timeout time.Duration, labels *cache.Cache[string], cacheTTL time.Duration) *GeocodingService {
	return &GeocodingService{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		labels:   labels,
		cacheTTL: cacheTTL,
	}
}

// reverseResponse is the expected shape of the reverse geocoding endpoint
type reverseResponse struct {
	Data *struct {
		Address string `json:"address"`
	} `json:"data"`
}

// ReverseGeocode returns a human-readable label for c
func (s *GeocodingService) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	// Return a coordinate label if no geocoder is configured
	if s.baseURL == "" {
		return s.getMockLabel(c), nil
	}

	key := geocodeCacheKey(c)
	if s.labels != nil {
		if label, err := s.labels.Get(ctx, key); err == nil && label != "" {
			observability.GeocodeRequests.WithLabelValues("cached").Inc()
			return label, nil
		}
	}

	start := time.Now()
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), geocodeMaxRetries),
		ctx,
	)
	label, err := backoff.RetryWithData(func() (string, error) {
		return s.fetch(ctx, c)
	}, policy)
	observability.ObserveGeocodeLatency(start)
	if err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		return "", err
	}
	observability.GeocodeRequests.WithLabelValues("ok").Inc()

	if s.labels != nil {
		if err := s.labels.Set(ctx, key, label, store.WithExpiration(s.cacheTTL)); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("Failed to cache geocode label")
		}
	}
	return label, nil
}

// fetch performs one request. Errors that retrying cannot fix are wrapped
// as permanent.
func (s *GeocodingService) fetch(ctx context.Context, c domain.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lng, 'f', -1, 64))
	endpoint := s.baseURL + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("geocoder: failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", fmt.Errorf("geocoder: upstream returned status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", backoff.Permanent(fmt.Errorf("geocoder: upstream returned status %d", resp.StatusCode))
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", backoff.Permanent(fmt.Errorf("geocoder: failed to decode response: %w", err))
	}
	if body.Data == nil || strings.TrimSpace(body.Data.Address) == "" {
		return "", backoff.Permanent(ErrNoLabel)
	}
	return strings.TrimSpace(body.Data.Address), nil
}

// Health checks geocoder connectivity
func (s *GeocodingService) Health(ctx context.Context) error {
	if s.baseURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("geocoder: failed to create health request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("geocoder: health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoder: health check returned status %d", resp.StatusCode)
	}
	return nil
}

// getMockLabel formats the coordinate itself
func (s *GeocodingService) getMockLabel(c domain.Coordinate) string {
	return fmt.Sprintf("%.5f, %.5f", c.Lat, c.Lng)
}

func geocodeCacheKey(c domain.Coordinate) string {
	return fmt.Sprintf("geocode:%.5f:%.5f",
		utils.RoundTo(c.Lat, geocodeCachePrecision),
		utils.RoundTo(c.Lng, geocodeCachePrecision))
}
