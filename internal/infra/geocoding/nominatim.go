// Package geocoding resolves origin and destination descriptors to coordinates.
package geocoding

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fuelstop/config"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	providerName = "nominatim"

	defaultBaseURL     = "https://nominatim.openstreetmap.org"
	defaultUserAgent   = "fuelplanner/1.0"
	defaultMinInterval = time.Second
	defaultTimeout     = 10 * time.Second
	defaultCacheSize   = 10000
	defaultCacheTTL    = 24 * time.Hour
)

// Nominatim geocodes free text through an OpenStreetMap Nominatim server.
// Requests are spaced by a minimum interval and successful lookups are kept in a
// bounded LRU cache with a TTL.
type Nominatim struct {
	baseURL      string
	userAgent    string
	countryCodes string
	httpClient   *http.Client
	limiter      *rate.Limiter
	cache        gcache.Cache
	logger       *slog.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatim creates a geocoder from configuration. A nil config uses the public server.
func NewNominatim(cfg *config.GeocoderConfig, logger *slog.Logger) *Nominatim {
	if cfg == nil {
		cfg = &config.GeocoderConfig{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Nominatim{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:    cfg.UserAgent,
		countryCodes: cfg.CountryCodes,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger.With(slog.String("component", "nominatim")),
	}
	if g.baseURL == "" {
		g.baseURL = defaultBaseURL
	}
	if g.userAgent == "" {
		g.userAgent = defaultUserAgent
	}
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = defaultMinInterval
	}
	g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	if g.httpClient.Timeout <= 0 {
		g.httpClient.Timeout = defaultTimeout
	}
	g.cache = newLookupCache(cfg.CacheSize, cfg.CacheTTL, gcache.NewRealClock())

	return g
}

// newLookupCache builds the address cache. A negative ttl disables expiry.
func newLookupCache(size int, ttl time.Duration, clock gcache.Clock) gcache.Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl == 0 {
		ttl = defaultCacheTTL
	}

	builder := gcache.New(size).LRU().Clock(clock)
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}

	return builder.Build()
}

// Resolve turns a descriptor into a point. "lat,lon" pairs are parsed directly,
// anything else is geocoded.
func (g *Nominatim) Resolve(ctx context.Context, descriptor string) (entity.RoutePoint, error) {
	if point, ok, err := ParseCoordinates(descriptor); ok {
		return point, err
	}

	return g.Geocode(ctx, descriptor)
}

// Geocode returns the best match for a free text address.
func (g *Nominatim) Geocode(ctx context.Context, address string) (entity.RoutePoint, error) {
	key := normalize(address)
	if key == "" {
		return entity.RoutePoint{}, domainerrors.ErrInvalidLocation.WithDetails("empty address")
	}

	if cached, err := g.cache.Get(key); err == nil {
		return cached.(entity.RoutePoint), nil
	}

	if err := g.wait(ctx); err != nil {
		return entity.RoutePoint{}, err
	}

	query := url.Values{}
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	if g.countryCodes != "" {
		query.Set("countrycodes", g.countryCodes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/search?"+query.Encode(), nil)
	if err != nil {
		return entity.RoutePoint{}, domainerrors.NewRouteProviderError(providerName, 0, "", errors.Wrap(err, "create request"))
	}
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return entity.RoutePoint{}, domainerrors.NewRouteProviderError(providerName, 0, "", errors.WithStack(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return entity.RoutePoint{}, domainerrors.NewRouteProviderError(providerName, resp.StatusCode,
			strings.TrimSpace(string(body)), errors.Errorf("geocode %q", address))
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return entity.RoutePoint{}, domainerrors.NewRouteProviderError(providerName, resp.StatusCode, "",
			errors.Wrap(err, "decode geocoding response"))
	}
	if len(results) == 0 {
		return entity.RoutePoint{}, domainerrors.ErrInvalidLocation.WithDetails("no match for " + strconv.Quote(address))
	}

	point, err := parseResult(results[0])
	if err != nil {
		return entity.RoutePoint{}, domainerrors.NewRouteProviderError(providerName, resp.StatusCode, "", err)
	}

	if err := g.cache.Set(key, point); err != nil {
		g.logger.Warn("Failed to cache geocode result", slog.String("address", address), slog.Any("error", err))
	}

	g.logger.Debug("Address geocoded",
		slog.String("address", address),
		slog.String("display_name", results[0].DisplayName),
		slog.Float64("lat", point.Lat),
		slog.Float64("lon", point.Lon),
	)

	return point, nil
}

// wait blocks until the next request slot or until ctx is done.
func (g *Nominatim) wait(ctx context.Context) error {
	err := g.limiter.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}

	// The slot lies beyond the request deadline.
	return domainerrors.NewRouteProviderError(providerName, 0, "", errors.Wrap(err, "wait for request slot"))
}

func parseResult(r nominatimResponse) (entity.RoutePoint, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return entity.RoutePoint{}, errors.Wrapf(err, "invalid latitude %q", r.Lat)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return entity.RoutePoint{}, errors.Wrapf(err, "invalid longitude %q", r.Lon)
	}

	point := entity.RoutePoint{Lat: lat, Lon: lon}
	if !point.Valid() {
		return entity.RoutePoint{}, errors.Errorf("coordinate out of range (%s, %s)", r.Lat, r.Lon)
	}

	return point, nil
}

// ParseCoordinates reads a "lat,lon" descriptor. ok is false when the input is not a
// numeric pair, and err is set when it is a pair outside WGS84 bounds.
func ParseCoordinates(s string) (point entity.RoutePoint, ok bool, err error) {
	latText, lonText, found := strings.Cut(s, ",")
	if !found {
		return entity.RoutePoint{}, false, nil
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latText), 64)
	lon, lonErr := strconv.ParseFloat(strings.TrimSpace(lonText), 64)
	if latErr != nil || lonErr != nil {
		return entity.RoutePoint{}, false, nil
	}

	point = entity.RoutePoint{Lat: lat, Lon: lon}
	if !point.Valid() {
		return entity.RoutePoint{}, true, domainerrors.ErrInvalidLocation.WithDetails("coordinate out of range: " + s)
	}

	return point, true, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
