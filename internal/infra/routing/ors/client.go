// Package ors fetches driving routes from OpenRouteService.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fuelstop/config"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	providerName = "openrouteservice"

	defaultBaseURL = "https://api.openrouteservice.org"
	defaultProfile = "driving-hgv"
	defaultTimeout = 20 * time.Second
)

// Client calls the directions endpoint and returns the route as a polyline.
// The client is safe for concurrent use.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	profile      string
	snapRadius   int
	retryBackoff time.Duration
	logger       *slog.Logger
}

// NewClient creates a directions client from configuration. Zero values fall back
// to the public endpoint, the heavy goods vehicle profile and a 20s timeout.
func NewClient(cfg *config.RouteProviderConfig, logger *slog.Logger) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openrouteservice api key is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		profile:      cfg.Profile,
		snapRadius:   cfg.SnapRadiusMeters,
		retryBackoff: 200 * time.Millisecond,
		logger:       logger.With(slog.String("component", "ors_client")),
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.profile == "" {
		client.profile = defaultProfile
	}
	if client.httpClient.Timeout <= 0 {
		client.httpClient.Timeout = defaultTimeout
	}

	return client, nil
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
	Radiuses    []int        `json:"radiuses,omitempty"`
}

// Route requests the driving route from origin to destination. When the snapped
// request cannot place a point on the road network it is repeated once without
// radiuses so OpenRouteService applies its own snapping.
func (c *Client) Route(ctx context.Context, origin, destination entity.RoutePoint) (*entity.RouteGeometry, error) {
	payload := directionsRequest{
		Coordinates: [][2]float64{
			{origin.Lon, origin.Lat},
			{destination.Lon, destination.Lat},
		},
	}
	if c.snapRadius > 0 {
		payload.Radiuses = []int{c.snapRadius, c.snapRadius}
	}

	url := c.baseURL + "/v2/directions/" + c.profile + "/geojson"
	started := time.Now()

	resp, err := c.postDirections(ctx, url, payload)
	if err != nil && payload.Radiuses != nil && snapFailed(err) {
		c.logger.Info("Retrying route without snap radius",
			slog.Int("radius_m", c.snapRadius),
			slog.Any("error", err),
		)
		payload.Radiuses = nil
		resp, err = c.postDirections(ctx, url, payload)
	}
	if err != nil {
		return nil, c.providerError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domainerrors.NewRouteProviderError(providerName, resp.StatusCode, "", errors.Wrap(err, "read directions response"))
	}

	geometry, err := decodeDirections(raw)
	if err != nil {
		return nil, domainerrors.NewRouteProviderError(providerName, resp.StatusCode, "", err)
	}

	c.logger.Debug("Route fetched",
		slog.Int("points", len(geometry.Points)),
		slog.Float64("distance_m", geometry.DistanceMeters),
		slog.Duration("elapsed", time.Since(started)),
	)

	return geometry, nil
}

func (c *Client) postDirections(ctx context.Context, url string, payload directionsRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encode directions request")
	}

	return c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
	})
}

// snapFailed reports whether ORS rejected the request's points or parameters,
// which is how a point beyond the snap radius is answered.
func snapFailed(err error) bool {
	statusErr, ok := errors.Find[*httpStatusError](err)

	return ok && (statusErr.Code == http.StatusNotFound || statusErr.Code == http.StatusBadRequest)
}

func (c *Client) providerError(err error) error {
	if statusErr, ok := errors.Find[*httpStatusError](err); ok {
		return domainerrors.NewRouteProviderError(providerName, statusErr.Code, statusErr.Body, err)
	}

	return domainerrors.NewRouteProviderError(providerName, 0, "", err)
}

// decodeDirections reads the first LineString feature of a directions response.
func decodeDirections(raw []byte) (*entity.RouteGeometry, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode directions geojson")
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("directions response has no route")
	}

	feature := fc.Features[0]
	line, ok := feature.Geometry.(orb.LineString)
	if !ok {
		return nil, errors.Errorf("directions geometry is %s, want LineString", feature.Geometry.GeoJSONType())
	}
	if len(line) < 2 {
		return nil, errors.Errorf("directions route has %d points", len(line))
	}

	points := make([]entity.RoutePoint, len(line))
	for i, p := range line {
		points[i] = entity.RoutePointFromOrb(p)
	}

	geometry := &entity.RouteGeometry{Points: points}
	if summary, ok := feature.Properties["summary"].(map[string]any); ok {
		geometry.DistanceMeters, _ = summary["distance"].(float64)
		geometry.DurationSeconds, _ = summary["duration"].(float64)
	}

	return geometry, nil
}
