// Package mapview publishes trip maps as GeoJSON documents.
package mapview

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"fuelstop/config"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/service"
	"fuelstop/internal/infra/routing/geometry"
	"fuelstop/internal/infra/routing/refuel"
	"fuelstop/internal/util"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"
)

const (
	contentType = "application/geo+json"
	keyPrefix   = "route_"
	keySuffix   = ".geojson"
)

// Feature roles written to the "role" property.
const (
	RoleRoute       = "route"
	RoleOrigin      = "origin"
	RoleDestination = "destination"
	RoleStop        = "fuel_stop"
)

// Renderer writes one FeatureCollection per trip into a blob bucket.
type Renderer struct {
	bucket        *blob.Bucket
	publicBaseURL string
	logger        *slog.Logger
}

// NewRenderer wraps an open bucket. Returned URLs are publicBaseURL + "/" + key.
func NewRenderer(bucket *blob.Bucket, publicBaseURL string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Renderer{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With(slog.String("component", "map_renderer")),
	}
}

// OpenRenderer opens the configured bucket. The caller owns Close.
func OpenRenderer(ctx context.Context, cfg *config.MapRenderConfig, logger *slog.Logger) (*Renderer, error) {
	if cfg == nil || cfg.BucketURL == "" {
		return nil, errors.New("map render bucket url is empty")
	}

	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL)
	if err != nil {
		return nil, errors.Wrapf(err, "open map bucket %s", cfg.BucketURL)
	}

	return NewRenderer(bucket, cfg.PublicBaseURL, logger), nil
}

// Close releases the underlying bucket.
func (r *Renderer) Close() error {
	return errors.WithStack(r.bucket.Close())
}

// Render stores the trip map under a random key and returns its URL.
func (r *Renderer) Render(ctx context.Context, trip *service.TripMap) (string, error) {
	data, err := Build(trip).MarshalJSON()
	if err != nil {
		return "", errors.Wrap(err, "encode trip map")
	}

	key := keyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + keySuffix
	if err := r.bucket.WriteAll(ctx, key, data, &blob.WriterOptions{ContentType: contentType}); err != nil {
		return "", errors.Wrapf(err, "write trip map %s", key)
	}

	r.logger.Debug("Trip map written",
		slog.String("key", key),
		slog.String("size", util.FormatBytes(int64(len(data)))),
	)

	return r.publicBaseURL + "/" + key, nil
}

// Fetch returns a stored trip map. Only keys produced by Render are accepted.
func (r *Renderer) Fetch(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, domainerrors.ErrNotFound.WithDetails("unknown map " + key)
	}

	data, err := r.bucket.ReadAll(ctx, key)
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, domainerrors.ErrNotFound.WithDetails("unknown map " + key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read trip map %s", key)
	}

	return data, nil
}

func validKey(key string) bool {
	id, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return false
	}
	id, ok = strings.CutSuffix(id, keySuffix)
	if !ok || len(id) != 32 {
		return false
	}

	return strings.Trim(id, "0123456789abcdef") == ""
}

// Build lays out the route line, both endpoints and one marker per fuel stop.
func Build(trip *service.TripMap) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if trip.Route != nil && trip.Route.Len() >= 2 {
		line := geojson.NewFeature(trip.Route.LineString())
		line.Properties["role"] = RoleRoute
		line.Properties["distance_miles"] = round(trip.Summary.TotalDistanceMiles, 2)
		fc.Append(line)
	}

	origin := geojson.NewFeature(trip.OriginPoint.Point())
	origin.Properties["role"] = RoleOrigin
	origin.Properties["label"] = "Start: " + trip.Origin
	fc.Append(origin)

	destination := geojson.NewFeature(trip.DestinationPoint.Point())
	destination.Properties["role"] = RoleDestination
	destination.Properties["label"] = "End: " + trip.Destination
	fc.Append(destination)

	for i, stop := range trip.Summary.Stops {
		marker := geojson.NewFeature(orb.Point{stop.Lon, stop.Lat})
		marker.Properties["role"] = RoleStop
		marker.Properties["stop"] = i + 1
		marker.Properties["station_id"] = stop.StationID
		marker.Properties["name"] = stop.Name
		marker.Properties["price"] = stop.Price
		marker.Properties["gallons"] = round(stop.Gallons, 2)
		marker.Properties["deviation_km"] = round(stop.DeviationMeters/1000, 1)
		marker.Properties["route_mile"] = round(stop.RoutePositionMeters/refuel.MetersPerMile, 1)
		if trip.Route != nil && trip.Route.Len() >= 2 {
			// where the detour leaves the route
			exit := geometry.PositionAt(trip.Route, stop.RoutePositionMeters)
			marker.Properties["exit_point"] = []float64{exit.Lon, exit.Lat}
		}
		fc.Append(marker)
	}

	return fc
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))

	return math.Round(v*scale) / scale
}
