package impl

import (
	"context"
	"io"
	"log/slog"
	"math"

	"fuelstop/config"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/domain/service"
	"fuelstop/internal/infra/catalog"
	"fuelstop/internal/infra/routing/refuel"
	"fuelstop/internal/infra/routing/spatial"

	"github.com/paulmach/orb"
)

const originLat, routeLon = 30.0, -100.0

func ptr[T any](v T) *T {
	return &v
}

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Planner: &config.PlannerConfig{
			MaxDeviationKm: 2,
			TankRangeMiles: 300,
			MPG:            10,
		},
		Catalog: &config.CatalogConfig{
			BucketURL: "mem://",
			Object:    "stations.csv",
		},
	}
}

// latAtMile returns the latitude reached after driving miles due north from the origin.
func latAtMile(miles float64) float64 {
	return originLat + miles*refuel.MetersPerMile/orb.EarthRadius*180/math.Pi
}

func onRouteStation(id string, mile, price float64) entity.Station {
	return entity.Station{ID: id, Name: "Station " + id, City: "Town", State: "TX", Lat: latAtMile(mile), Lon: routeLon, RetailPrice: price}
}

func scenarioStations() []entity.Station {
	return []entity.Station{
		onRouteStation("a", 100, 3.50),
		onRouteStation("b", 250, 3.20),
		onRouteStation("c", 400, 3.80),
		// Cheap but about 90 km east of the route.
		{ID: "far", Name: "Far", City: "Elsewhere", State: "TX", Lat: latAtMile(250), Lon: routeLon + 1, RetailPrice: 1.00},
	}
}

func publishedHolder(stations []entity.Station) *spatial.Holder {
	holder := spatial.NewHolder()
	holder.Publish(spatial.Build(stations), "test", 0)

	return holder
}

type fakeGeocoder struct {
	points map[string]entity.RoutePoint
	err    error
}

func (f *fakeGeocoder) Resolve(_ context.Context, descriptor string) (entity.RoutePoint, error) {
	if f.err != nil {
		return entity.RoutePoint{}, f.err
	}

	return f.points[descriptor], nil
}

type fakeRouteProvider struct {
	geometry *entity.RouteGeometry
	err      error
	calls    int
}

func (f *fakeRouteProvider) Route(_ context.Context, origin, destination entity.RoutePoint) (*entity.RouteGeometry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.geometry != nil {
		return f.geometry, nil
	}

	return &entity.RouteGeometry{Points: []entity.RoutePoint{origin, destination}}, nil
}

type fakeRenderer struct {
	trip *service.TripMap
	err  error
}

func (f *fakeRenderer) Render(_ context.Context, trip *service.TripMap) (string, error) {
	f.trip = trip
	if f.err != nil {
		return "", f.err
	}

	return "/maps/route_test.geojson", nil
}

func (f *fakeRenderer) Fetch(context.Context, string) ([]byte, error) {
	return nil, f.err
}

type fakeStationSource struct {
	results []*catalog.Result
	err     error
	calls   int
}

func (f *fakeStationSource) LoadURL(_ context.Context, _ catalog.Source) (*catalog.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return f.results[min(f.calls, len(f.results))-1], nil
}
