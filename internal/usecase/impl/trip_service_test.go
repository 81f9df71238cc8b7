package impl

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"fuelstop/config"
	deliverycontext "fuelstop/internal/delivery/context"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/errors"
	"fuelstop/internal/infra/routing/geometry"
	"fuelstop/internal/infra/routing/refuel"
	"fuelstop/internal/infra/routing/spatial"
	"fuelstop/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tripFixture struct {
	service  usecase.TripUsecase
	geocoder *fakeGeocoder
	routes   *fakeRouteProvider
	renderer *fakeRenderer
}

func newTripFixture(cfg *config.Config, holder *spatial.Holder) *tripFixture {
	f := &tripFixture{
		geocoder: &fakeGeocoder{points: map[string]entity.RoutePoint{
			"Origin":      {Lat: originLat, Lon: routeLon},
			"Destination": {Lat: latAtMile(500), Lon: routeLon},
		}},
		routes:   &fakeRouteProvider{},
		renderer: &fakeRenderer{},
	}
	f.service = NewTripService(TripServiceParams{
		Config:   cfg,
		Logger:   newDiscardLogger(),
		Catalog:  holder,
		Geocoder: f.geocoder,
		Routes:   f.routes,
		Renderer: f.renderer,
	})

	return f
}

func tripRequest(cfg usecase.PlanConfig) *usecase.TripRequest {
	return &usecase.TripRequest{Origin: "Origin", Destination: "Destination", Config: cfg}
}

func TestNewTripService_ZeroConfig(t *testing.T) {
	svc := NewTripService(TripServiceParams{Config: &config.Config{}, Catalog: spatial.NewHolder()}).(*tripService)

	assert.InDelta(t, defaultMaxDeviationKm*1000, svc.defaults.maxDeviationMeters, 1e-9)
	assert.InDelta(t, defaultTankRangeMiles*refuel.MetersPerMile, svc.defaults.vehicle.TankRangeMeters, 1e-9)
	assert.Equal(t, defaultMPG, svc.defaults.vehicle.MPG)
	assert.Equal(t, refuel.DefaultWeights, svc.defaults.weights)
	assert.Equal(t, geometry.DefaultSimplifyTolerance, svc.defaults.tolerance)
}

func TestTripService_ComputeRoutePlan(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))
	require.NoError(t, err)

	// A full 300 mile tank reaches the cheapest station at mile 250, which then
	// sells just enough to finish.
	require.Len(t, result.Stops, 1)
	stop := result.Stops[0]
	assert.Equal(t, "b", stop.StationID)
	assert.InDelta(t, 250.0, stop.RouteMile, 0.05)
	assert.InDelta(t, 20.0, stop.Gallons, 0.01)
	assert.InDelta(t, 64.0, stop.Cost, 0.01)

	summary := result.RouteSummary
	assert.Equal(t, "Origin", summary.Origin)
	assert.InDelta(t, 500.0, summary.TotalDistanceMiles, 0.01)
	assert.InDelta(t, 50.0, summary.TotalFuelGallons, 0.01)
	assert.InDelta(t, 20.0, summary.PurchasedGallons, 0.01)
	assert.InDelta(t, 64.0, summary.TotalFuelCost, 0.01)
	assert.InDelta(t, 1.28, summary.AveragePricePaid, 0.001)
	assert.Equal(t, uint64(1), summary.CatalogVersion)

	assert.Equal(t, "/maps/route_test.geojson", result.MapURL)
	require.NotNil(t, f.renderer.trip)
	assert.Equal(t, "Destination", f.renderer.trip.Destination)
	assert.Len(t, f.renderer.trip.Summary.Stops, 1)
	assert.Len(t, result.Route, 2)
}

func TestTripService_LogsThroughRequestLogger(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	var buf bytes.Buffer
	reqLogger := slog.New(slog.NewTextHandler(&buf, nil)).With(slog.String("request_id", "req-42"))
	ctx := deliverycontext.WithLogger(context.Background(), reqLogger)

	_, err := f.service.ComputeRoutePlan(ctx, tripRequest(usecase.PlanConfig{}))
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `msg="Route plan computed"`)
	assert.Contains(t, buf.String(), "request_id=req-42")
}

func TestTripService_ComputeRoutePlanHalfTank(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{InitialFuelFraction: 0.5}))
	require.NoError(t, err)

	require.Len(t, result.Stops, 2)
	assert.Equal(t, "a", result.Stops[0].StationID)
	assert.InDelta(t, 10.0, result.Stops[0].Gallons, 0.01)
	assert.Equal(t, "b", result.Stops[1].StationID)
	assert.InDelta(t, 25.0, result.Stops[1].Gallons, 0.01)
	assert.InDelta(t, 115.0, result.RouteSummary.TotalFuelCost, 0.01)
}

func TestTripService_RequestOverridesDefaults(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	// A 150 km deviation allowance brings the cheap station east of the route in.
	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{
		MaxDeviationKm: 150,
		PriceWeight:    ptr(1.0),
	}))
	require.NoError(t, err)

	require.NotEmpty(t, result.Stops)
	assert.Equal(t, "far", result.Stops[0].StationID)
	assert.Greater(t, result.Stops[0].DeviationKm, 90.0)
}

func TestTripService_ExplicitZeroWeightIsKept(t *testing.T) {
	svc := newTripFixture(newTestConfig(), spatial.NewHolder()).service.(*tripService)

	opts, err := svc.resolve(usecase.PlanConfig{PriceWeight: ptr(0.0)})
	require.NoError(t, err)
	assert.Equal(t, refuel.Weights{Price: 0, Deviation: refuel.DefaultWeights.Deviation}, opts.weights)

	opts, err = svc.resolve(usecase.PlanConfig{})
	require.NoError(t, err)
	assert.Equal(t, refuel.DefaultWeights, opts.weights)

	_, err = svc.resolve(usecase.PlanConfig{DeviationWeight: ptr(-1.0)})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
}

func TestTripService_NoStopNeeded(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{TankRangeMiles: 600}))
	require.NoError(t, err)

	assert.Empty(t, result.Stops)
	assert.Zero(t, result.RouteSummary.TotalFuelCost)
	assert.Zero(t, result.RouteSummary.AveragePricePaid)
}

func TestTripService_Infeasible(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{TankRangeMiles: 120}))

	require.Error(t, err)
	assert.Nil(t, result)
	infeasible, ok := errors.Find[*domainerrors.InfeasibleRouteError](err)
	require.True(t, ok)
	assert.InDelta(t, 100*refuel.MetersPerMile, infeasible.GapStartMeters, 5)
	assert.InDelta(t, 250*refuel.MetersPerMile, infeasible.GapEndMeters, 5)
	assert.Equal(t, http.StatusUnprocessableEntity, infeasible.HTTPCode())
	assert.Nil(t, f.renderer.trip)
}

func TestTripService_EmptyCatalog(t *testing.T) {
	f := newTripFixture(newTestConfig(), spatial.NewHolder())

	_, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))

	assert.True(t, errors.Is(err, domainerrors.ErrEmptyCatalog))
	assert.Zero(t, f.routes.calls)
}

func TestTripService_InvalidConfig(t *testing.T) {
	tests := map[string]usecase.PlanConfig{
		"negative mpg":       {MPG: -1},
		"negative range":     {TankRangeMiles: -300},
		"fraction above one": {InitialFuelFraction: 1.5},
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))

			_, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(cfg))

			assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed))
			assert.Zero(t, f.routes.calls)
		})
	}
}

func TestTripService_ProviderErrorsPassThrough(t *testing.T) {
	providerErr := domainerrors.NewRouteProviderError("openrouteservice", http.StatusNotFound, "no route", nil)
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))
	f.routes.err = providerErr

	_, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))

	assert.Same(t, providerErr, err)
}

func TestTripService_GeocoderError(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))
	f.geocoder.err = domainerrors.ErrInvalidLocation.WithDetails("no match")

	_, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))

	assert.True(t, errors.Is(err, domainerrors.ErrInvalidLocation))
	assert.Zero(t, f.routes.calls)
}

func TestTripService_DegenerateRoute(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))
	f.routes.geometry = &entity.RouteGeometry{Points: []entity.RoutePoint{{Lat: 30, Lon: -100}}}

	_, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))

	assert.True(t, errors.Is(err, domainerrors.ErrInvalidRoute))
}

func TestTripService_RenderFailureKeepsPlan(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))
	f.renderer.err = errors.New("bucket unavailable")

	result, err := f.service.ComputeRoutePlan(context.Background(), tripRequest(usecase.PlanConfig{}))

	require.NoError(t, err)
	assert.Empty(t, result.MapURL)
	assert.Len(t, result.Stops, 1)
}

func TestTripService_CanceledContext(t *testing.T) {
	f := newTripFixture(newTestConfig(), publishedHolder(scenarioStations()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.ComputeRoutePlan(ctx, tripRequest(usecase.PlanConfig{}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
