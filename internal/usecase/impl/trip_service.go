package impl

import (
	"context"
	"log/slog"
	"math"
	"time"

	"fuelstop/config"
	deliverycontext "fuelstop/internal/delivery/context"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/domain/service"
	"fuelstop/internal/infra/routing/geometry"
	"fuelstop/internal/infra/routing/refuel"
	"fuelstop/internal/infra/routing/spatial"
	"fuelstop/internal/usecase"
	"fuelstop/internal/util"

	"go.uber.org/fx"
)

const (
	// fallback defaults to keep planning functional when config is missing
	defaultMaxDeviationKm = 2.0
	defaultTankRangeMiles = 500.0
	defaultMPG            = 10.0
)

// TripServiceParams holds the trip service dependencies, injected by Fx.
type TripServiceParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Catalog  *spatial.Holder
	Geocoder service.Geocoder
	Routes   service.RouteProvider
	Renderer service.MapRenderer `optional:"true"`
}

type tripService struct {
	defaults planOptions
	batch    geometry.BatchOptions

	catalog  *spatial.Holder
	geocoder service.Geocoder
	routes   service.RouteProvider
	renderer service.MapRenderer
	logger   *slog.Logger
}

// planOptions is a PlanConfig with every default resolved and units converted.
type planOptions struct {
	maxDeviationMeters float64
	tolerance          float64
	weights            refuel.Weights
	vehicle            refuel.Vehicle
}

// NewTripService creates the fuel stop planner
func NewTripService(params TripServiceParams) usecase.TripUsecase {
	planner := &config.PlannerConfig{}
	if params.Config != nil && params.Config.Planner != nil {
		planner = params.Config.Planner
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaults := planOptions{
		maxDeviationMeters: positiveOr(planner.MaxDeviationKm, defaultMaxDeviationKm) * 1000,
		tolerance:          positiveOr(planner.SimplifyToleranceMeters, geometry.DefaultSimplifyTolerance),
		weights: refuel.Weights{
			Price:     positiveOr(planner.PriceWeight, refuel.DefaultWeights.Price),
			Deviation: positiveOr(planner.DeviationWeight, refuel.DefaultWeights.Deviation),
		},
		vehicle: refuel.Vehicle{
			TankRangeMeters:     positiveOr(planner.TankRangeMiles, defaultTankRangeMiles) * refuel.MetersPerMile,
			MPG:                 positiveOr(planner.MPG, defaultMPG),
			InitialFuelFraction: planner.InitialFuelFraction,
		},
	}
	if defaults.vehicle.InitialFuelFraction < 0 || defaults.vehicle.InitialFuelFraction > 1 {
		logger.Warn("Ignoring out of range initial fuel fraction",
			slog.Float64("initial_fuel_fraction", planner.InitialFuelFraction))
		defaults.vehicle.InitialFuelFraction = 0
	}

	return &tripService{
		defaults: defaults,
		batch: geometry.BatchOptions{
			BatchSize: planner.ProjectionBatchSize,
			Workers:   planner.ProjectionWorkers,
		},
		catalog:  params.Catalog,
		geocoder: params.Geocoder,
		routes:   params.Routes,
		renderer: params.Renderer,
		logger:   logger,
	}
}

// ComputeRoutePlan resolves both locations, fetches the route and runs the planner
// against the catalog snapshot current at call time.
func (s *tripService) ComputeRoutePlan(ctx context.Context, req *usecase.TripRequest) (*usecase.TripPlanResult, error) {
	started := time.Now()

	snapshot, ok := s.catalog.Current()
	if !ok || snapshot.Index.Size() == 0 {
		return nil, domainerrors.NewEmptyCatalogError("station catalog is not loaded")
	}

	opts, err := s.resolve(req.Config)
	if err != nil {
		return nil, err
	}

	origin, err := s.geocoder.Resolve(ctx, req.Origin)
	if err != nil {
		return nil, err
	}
	destination, err := s.geocoder.Resolve(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	routeGeometry, err := s.routes.Route(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	route, err := geometry.Preprocess(routeGeometry.Points, opts.tolerance)
	if err != nil {
		return nil, err
	}

	table := geometry.NewSegmentTable(route)
	candidates, err := refuel.FindCandidates(ctx, snapshot.Index, table, opts.maxDeviationMeters, s.batch)
	if err != nil {
		return nil, err
	}
	scored := refuel.Score(candidates, opts.weights)

	plan, err := refuel.SelectStops(scored, route.TotalDistance(), opts.vehicle)
	if err != nil {
		return nil, err
	}
	summary := refuel.Summarize(route, plan, opts.vehicle.MPG)

	result := buildResult(req, route, summary, snapshot.Version)
	result.MapURL = s.renderMap(ctx, req, origin, destination, route, summary)

	s.log(ctx).Info("Route plan computed",
		slog.String("origin", req.Origin),
		slog.String("destination", req.Destination),
		slog.String("distance", util.FormatMiles(route.TotalDistance())),
		slog.Int("route_points", len(routeGeometry.Points)),
		slog.Int("simplified_points", route.Len()),
		slog.Int("candidates", len(scored)),
		slog.Int("stops", len(plan)),
		slog.Uint64("catalog_version", snapshot.Version),
		slog.Duration("elapsed", time.Since(started)),
	)

	return result, nil
}

// log returns the request-scoped logger when the call came through the API.
func (s *tripService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// renderMap publishes the trip map. The map is a convenience artifact, so a
// failure is logged and the plan is still returned.
func (s *tripService) renderMap(
	ctx context.Context,
	req *usecase.TripRequest,
	origin, destination entity.RoutePoint,
	route *entity.SimplifiedRoute,
	summary entity.TripSummary,
) string {
	if s.renderer == nil {
		return ""
	}

	url, err := s.renderer.Render(ctx, &service.TripMap{
		Origin:           req.Origin,
		Destination:      req.Destination,
		OriginPoint:      origin,
		DestinationPoint: destination,
		Route:            route,
		Summary:          summary,
	})
	if err != nil {
		s.log(ctx).Warn("Failed to render trip map", slog.Any("error", err))

		return ""
	}

	return url
}

func (s *tripService) resolve(cfg usecase.PlanConfig) (planOptions, error) {
	fields := []struct {
		name  string
		value float64
	}{
		{"max_deviation_km", cfg.MaxDeviationKm},
		{"tank_range_miles", cfg.TankRangeMiles},
		{"mpg", cfg.MPG},
		{"price_weight", valueOr(cfg.PriceWeight, 0)},
		{"deviation_weight", valueOr(cfg.DeviationWeight, 0)},
		{"initial_fuel_fraction", cfg.InitialFuelFraction},
	}
	for _, f := range fields {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return planOptions{}, domainerrors.ErrValidationFailed.WithDetails(f.name + " must be a finite non-negative number")
		}
	}
	if cfg.InitialFuelFraction > 1 {
		return planOptions{}, domainerrors.ErrValidationFailed.WithDetails("initial_fuel_fraction must not exceed 1")
	}

	opts := s.defaults
	if cfg.MaxDeviationKm > 0 {
		opts.maxDeviationMeters = cfg.MaxDeviationKm * 1000
	}
	if cfg.TankRangeMiles > 0 {
		opts.vehicle.TankRangeMeters = cfg.TankRangeMiles * refuel.MetersPerMile
	}
	if cfg.MPG > 0 {
		opts.vehicle.MPG = cfg.MPG
	}
	opts.weights.Price = valueOr(cfg.PriceWeight, opts.weights.Price)
	opts.weights.Deviation = valueOr(cfg.DeviationWeight, opts.weights.Deviation)
	if cfg.InitialFuelFraction > 0 {
		opts.vehicle.InitialFuelFraction = cfg.InitialFuelFraction
	}

	return opts, nil
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}

	return *p
}

func buildResult(req *usecase.TripRequest, route *entity.SimplifiedRoute, summary entity.TripSummary, version uint64) *usecase.TripPlanResult {
	stops := make([]usecase.StopView, len(summary.Stops))
	for i, stop := range summary.Stops {
		stops[i] = usecase.StopView{
			StationID:   stop.StationID,
			Name:        stop.Name,
			City:        stop.City,
			State:       stop.State,
			Latitude:    stop.Lat,
			Longitude:   stop.Lon,
			RouteMile:   round(stop.RoutePositionMeters/refuel.MetersPerMile, 1),
			DeviationKm: round(stop.DeviationMeters/1000, 2),
			Gallons:     round(stop.Gallons, 2),
			Price:       stop.Price,
			Cost:        round(stop.Cost(), 2),
		}
	}

	return &usecase.TripPlanResult{
		RouteSummary: usecase.RouteSummary{
			Origin:             req.Origin,
			Destination:        req.Destination,
			TotalDistanceMiles: round(summary.TotalDistanceMiles, 2),
			TotalFuelGallons:   round(summary.TotalFuelGallons, 2),
			PurchasedGallons:   round(summary.PurchasedGallons, 2),
			TotalFuelCost:      round(summary.TotalFuelCost, 2),
			AveragePricePaid:   round(summary.AveragePricePaid, 3),
			CatalogVersion:     version,
		},
		Stops:   stops,
		Route:   route.Points,
		Summary: summary,
	}
}

func positiveOr(v, fallback float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}

	return fallback
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))

	return math.Round(v*scale) / scale
}
