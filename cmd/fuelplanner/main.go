package main

import (
	"context"
	"log/slog"
	"os"

	"fuelstop/config"
	"fuelstop/internal/delivery"
	"fuelstop/internal/delivery/api"
	"fuelstop/internal/delivery/api/router/handler"
	"fuelstop/internal/domain/service"
	"fuelstop/internal/infra/catalog"
	"fuelstop/internal/infra/geocoding"
	logs "fuelstop/internal/infra/log"
	"fuelstop/internal/infra/mapview"
	"fuelstop/internal/infra/routing/ors"
	"fuelstop/internal/infra/routing/spatial"
	"fuelstop/internal/usecase"
	"fuelstop/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectHandler(),
		fx.Invoke(
			loadCatalog,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		spatial.NewHolder,
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newStationSource,
			newRouteProvider,
			newGeocoder,
			newMapRenderer,
		),
	)
}

func newStationSource(logger *slog.Logger) impl.StationSource {
	return catalog.NewLoader(logger)
}

func newRouteProvider(cfg *config.Config, logger *slog.Logger) (service.RouteProvider, error) {
	return ors.NewClient(cfg.RouteProvider, logger)
}

func newGeocoder(cfg *config.Config, logger *slog.Logger) service.Geocoder {
	return geocoding.NewNominatim(cfg.Geocoder, logger)
}

// newMapRenderer opens the map bucket when rendering is enabled. A nil renderer
// leaves map_url empty in every plan.
func newMapRenderer(ctx context.Context, lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (service.MapRenderer, error) {
	if !cfg.MapRender.Enabled {
		return nil, nil
	}

	renderer, err := mapview.OpenRenderer(ctx, cfg.MapRender, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return renderer.Close()
		},
	})

	return renderer, nil
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewTripService,
			impl.NewCatalogService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewTripHandler,
			handler.NewCatalogHandler,
			handler.NewMapHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// loadCatalog builds the first snapshot on start. Plans fail with EMPTY_CATALOG
// until it is published.
func loadCatalog(lc fx.Lifecycle, catalogUC usecase.CatalogUsecase) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := catalogUC.Reload(ctx)

			return err
		},
	})
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
