package impl

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"fuelstop/config"
	deliverycontext "fuelstop/internal/delivery/context"
	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/entity"
	"fuelstop/internal/infra/catalog"
	"fuelstop/internal/infra/routing/spatial"
	"fuelstop/internal/usecase"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

const defaultNearbyLimit = 20

// StationSource loads a station dataset. *catalog.Loader implements it.
type StationSource interface {
	LoadURL(ctx context.Context, src catalog.Source) (*catalog.Result, error)
}

type catalogService struct {
	source StationSource
	src    catalog.Source
	holder *spatial.Holder
	logger *slog.Logger

	// reloadMu serialises rebuilds; readers never take it.
	reloadMu sync.Mutex
}

// NewCatalogService creates the station catalog service
func NewCatalogService(source StationSource, holder *spatial.Holder, cfg *config.Config, logger *slog.Logger) usecase.CatalogUsecase {
	if logger == nil {
		logger = slog.Default()
	}

	var src catalog.Source
	if cfg != nil && cfg.Catalog != nil {
		src = catalog.Source{
			BucketURL:      cfg.Catalog.BucketURL,
			Object:         cfg.Catalog.Object,
			MetadataObject: cfg.Catalog.MetadataObject,
		}
	}

	return &catalogService{
		source: source,
		src:    src,
		holder: holder,
		logger: logger,
	}
}

// Reload reads the station file and publishes a new snapshot. On failure the
// previous snapshot stays in place.
func (s *catalogService) Reload(ctx context.Context) (*usecase.CatalogInfo, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.src.BucketURL == "" || s.src.Object == "" {
		return nil, errors.New("catalog bucket url and object must be configured")
	}

	started := time.Now()
	result, err := s.source.LoadURL(ctx, s.src)
	if err != nil {
		return nil, err
	}

	index := spatial.Build(result.Stations)
	snapshot := s.holder.Publish(index, s.src.String(), len(result.Skipped))

	s.log(ctx).Info("Station catalog published",
		slog.Uint64("version", snapshot.Version),
		slog.Int("stations", index.Size()),
		slog.Int("skipped", snapshot.Skipped),
		slog.Int("tree_depth", index.Depth()),
		slog.String("checksum", result.Checksum),
		slog.Duration("elapsed", time.Since(started)),
	)

	return snapshotInfo(snapshot), nil
}

func (s *catalogService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, s.logger)
}

// Info describes the current snapshot
func (s *catalogService) Info(ctx context.Context) (*usecase.CatalogInfo, error) {
	snapshot, ok := s.holder.Current()
	if !ok {
		return nil, domainerrors.NewEmptyCatalogError("station catalog is not loaded")
	}

	return snapshotInfo(snapshot), nil
}

// Nearby lists stations around a point, closest first
func (s *catalogService) Nearby(ctx context.Context, query *usecase.NearbyQuery) ([]usecase.NearbyStation, error) {
	snapshot, ok := s.holder.Current()
	if !ok || snapshot.Index.Size() == 0 {
		return nil, domainerrors.NewEmptyCatalogError("station catalog is not loaded")
	}

	point := orb.Point{query.Longitude, query.Latitude}
	index := snapshot.Index

	var stations []entity.Station
	if query.RadiusKm <= 0 {
		idx, found := index.Nearest(point)
		if found {
			stations = append(stations, index.Station(idx))
		}
	} else {
		for _, id := range index.RadiusQuery(point, query.RadiusKm*1000) {
			station, _ := index.Lookup(id)
			stations = append(stations, station)
		}
	}

	nearby := make([]usecase.NearbyStation, len(stations))
	for i, st := range stations {
		nearby[i] = usecase.NearbyStation{
			StationID:   st.ID,
			Name:        st.Name,
			Address:     st.Address,
			City:        st.City,
			State:       st.State,
			Latitude:    st.Lat,
			Longitude:   st.Lon,
			RetailPrice: st.RetailPrice,
			DistanceKm:  geo.DistanceHaversine(point, st.Point()) / 1000,
		}
	}
	slices.SortStableFunc(nearby, func(a, b usecase.NearbyStation) int {
		return cmp.Or(cmp.Compare(a.DistanceKm, b.DistanceKm), cmp.Compare(a.StationID, b.StationID))
	})

	limit := query.Limit
	if limit <= 0 {
		limit = defaultNearbyLimit
	}
	if len(nearby) > limit {
		nearby = nearby[:limit]
	}

	return nearby, nil
}

func snapshotInfo(snapshot *spatial.Snapshot) *usecase.CatalogInfo {
	return &usecase.CatalogInfo{
		Version:   snapshot.Version,
		LoadedAt:  snapshot.LoadedAt,
		Source:    snapshot.Source,
		Stations:  snapshot.Index.Size(),
		Skipped:   snapshot.Skipped,
		TreeDepth: snapshot.Index.Depth(),
	}
}
