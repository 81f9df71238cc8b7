package service

import (
	"context"

	"fuelstop/internal/domain/entity"
)

// RouteProvider defines the interface for fetching a driving route between two points
type RouteProvider interface {
	// Route returns the ordered polyline from origin to destination
	Route(ctx context.Context, origin, destination entity.RoutePoint) (*entity.RouteGeometry, error)
}
