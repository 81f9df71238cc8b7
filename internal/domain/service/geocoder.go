package service

import (
	"context"

	"fuelstop/internal/domain/entity"
)

// Geocoder defines the interface for resolving location descriptors
type Geocoder interface {
	// Resolve accepts either a "lat,lon" pair or a free text address
	Resolve(ctx context.Context, descriptor string) (entity.RoutePoint, error)
}
