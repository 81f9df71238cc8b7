package service

import (
	"context"

	"fuelstop/internal/domain/entity"
)

// TripMap is everything drawn on a rendered trip map.
type TripMap struct {
	Origin           string
	Destination      string
	OriginPoint      entity.RoutePoint
	DestinationPoint entity.RoutePoint
	Route            *entity.SimplifiedRoute
	Summary          entity.TripSummary
}

// MapRenderer defines the interface for publishing a trip map artifact
type MapRenderer interface {
	// Render stores the map and returns the URL it can be fetched from
	Render(ctx context.Context, trip *TripMap) (string, error)

	// Fetch returns a previously rendered map by its key
	Fetch(ctx context.Context, key string) ([]byte, error)
}
