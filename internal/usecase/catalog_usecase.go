package usecase

import (
	"context"
	"time"
)

// CatalogInfo describes the station snapshot currently served.
type CatalogInfo struct {
	Version   uint64    `json:"version"`
	LoadedAt  time.Time `json:"loaded_at"`
	Source    string    `json:"source"`
	Stations  int       `json:"stations"`
	Skipped   int       `json:"skipped"`
	TreeDepth int       `json:"tree_depth"`
}

// NearbyQuery asks for stations around a point.
type NearbyQuery struct {
	Latitude  float64 `query:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `query:"lon" validate:"gte=-180,lte=180"`
	RadiusKm  float64 `query:"radius_km" validate:"gte=0,lte=500"`
	Limit     int     `query:"limit" validate:"gte=0,lte=500"`
}

// NearbyStation is a station with its distance from the query point.
type NearbyStation struct {
	StationID   string  `json:"station_id"`
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	RetailPrice float64 `json:"retail_price"`
	DistanceKm  float64 `json:"distance_km"`
}

// CatalogUsecase defines the station catalog management use cases
type CatalogUsecase interface {
	// Reload reads the configured station file, builds a new index and swaps it in.
	// In-flight plans keep the snapshot they started with.
	Reload(ctx context.Context) (*CatalogInfo, error)

	// Info describes the current snapshot
	Info(ctx context.Context) (*CatalogInfo, error)

	// Nearby lists stations within the radius ordered by distance. A zero radius
	// returns the single nearest station.
	Nearby(ctx context.Context, query *NearbyQuery) ([]NearbyStation, error)
}
