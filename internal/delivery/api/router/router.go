// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"fuelstop/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	TripHandler    *handler.TripHandler
	CatalogHandler *handler.CatalogHandler
	MapHandler     *handler.MapHandler
}

// router holds all the handlers that need to be registered.
type router struct {
	tripHandler    *handler.TripHandler
	catalogHandler *handler.CatalogHandler
	mapHandler     *handler.MapHandler
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		tripHandler:    params.TripHandler,
		catalogHandler: params.CatalogHandler,
		mapHandler:     params.MapHandler,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Rendered trip maps, referenced by map_url
	e.GET("/maps/:key", r.mapHandler.GetMap)

	apiV1 := e.Group("/api/v1")

	apiV1.POST("/route-plans", r.tripHandler.ComputeRoutePlan)

	catalogGroup := apiV1.Group("/catalog")
	{
		catalogGroup.GET("", r.catalogHandler.GetInfo)
		catalogGroup.POST("/reload", r.catalogHandler.Reload)
	}

	apiV1.GET("/stations/nearby", r.catalogHandler.GetNearbyStations)
}
