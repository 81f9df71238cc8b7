package handler

import (
	"net/http"

	domainerrors "fuelstop/internal/domain/errors"
	"fuelstop/internal/domain/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const geoJSONContentType = "application/geo+json"

// MapHandler serves rendered trip maps
type MapHandler struct {
	renderer service.MapRenderer
}

// MapHandlerParams holds dependencies for MapHandler, injected by Fx.
type MapHandlerParams struct {
	fx.In

	Renderer service.MapRenderer `optional:"true"`
}

// NewMapHandler creates a new MapHandler instance
func NewMapHandler(params MapHandlerParams) *MapHandler {
	return &MapHandler{
		renderer: params.Renderer,
	}
}

// GetMap returns the GeoJSON document behind a plan's map_url
func (h *MapHandler) GetMap(c echo.Context) error {
	if h.renderer == nil {
		return domainerrors.ErrNotFound.WithDetails("map rendering is disabled")
	}

	data, err := h.renderer.Fetch(c.Request().Context(), c.Param("key"))
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, geoJSONContentType, data)
}
