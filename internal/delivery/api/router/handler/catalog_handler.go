package handler

import (
	"net/http"

	"fuelstop/internal/delivery/api/response"
	"fuelstop/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// CatalogHandler exposes the station catalog
type CatalogHandler struct {
	catalogUC usecase.CatalogUsecase
}

// CatalogHandlerParams holds dependencies for CatalogHandler, injected by Fx.
type CatalogHandlerParams struct {
	fx.In

	CatalogUC usecase.CatalogUsecase
}

// NewCatalogHandler creates a new CatalogHandler instance
func NewCatalogHandler(params CatalogHandlerParams) *CatalogHandler {
	return &CatalogHandler{
		catalogUC: params.CatalogUC,
	}
}

// GetInfo describes the catalog snapshot in use
func (h *CatalogHandler) GetInfo(c echo.Context) error {
	info, err := h.catalogUC.Info(c.Request().Context())
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, info)
}

// Reload rebuilds the catalog from its configured source
func (h *CatalogHandler) Reload(c echo.Context) error {
	info, err := h.catalogUC.Reload(c.Request().Context())
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, info)
}

// GetNearbyStations lists stations around a point
func (h *CatalogHandler) GetNearbyStations(c echo.Context) error {
	var query usecase.NearbyQuery
	if err := c.Bind(&query); err != nil {
		return response.BindingError(c, "INVALID_REQUEST", "Invalid query parameters")
	}

	if err := c.Validate(&query); err != nil {
		return validationError(c, err)
	}

	stations, err := h.catalogUC.Nearby(c.Request().Context(), &query)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, stations)
}
