package handler

import (
	"net/http"

	"fuelstop/internal/delivery/api/response"
	"fuelstop/internal/delivery/api/validator"
	"fuelstop/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// TripHandler serves route plan requests
type TripHandler struct {
	tripUC usecase.TripUsecase
}

// TripHandlerParams holds dependencies for TripHandler, injected by Fx.
type TripHandlerParams struct {
	fx.In

	TripUC usecase.TripUsecase
}

// NewTripHandler creates a new TripHandler instance
func NewTripHandler(params TripHandlerParams) *TripHandler {
	return &TripHandler{
		tripUC: params.TripUC,
	}
}

// ComputeRoutePlan plans the fuel stops between two locations
func (h *TripHandler) ComputeRoutePlan(c echo.Context) error {
	var req usecase.TripRequest
	if err := c.Bind(&req); err != nil {
		return response.BindingError(c, "INVALID_REQUEST", "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return validationError(c, err)
	}

	result, err := h.tripUC.ComputeRoutePlan(c.Request().Context(), &req)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, result)
}

func validationError(c echo.Context, err error) error {
	fields, ok := validator.FieldErrors(err)
	if !ok {
		return err
	}

	details := make([]string, len(fields))
	for i, f := range fields {
		details[i] = f.String()
	}

	return response.BadRequestWithDetails(c, "VALIDATION_FAILED", "request validation failed", details)
}
