package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"fuelstop/internal/delivery/api/response"
	domainerrors "fuelstop/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMiddleware_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails any
	}{
		{
			name:        "validation error keeps details",
			err:         domainerrors.ErrValidationFailed.WithDetails("mpg must be a finite non-negative number"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_FAILED",
			wantDetails: "mpg must be a finite non-negative number",
		},
		{
			name:        "wrapped infeasible route",
			err:         errors.Wrap(domainerrors.NewInfeasibleRouteError(0, 321868.8, 160934.4), "plan"),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "INFEASIBLE_ROUTE",
			wantDetails: "no feasible fuel plan: gap from 0.0 mi to 200.0 mi exceeds tank range of 100.0 mi",
		},
		{
			name:       "provider error hides body",
			err:        domainerrors.NewRouteProviderError("openrouteservice", http.StatusInternalServerError, "stack trace", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   "ROUTE_PROVIDER_ERROR",
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusNotFound, "Not Found"),
			wantStatus: http.StatusNotFound,
			wantCode:   "HTTP_ERROR",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	m := NewErrorMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := echo.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			m.HandleHTTPError(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantDetails, body.Error.Details)
			assert.NotEmpty(t, body.Meta.RequestID)
		})
	}
}
