package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"fuelstop/config"
	deliverycontext "fuelstop/internal/delivery/context"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer

	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRequestIDMiddleware_Process(t *testing.T) {
	logger, buf := newBufferLogger()
	m := NewRequestIDMiddleware(logger)
	e := echo.New()

	tests := map[string]struct {
		header string
		check  func(t *testing.T, id string)
	}{
		"propagates client id": {
			header: "abc-123",
			check:  func(t *testing.T, id string) { assert.Equal(t, "abc-123", id) },
		},
		"generates id": {
			check: func(t *testing.T, id string) { assert.Len(t, id, 36) },
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(deliverycontext.HeaderXRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			buf.Reset()
			var ctxID string
			err := m.Process(func(c echo.Context) error {
				ctxID = deliverycontext.GetRequestID(c)
				deliverycontext.GetLoggerOrDefault(c.Request().Context(), nil).Info("handled")

				return nil
			})(c)

			assert.NoError(t, err)
			tt.check(t, ctxID)
			assert.Equal(t, ctxID, rec.Header().Get(deliverycontext.HeaderXRequestID))
			assert.Contains(t, buf.String(), "request_id="+ctxID)
		})
	}
}

func TestLoggerMiddleware_Handle(t *testing.T) {
	e := echo.New()
	failing := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	}
	ok := func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}

	tests := []struct {
		name    string
		debug   bool
		handler echo.HandlerFunc
		logged  bool
	}{
		{name: "success hidden outside debug", handler: ok},
		{name: "success logged in debug", debug: true, handler: ok, logged: true},
		{name: "server error always logged", handler: failing, logged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger()
			cfg := &config.Config{}
			cfg.Env.Debug = tt.debug
			m := NewLoggerMiddleware(logger, cfg)

			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil), rec)

			assert.NoError(t, m.Handle(tt.handler)(c))
			assert.Equal(t, tt.logged, bytes.Contains(buf.Bytes(), []byte("HTTP Request")))
		})
	}
}
