package errors

import (
	"fmt"
	"net/http"

	"fuelstop/internal/errors"
)

const metersPerMile = 1609.344

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details == "" {
		return e.message
	}

	return e.message + ": " + e.details
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Is matches any BaseError carrying the same business code.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)
	if !ok {
		return false
	}

	return t.errorCode == e.errorCode
}

// Predefined error types
var (
	// ErrInvalidRoute is returned for degenerate or out-of-range route geometry.
	ErrInvalidRoute = NewBaseError(
		http.StatusBadRequest,
		"INVALID_ROUTE",
		"route geometry is invalid",
		"",
	)

	// ErrEmptyCatalog is returned when no usable station survived loading.
	ErrEmptyCatalog = NewBaseError(
		http.StatusServiceUnavailable,
		"EMPTY_CATALOG",
		"no usable fuel stations are loaded",
		"",
	)

	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"request validation failed",
		"",
	)

	ErrInvalidLocation = NewBaseError(
		http.StatusBadRequest,
		"INVALID_LOCATION",
		"location could not be resolved",
		"",
	)

	// General errors
	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"internal server error",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"resource not found",
		"",
	)
)

// NewInvalidRouteError reports malformed input geometry.
func NewInvalidRouteError(format string, args ...any) *BaseError {
	return ErrInvalidRoute.WithDetails(fmt.Sprintf(format, args...))
}

// NewEmptyCatalogError reports a catalog with no usable records.
func NewEmptyCatalogError(details string) *BaseError {
	return ErrEmptyCatalog.WithDetails(details)
}

// InfeasibleRouteError names the first stretch of road longer than the tank range.
type InfeasibleRouteError struct {
	GapStartMeters float64
	GapEndMeters   float64
	RangeMeters    float64
}

// NewInfeasibleRouteError creates an infeasibility error for the gap [start, end].
func NewInfeasibleRouteError(start, end, rangeMeters float64) *InfeasibleRouteError {
	return &InfeasibleRouteError{
		GapStartMeters: start,
		GapEndMeters:   end,
		RangeMeters:    rangeMeters,
	}
}

// Error implements the error interface
func (e *InfeasibleRouteError) Error() string {
	return fmt.Sprintf("no feasible fuel plan: gap from %.1f mi to %.1f mi exceeds tank range of %.1f mi",
		e.GapStartMeters/metersPerMile, e.GapEndMeters/metersPerMile, e.RangeMeters/metersPerMile)
}

// HTTPCode returns the HTTP status code
func (e *InfeasibleRouteError) HTTPCode() int {
	return http.StatusUnprocessableEntity
}

// ErrorCode returns the business error code
func (e *InfeasibleRouteError) ErrorCode() string {
	return "INFEASIBLE_ROUTE"
}

// Message returns the user-friendly error message
func (e *InfeasibleRouteError) Message() string {
	return "route cannot be completed within tank range"
}

// Details returns detailed error information
func (e *InfeasibleRouteError) Details() string {
	return e.Error()
}

// RouteProviderError wraps an upstream routing or geocoding failure.
type RouteProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	err        error
}

// NewRouteProviderError wraps err with the upstream status and body when known.
func NewRouteProviderError(provider string, statusCode int, body string, err error) *RouteProviderError {
	return &RouteProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Body:       body,
		err:        err,
	}
}

// Error implements the error interface
func (e *RouteProviderError) Error() string {
	msg := e.Provider + " request failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}

	return msg
}

// Unwrap exposes the underlying transport or decode error.
func (e *RouteProviderError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *RouteProviderError) HTTPCode() int {
	return http.StatusBadGateway
}

// ErrorCode returns the business error code
func (e *RouteProviderError) ErrorCode() string {
	return "ROUTE_PROVIDER_ERROR"
}

// Message returns the user-friendly error message
func (e *RouteProviderError) Message() string {
	return "route provider failed"
}

// Details returns detailed error information
func (e *RouteProviderError) Details() string {
	if e.Body != "" {
		return e.Body
	}

	return e.Error()
}
