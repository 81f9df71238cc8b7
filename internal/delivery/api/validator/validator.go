// Package validator adapts go-playground/validator to echo.
package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError describes one rejected field using its JSON name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// String renders the failure as "field: rule=param".
func (f FieldError) String() string {
	if f.Param == "" {
		return f.Field + ": " + f.Rule
	}

	return fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param)
}

// RequestValidator implements echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// New creates a validator that reports fields by their json, query or param tag.
func New() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)

	return &RequestValidator{validate: v}
}

// Validate checks the struct tags of i.
func (v *RequestValidator) Validate(i any) error {
	return errors.WithStack(v.validate.Struct(i))
}

// FieldErrors flattens a validation failure. ok is false when err did not come
// from the validator.
func FieldErrors(err error) (fields []FieldError, ok bool) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil, false
	}

	fields = make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field: namespace(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}

	return fields, true
}

// namespace drops the top-level struct name, "TripRequest.config.mpg" -> "config.mpg".
func namespace(ns string) string {
	if _, rest, found := strings.Cut(ns, "."); found {
		return rest
	}

	return ns
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "query", "param"} {
		name, _, _ := strings.Cut(field.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}

	return field.Name
}
