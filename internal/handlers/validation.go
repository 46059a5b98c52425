package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationErrorResponse represents a validation error with field-level details
type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// validate reports fields by their JSON names so messages match the payload
// the dashboard sent
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// layoutNames describes the datetime layouts used by entity payloads
var layoutNames = map[string]string{
	"2006-01-02":                "a date in YYYY-MM-DD format",
	"15:04":                     "a time in HH:MM format",
	"2006-01-02T15:04:05Z07:00": "an RFC 3339 timestamp",
}

// ValidateRequest validates a request or entity payload. Only the first
// failing field is reported.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		first := ValidationErrorResponse{
			Field:   fieldPath(ve[0]),
			Message: formatValidationError(ve[0]),
		}
		return fmt.Errorf("validation failed: %s: %s", first.Field, first.Message)
	}
	return fmt.Errorf("validation failed: %w", err)
}

// fieldPath drops the struct name from the namespace, so a bad image in a
// social post reads "image_urls[1]" rather than "SocialPost.image_urls[1]"
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func isCollection(k reflect.Kind) bool {
	return k == reflect.Slice || k == reflect.Array || k == reflect.Map
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid record id (UUID)"
	case "url":
		return "must be an absolute URL"
	case "datetime":
		if name, ok := layoutNames[fe.Param()]; ok {
			return "must be " + name
		}
		return fmt.Sprintf("must match the layout %s", fe.Param())
	case "max":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must have at most %s entries", fe.Param())
		}
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "min":
		if isCollection(fe.Kind()) {
			return fmt.Sprintf("must have at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
