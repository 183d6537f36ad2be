package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/domain"

	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

// ErrMalformedBody reports a request body that is not the expected JSON.
var ErrMalformedBody = errors.New("malformed request body")

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return domain.Validate(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return ValidateRequest(v)
}

// RespondWithDecodeError answers a DecodeAndValidate failure with a 400.
func RespondWithDecodeError(w http.ResponseWriter, err error) {
	if errs := FormatValidationErrors(err); len(errs) > 0 {
		RespondWithValidationErrors(w, errs)
		return
	}
	RespondWithError(w, http.StatusBadRequest, "Invalid request body")
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var errs []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Field:   e.Field(),
				Message: getErrorMessage(e),
			})
		}
	}

	return errs
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	default:
		return "Invalid value"
	}
}
