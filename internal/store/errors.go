package store

import (
	"errors"
	"net/http"
	"reflect"

	"storefront/internal/apperror"
	"storefront/internal/client"

	"github.com/go-playground/validator/v10"
)

// failure classifies a transport error. The backend's message wins over the
// fallback when present.
func failure(op string, err error, fallback string) *apperror.Error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	msg := client.ErrorMessage(err)
	if msg == "" {
		msg = fallback
	}
	status := client.StatusCode(err)

	kind := apperror.KindNetworkFailed
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		kind = apperror.KindValidationFailed
	case http.StatusUnauthorized:
		kind = apperror.KindAuthRequired
	case http.StatusConflict:
		kind = apperror.KindConflict
	}

	return &apperror.Error{Kind: kind, Op: op, Message: msg, Status: status, Err: err}
}

// invalid wraps a validation failure detected before any network call.
func invalid(op string, err error, fallback string) *apperror.Error {
	msg := fallback
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msg = fieldMessage(verrs[0])
	}
	return &apperror.Error{Kind: apperror.KindValidationFailed, Op: op, Message: msg, Err: err}
}

func authRequired(op string) *apperror.Error {
	return &apperror.Error{Kind: apperror.KindAuthRequired, Op: op, Message: "Authentication required"}
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		if e.Kind() == reflect.Slice {
			return e.Field() + " must not be empty"
		}
		return e.Field() + " must be at least " + e.Param() + " characters"
	case "gte":
		return e.Field() + " must be at least " + e.Param()
	default:
		return e.Field() + " is invalid"
	}
}
