package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message   string                 `json:"message"`
	Code      string                 `json:"code"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// RespondWithError sends a structured error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithErrorDetails(w, statusCode, message, nil)
}

func respondWithErrorDetails(w http.ResponseWriter, statusCode int, message string, details map[string]interface{}) {
	RespondWithJSON(w, statusCode, ErrorResponse{
		Message:   message,
		Code:      errorCode(statusCode),
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// errorCode turns the status text into an UPPER_SNAKE code.
func errorCode(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(text, "-", "_"), " ", "_"))
}

// RespondWithValidationErrors sends a 400 whose message names the first
// offending field.
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	message := "Validation failed"
	if len(errors) > 0 {
		message = errors[0].Field + ": " + errors[0].Message
	}
	respondWithErrorDetails(w, http.StatusBadRequest, message, map[string]interface{}{
		"validation_errors": errors,
	})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// RespondWithMessage sends {"message": message}.
func RespondWithMessage(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, map[string]string{"message": message})
}
