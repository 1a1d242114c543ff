package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the JSON error body the HTTP surface returns.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// HTTPStatus maps an error category to a response status.
func HTTPStatus(err error) int {
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeAlreadyExists, ErrorTypeConflictPendingDelete:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeShutdown, ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeAdapterRejected, ErrorTypeAdapterFailed, ErrorTypeConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error response with the mapped status.
func WriteError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := ErrorResponse{Error: err.Error(), Code: "INTERNAL_ERROR"}
	var ue *UnifiedError
	if errors.As(err, &ue) {
		body.Error = ue.Message
		body.Code = ue.Code
		body.Details = ue.Details
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Recoverer is chi-style middleware that converts a handler panic into a
// logged 500 instead of tearing down the connection.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in http handler",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
					)
					WriteError(w, Internal("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
