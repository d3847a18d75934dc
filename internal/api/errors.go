package api

import (
	"encoding/json"
	"net/http"

	"github.com/goliatone/go-errors"
)

// categoryStatus maps error categories to HTTP status codes for errors
// that carry no explicit code.
var categoryStatus = map[errors.Category]int{
	errors.CategoryValidation: http.StatusBadRequest,
	errors.CategoryBadInput:   http.StatusBadRequest,
	errors.CategoryAuth:       http.StatusUnauthorized,
	errors.CategoryAuthz:      http.StatusForbidden,
	errors.CategoryNotFound:   http.StatusNotFound,
	errors.CategoryConflict:   http.StatusConflict,
	errors.CategoryRateLimit:  http.StatusTooManyRequests,
	errors.CategoryExternal:   http.StatusServiceUnavailable,
}

// toError converts any error into the response error type.
func toError(err error) *errors.Error {
	return errors.MapToError(err, nil)
}

// statusFor picks the HTTP status for e.
func statusFor(e *errors.Error) int {
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	if status, ok := categoryStatus[e.Category]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondWithError sends a structured error response.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	e := toError(err)
	status := statusFor(e)

	args := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"category", e.Category.String(),
		"textCode", e.TextCode,
		"error", e.Message,
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("HTTP error response", args...)
	} else {
		h.logger.Debug("HTTP error response", args...)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(e.ToErrorResponse(false, nil)); err != nil {
		h.logger.Error("encode error response failed", "error", err)
	}
}
