package cases

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("case not found")
	ErrAlreadyResolved = errors.New("case already has a doctor response")
	ErrInvalidSeverity = errors.New("only high severity cases are stored")
	ErrQueryFailed     = errors.New("case query failed")
)

// MapHTTPStatus maps case errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidSeverity):
		return http.StatusBadRequest
	case errors.Is(err, ErrQueryFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
