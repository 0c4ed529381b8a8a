package review

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/identity"
)

var (
	ErrEmptyResponse = errors.New("doctor response must not be empty")
	ErrWriteFailed   = errors.New("doctor response could not be saved")
	ErrNoImage       = errors.New("case has no image")
	ErrInvalidID     = errors.New("invalid case id")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrBodyTooLarge  = errors.New("request body too large")
)

// MapHTTPStatus maps review errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrEmptyResponse),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoImage):
		return http.StatusNotFound
	case errors.Is(err, ErrWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return cases.MapHTTPStatus(err)
	}
}
