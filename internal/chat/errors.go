package chat

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/triage/internal/identity"
)

var (
	ErrNotFound          = errors.New("chat session not found")
	ErrBusy              = errors.New("a message is already awaiting classification")
	ErrEmptyMessage      = errors.New("message needs text or an image")
	ErrInvalidImage      = errors.New("image must be a base64 data uri")
	ErrImageTooLarge     = errors.New("image exceeds maximum size")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrInvalidBody       = errors.New("invalid request body")
	ErrSessionLimit      = errors.New("too many open chat sessions")
)

// MapHTTPStatus maps chat errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusy), errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrInvalidImage),
		errors.Is(err, ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrSessionLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
