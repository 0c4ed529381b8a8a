// Package history shows patients the doctor-verified responses to their own
// escalated cases.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/pagination"
)

var ErrInvalidID = errors.New("invalid case id")

// MapHTTPStatus maps history errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, identity.ErrUnauthenticated):
		return http.StatusUnauthorized
	default:
		return cases.MapHTTPStatus(err)
	}
}

// System is read-only access to one patient's resolved cases.
type System interface {
	Handler() *Handler

	// ListResolved returns patientID's answered high severity cases, newest
	// first. An empty patientID is ErrUnauthenticated.
	ListResolved(ctx context.Context, patientID string, page pagination.PageRequest) (*pagination.PageResult[cases.Case], error)

	// Find returns a case only if patientID owns it and it is resolved.
	Find(ctx context.Context, patientID string, id uuid.UUID) (*cases.Case, error)
}

type history struct {
	store      cases.System
	logger     *slog.Logger
	pagination pagination.Config
}

func New(store cases.System, logger *slog.Logger, pagination pagination.Config) System {
	return &history{
		store:      store,
		logger:     logger.With("system", "history"),
		pagination: pagination,
	}
}

func (h *history) Handler() *Handler {
	return NewHandler(h, h.logger, h.pagination)
}

func (h *history) ListResolved(ctx context.Context, patientID string, page pagination.PageRequest) (*pagination.PageResult[cases.Case], error) {
	if patientID == "" {
		return nil, identity.ErrUnauthenticated
	}

	result, err := h.store.Select(ctx, cases.ResolvedFor(patientID), page)
	if err != nil {
		return nil, queryFailed(err)
	}

	cases.SortNewestFirst(result.Data)
	return result, nil
}

func (h *history) Find(ctx context.Context, patientID string, id uuid.UUID) (*cases.Case, error) {
	if patientID == "" {
		return nil, identity.ErrUnauthenticated
	}

	c, err := h.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return nil, err
		}
		return nil, queryFailed(err)
	}

	if !cases.ResolvedFor(patientID).Match(*c) {
		return nil, cases.ErrNotFound
	}
	return c, nil
}

func queryFailed(err error) error {
	if errors.Is(err, cases.ErrQueryFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", cases.ErrQueryFailed, err)
}
