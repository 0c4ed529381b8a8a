package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/formatting"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/storage"
)

type queue struct {
	store      cases.System
	images     storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the review queue. images may be nil.
func New(
	store cases.System,
	images storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &queue{
		store:      store,
		images:     images,
		logger:     logger.With("system", "review"),
		pagination: pagination,
	}
}

func (q *queue) Handler() *Handler {
	return NewHandler(q, q.logger, q.pagination)
}

func (q *queue) ListPending(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[cases.Case], error) {
	result, err := q.store.Select(ctx, cases.Pending(), page)
	if err != nil {
		return nil, queryFailed(err)
	}

	cases.SortNewestFirst(result.Data)
	return result, nil
}

func (q *queue) Find(ctx context.Context, id uuid.UUID) (*cases.Case, error) {
	c, err := q.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			return nil, err
		}
		return nil, queryFailed(err)
	}
	return c, nil
}

func (q *queue) Respond(ctx context.Context, id uuid.UUID, doctorID, text string) (*cases.Case, error) {
	if doctorID == "" {
		return nil, identity.ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	c, err := q.store.Respond(ctx, id, cases.RespondCommand{
		DoctorResponse: text,
		DoctorID:       doctorID,
	})
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) || errors.Is(err, cases.ErrAlreadyResolved) {
			return nil, err
		}
		q.logger.Error("respond failed", "id", id, "doctor_id", doctorID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return c, nil
}

func (q *queue) Image(ctx context.Context, id uuid.UUID) (*storage.Object, error) {
	c, err := q.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Image == nil || *c.Image == "" {
		return nil, ErrNoImage
	}

	img, err := formatting.DecodeDataURI(*c.Image)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoImage, err)
	}

	if q.images != nil {
		obj, err := q.images.Download(ctx, cases.ImageKey(c.ID, img.Extension()))
		if err == nil {
			return obj, nil
		}
		q.logger.Warn("archived image unavailable, serving stored copy", "id", id, "error", err)
	}

	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(img.Data)),
		ContentType: img.ContentType,
		Size:        int64(len(img.Data)),
	}, nil
}

func queryFailed(err error) error {
	if errors.Is(err, cases.ErrQueryFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", cases.ErrQueryFailed, err)
}
