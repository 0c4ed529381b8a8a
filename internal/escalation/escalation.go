// Package escalation persists high severity classifications as cases for
// doctor review.
package escalation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/classifier"
	"github.com/JaimeStill/triage/pkg/formatting"
	"github.com/JaimeStill/triage/pkg/storage"
)

// ErrWriteFailed reports that a qualifying case could not be stored.
var ErrWriteFailed = errors.New("escalation write failed")

// Request is a classified submission and the patient who sent it.
type Request struct {
	PatientID    string
	PatientEmail string
	Prompt       *string
	Image        *string
	Result       classifier.Result
}

// System decides whether a classification becomes a case.
type System interface {
	// MaybeEscalate stores a case when req.Result is High severity and
	// returns (nil, nil) otherwise. Every call with a High result inserts a
	// new case.
	MaybeEscalate(ctx context.Context, req Request) (*cases.Case, error)
}

type writer struct {
	store  cases.System
	images storage.System
	logger *slog.Logger
}

// New creates an escalation writer. images may be nil, in which case case
// images are kept only in the case row.
func New(store cases.System, images storage.System, logger *slog.Logger) System {
	return &writer{
		store:  store,
		images: images,
		logger: logger.With("system", "escalation"),
	}
}

func (w *writer) MaybeEscalate(ctx context.Context, req Request) (*cases.Case, error) {
	if !req.Result.Escalates() {
		return nil, nil
	}

	c, err := w.store.Insert(ctx, cases.CreateCommand{
		PatientID:    req.PatientID,
		PatientEmail: req.PatientEmail,
		Prompt:       req.Prompt,
		Image:        req.Image,
		AIResponse:   classifier.Narrative(req.Result),
		Severity:     *req.Result.Severity,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	w.logger.Info("case escalated", "id", c.ID, "patient_id", c.PatientID)
	w.archiveImage(ctx, c)

	return c, nil
}

func (w *writer) archiveImage(ctx context.Context, c *cases.Case) {
	if w.images == nil || c.Image == nil {
		return
	}

	img, err := formatting.DecodeDataURI(*c.Image)
	if err != nil {
		w.logger.Warn("case image not archived", "id", c.ID, "error", err)
		return
	}

	key := cases.ImageKey(c.ID, img.Extension())
	if err := w.images.Upload(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
		w.logger.Warn("case image not archived", "id", c.ID, "key", key, "error", err)
		return
	}

	w.logger.Info("case image archived", "id", c.ID, "key", key, "size", formatting.FormatBytes(int64(len(img.Data)), 1))
}
