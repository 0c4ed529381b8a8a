// Package review is the doctor's queue of unresolved high severity cases.
package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/storage"
)

// System lists pending cases and records doctor responses.
type System interface {
	Handler() *Handler

	// ListPending returns unresolved high severity cases, newest first.
	ListPending(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[cases.Case], error)

	// Find returns any case, pending or resolved.
	Find(ctx context.Context, id uuid.UUID) (*cases.Case, error)

	// Respond records text as doctorID's response. Blank text is rejected
	// before the store is touched.
	Respond(ctx context.Context, id uuid.UUID, doctorID, text string) (*cases.Case, error)

	// Image opens the image submitted with a case.
	Image(ctx context.Context, id uuid.UUID) (*storage.Object, error)
}
