package cases

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/pkg/pagination"
)

// System is the case record store.
type System interface {
	// Insert stores a new high severity case.
	Insert(ctx context.Context, cmd CreateCommand) (*Case, error)

	// Select returns one page of cases matching filter, newest first.
	Select(
		ctx context.Context,
		filter Filter,
		page pagination.PageRequest,
	) (*pagination.PageResult[Case], error)

	Find(ctx context.Context, id uuid.UUID) (*Case, error)

	// Respond sets the doctor response and doctor id of an unresolved case.
	// It returns ErrAlreadyResolved if a response was already recorded.
	Respond(ctx context.Context, id uuid.UUID, cmd RespondCommand) (*Case, error)
}
