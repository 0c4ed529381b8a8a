// Package chat runs patient chat sessions: submissions are classified, the
// result is shown in the transcript, and high severity results are escalated.
package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

// System manages in-memory chat sessions. Every operation is scoped to the
// patient who opened the session; other actors get ErrNotFound. Sessions
// idle past the configured TTL are dropped, and a patient at the session cap
// loses their least recently active one on Open.
type System interface {
	Handler() *Handler

	// Start schedules the idle session sweeper on lc.
	Start(lc *lifecycle.Coordinator) error

	Open(ctx context.Context, patient identity.Actor) (*Snapshot, error)
	List(ctx context.Context, patient identity.Actor) ([]Snapshot, error)
	Get(ctx context.Context, patient identity.Actor, id uuid.UUID) (*Snapshot, error)
	Close(ctx context.Context, patient identity.Actor, id uuid.UUID) error

	// Attach stages a one-shot image for the next Send.
	Attach(ctx context.Context, patient identity.Actor, id uuid.UUID, image string) (*Snapshot, error)
	Detach(ctx context.Context, patient identity.Actor, id uuid.UUID) (*Snapshot, error)

	// Send appends the patient's message, classifies it, and appends the
	// result or the fallback message. image overrides any staged attachment.
	// Only one Send per session may be in flight.
	Send(ctx context.Context, patient identity.Actor, id uuid.UUID, text string, image *string) (*Snapshot, error)
}
