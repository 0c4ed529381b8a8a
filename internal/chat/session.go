package chat

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/identity"
)

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID         uuid.UUID `json:"id"`
	State      State     `json:"state"`
	Attachment *string   `json:"attachment,omitempty"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"created_at"`
}

type session struct {
	id        uuid.UUID
	patient   identity.Actor
	createdAt time.Time

	mu         sync.Mutex
	state      State
	attachment *string
	messages   []Message
	lastActive time.Time
}

func newSession(patient identity.Actor, now time.Time) *session {
	return &session{
		id:         uuid.New(),
		patient:    patient,
		createdAt:  now,
		state:      StateIdle,
		lastActive: now,
		messages: []Message{{
			ID:        uuid.New(),
			Text:      Greeting,
			Sender:    SenderAI,
			Timestamp: now,
		}},
	}
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// expired reports whether the session has been inactive since before cutoff.
// A session awaiting classification never expires.
func (s *session) expired(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateAwaitingClassification && s.lastActive.Before(cutoff)
}

func (s *session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAwaitingClassification
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// transition must be called with mu held.
func (s *session) transition(next State) error {
	if !s.state.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	s.state = next
	return nil
}

// compose moves an idle or displayed session into Composing. Must be called
// with mu held.
func (s *session) compose() error {
	if s.state == StateComposing {
		return nil
	}
	return s.transition(StateComposing)
}

// append must be called with mu held.
func (s *session) append(sender Sender, text string, image *string, now time.Time) {
	s.messages = append(s.messages, Message{
		ID:        uuid.New(),
		Text:      text,
		Sender:    sender,
		Timestamp: now,
		Image:     image,
	})
}

// snapshot must be called with mu held.
func (s *session) snapshot() *Snapshot {
	return &Snapshot{
		ID:         s.id,
		State:      s.state,
		Attachment: s.attachment,
		Messages:   slices.Clone(s.messages),
		CreatedAt:  s.createdAt,
	}
}
