package chat

import (
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderPatient Sender = "patient"
	SenderAI      Sender = "ai"
)

// Greeting opens every session.
const Greeting = "Hello! I'm your AI medical assistant. How can I help you today?"

// Message is one transcript entry. Image is the data URI sent with a patient
// message, if any.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Image     *string   `json:"image,omitempty"`
}
