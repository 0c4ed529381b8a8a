// Package cases stores escalated triage cases and the doctor responses
// recorded against them.
package cases

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Severity is the classifier's severity label. Labels other than the known
// constants are carried verbatim.
type Severity string

const (
	SeverityHigh   Severity = "High"
	SeverityMedium Severity = "Medium"
	SeverityLow    Severity = "Low"
)

// Escalates reports whether a case with this severity enters the review queue.
func (s Severity) Escalates() bool {
	return s == SeverityHigh
}

// Case is a persisted escalation. DoctorResponse and DoctorID are nil until
// a doctor responds, then both are set together exactly once.
type Case struct {
	ID             uuid.UUID `json:"id"`
	PatientID      string    `json:"patient_id"`
	PatientEmail   string    `json:"patient_email"`
	Prompt         *string   `json:"prompt"`
	Image          *string   `json:"image"`
	AIResponse     string    `json:"ai_response"`
	Severity       Severity  `json:"severity"`
	DoctorResponse *string   `json:"doctor_response"`
	DoctorID       *string   `json:"doctor_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resolved reports whether a doctor has responded.
func (c Case) Resolved() bool {
	return c.DoctorResponse != nil
}

// CreateCommand carries the fields of a new case. The store assigns the id
// and creation time.
type CreateCommand struct {
	PatientID    string
	PatientEmail string
	Prompt       *string
	Image        *string
	AIResponse   string
	Severity     Severity
}

// RespondCommand records a doctor's response.
type RespondCommand struct {
	DoctorResponse string
	DoctorID       string
}

// SortNewestFirst orders cs by descending CreatedAt, keeping the relative
// order of equal timestamps.
func SortNewestFirst(cs []Case) {
	slices.SortStableFunc(cs, func(a, b Case) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

// ImageKey is the blob key under which a case's image is archived.
func ImageKey(id uuid.UUID, ext string) string {
	return "cases/" + id.String() + "/image." + ext
}
