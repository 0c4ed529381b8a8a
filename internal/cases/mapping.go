package cases

import (
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "cases", "c").
	Project("id", "ID").
	Project("patient_id", "PatientID").
	Project("patient_email", "PatientEmail").
	Project("prompt", "Prompt").
	Project("image", "Image").
	Project("ai_response", "AIResponse").
	Project("severity", "Severity").
	Project("doctor_response", "DoctorResponse").
	Project("doctor_id", "DoctorID").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var errMap = repository.Errors{
	NotFound: ErrNotFound,
	Invalid:  ErrInvalidSeverity,
}

// Filter narrows a case query. Nil fields are ignored; Resolved selects on
// whether a doctor response exists.
type Filter struct {
	PatientID *string
	Severity  *Severity
	Resolved  *bool
}

// Apply adds the filter's conditions to b.
func (f Filter) Apply(b *query.Builder) *query.Builder {
	if f.PatientID != nil {
		b.WhereEquals("PatientID", *f.PatientID)
	}

	if f.Severity != nil {
		b.WhereEquals("Severity", string(*f.Severity))
	}

	if f.Resolved != nil {
		if *f.Resolved {
			b.WhereNotNull("DoctorResponse")
		} else {
			b.WhereNull("DoctorResponse")
		}
	}

	return b
}

// Pending selects high severity cases without a doctor response.
func Pending() Filter {
	high := SeverityHigh
	resolved := false
	return Filter{Severity: &high, Resolved: &resolved}
}

// ResolvedFor selects high severity cases of patientID that have a response.
func ResolvedFor(patientID string) Filter {
	high := SeverityHigh
	resolved := true
	return Filter{PatientID: &patientID, Severity: &high, Resolved: &resolved}
}

// Match reports whether c satisfies the filter.
func (f Filter) Match(c Case) bool {
	if f.PatientID != nil && c.PatientID != *f.PatientID {
		return false
	}
	if f.Severity != nil && c.Severity != *f.Severity {
		return false
	}
	if f.Resolved != nil && c.Resolved() != *f.Resolved {
		return false
	}
	return true
}

func scanCase(s repository.Scanner) (Case, error) {
	var c Case
	err := s.Scan(
		&c.ID,
		&c.PatientID,
		&c.PatientEmail,
		&c.Prompt,
		&c.Image,
		&c.AIResponse,
		&c.Severity,
		&c.DoctorResponse,
		&c.DoctorID,
		&c.CreatedAt,
	)
	return c, err
}
