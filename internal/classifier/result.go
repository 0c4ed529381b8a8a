// Package classifier calls the remote severity classification service and
// renders its results for patients.
package classifier

import (
	"strconv"
	"strings"

	"github.com/JaimeStill/triage/internal/cases"
)

// FallbackMessage is shown to the patient in place of a result when the
// classification service cannot be reached.
const FallbackMessage = "Sorry, I couldn't reach the diagnosis service just now. Please try sending your message again."

// Submission is one patient message sent for classification. Image is a
// base64 data URI.
type Submission struct {
	Text  string
	Image *string
}

// Empty reports whether the submission has neither text nor an image.
func (s Submission) Empty() bool {
	return strings.TrimSpace(s.Text) == "" && (s.Image == nil || *s.Image == "")
}

// Result is the service response. Every field may be absent.
type Result struct {
	Disease    *string         `json:"disease"`
	Confidence *float64        `json:"confidence"`
	Severity   *cases.Severity `json:"severity"`
	Info       *string         `json:"info"`
}

// Escalates reports whether the result warrants doctor review.
func (r Result) Escalates() bool {
	return r.Severity != nil && r.Severity.Escalates()
}

// Narrative renders the fields present in r as the message shown to the
// patient. Absent fields are left out.
func Narrative(r Result) string {
	var b strings.Builder

	if r.Disease != nil && *r.Disease != "" {
		b.WriteString("🩺 Disease: " + *r.Disease + "\n")
	}
	if r.Confidence != nil {
		b.WriteString("🎯 Confidence: " + strconv.FormatFloat(*r.Confidence, 'f', -1, 64) + "%\n")
	}
	if r.Severity != nil && *r.Severity != "" {
		b.WriteString("⚕️ Severity: " + string(*r.Severity) + "\n\n")
	}
	if r.Info != nil && *r.Info != "" {
		b.WriteString("💊 Remedies & Info:\n" + *r.Info)
	}

	return strings.TrimSpace(b.String())
}
