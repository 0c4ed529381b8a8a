package cases

import "github.com/google/uuid"

// ViewKind tags which doctor screen a View describes.
type ViewKind string

const (
	ViewListing ViewKind = "listing"
	ViewViewing ViewKind = "viewing"
)

// View is the doctor's navigation state: the pending list, or one case.
// CaseID is set only for ViewViewing.
type View struct {
	Kind   ViewKind   `json:"kind"`
	CaseID *uuid.UUID `json:"case_id,omitempty"`
}

func Listing() View {
	return View{Kind: ViewListing}
}

func Viewing(id uuid.UUID) View {
	return View{Kind: ViewViewing, CaseID: &id}
}
