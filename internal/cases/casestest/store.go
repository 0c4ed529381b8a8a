// Package casestest provides an in-memory cases.System for tests of the
// components layered on the case store.
package casestest

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// Store keeps cases in memory with the same filtering, ordering and
// conditional-respond rules as the Postgres store. Set the Err fields to make
// the matching operation fail.
type Store struct {
	InsertErr  error
	SelectErr  error
	FindErr    error
	RespondErr error

	// Now stamps CreatedAt on insert. Defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	cases    []cases.Case
	inserts  int
	selects  int
	responds int
}

var _ cases.System = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Seed adds c as-is, assigning an id when missing.
func (s *Store) Seed(c cases.Case) cases.Case {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.cases = append(s.cases, c)
	return c
}

// All returns a copy of every stored case in insertion order.
func (s *Store) All() []cases.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.cases)
}

// Calls reports how many times each operation has been invoked.
func (s *Store) Calls() (inserts, selects, responds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts, s.selects, s.responds
}

func (s *Store) Insert(_ context.Context, cmd cases.CreateCommand) (*cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	if !cmd.Severity.Escalates() {
		return nil, cases.ErrInvalidSeverity
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	c := cases.Case{
		ID:           uuid.New(),
		PatientID:    cmd.PatientID,
		PatientEmail: cmd.PatientEmail,
		Prompt:       cmd.Prompt,
		Image:        cmd.Image,
		AIResponse:   cmd.AIResponse,
		Severity:     cmd.Severity,
		CreatedAt:    now(),
	}
	s.cases = append(s.cases, c)
	return &c, nil
}

func (s *Store) Select(
	_ context.Context,
	filter cases.Filter,
	page pagination.PageRequest,
) (*pagination.PageResult[cases.Case], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selects++
	if s.SelectErr != nil {
		return nil, s.SelectErr
	}

	page.Normalize(pagination.Config{DefaultPageSize: 25, MaxPageSize: 100})

	var matched []cases.Case
	for _, c := range s.cases {
		if filter.Match(c) && matchSearch(c, page.Search) {
			matched = append(matched, c)
		}
	}
	cases.SortNewestFirst(matched)

	start := min((page.Page-1)*page.PageSize, len(matched))
	end := min(start+page.PageSize, len(matched))

	result := pagination.NewPageResult(slices.Clone(matched[start:end]), len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (s *Store) Find(_ context.Context, id uuid.UUID) (*cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FindErr != nil {
		return nil, s.FindErr
	}

	i := s.index(id)
	if i < 0 {
		return nil, cases.ErrNotFound
	}
	c := s.cases[i]
	return &c, nil
}

func (s *Store) Respond(_ context.Context, id uuid.UUID, cmd cases.RespondCommand) (*cases.Case, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responds++
	if s.RespondErr != nil {
		return nil, s.RespondErr
	}

	i := s.index(id)
	if i < 0 {
		return nil, cases.ErrNotFound
	}
	if s.cases[i].Resolved() {
		return nil, cases.ErrAlreadyResolved
	}

	response, doctor := cmd.DoctorResponse, cmd.DoctorID
	s.cases[i].DoctorResponse = &response
	s.cases[i].DoctorID = &doctor

	c := s.cases[i]
	return &c, nil
}

func (s *Store) index(id uuid.UUID) int {
	return slices.IndexFunc(s.cases, func(c cases.Case) bool { return c.ID == id })
}

func matchSearch(c cases.Case, search *string) bool {
	if search == nil || *search == "" {
		return true
	}
	term := strings.ToLower(*search)
	fields := []string{c.PatientEmail, c.AIResponse}
	if c.Prompt != nil {
		fields = append(fields, *c.Prompt)
	}
	return slices.ContainsFunc(fields, func(f string) bool {
		return strings.Contains(strings.ToLower(f), term)
	})
}
