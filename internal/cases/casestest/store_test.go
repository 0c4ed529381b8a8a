package casestest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/cases/casestest"
	"github.com/JaimeStill/triage/pkg/pagination"
)

func TestRespondIsConditional(t *testing.T) {
	ctx := context.Background()
	store := casestest.New()

	c, err := store.Insert(ctx, cases.CreateCommand{PatientID: "p1", AIResponse: "x", Severity: cases.SeverityHigh})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	first, err := store.Respond(ctx, c.ID, cases.RespondCommand{DoctorResponse: "See a dermatologist.", DoctorID: "d1"})
	if err != nil {
		t.Fatalf("first Respond: %v", err)
	}
	if *first.DoctorResponse != "See a dermatologist." || *first.DoctorID != "d1" {
		t.Errorf("response not recorded: %+v", first)
	}

	if _, err := store.Respond(ctx, c.ID, cases.RespondCommand{DoctorResponse: "Other", DoctorID: "d2"}); !errors.Is(err, cases.ErrAlreadyResolved) {
		t.Errorf("second Respond err = %v, want ErrAlreadyResolved", err)
	}

	stored, _ := store.Find(ctx, c.ID)
	if *stored.DoctorID != "d1" {
		t.Errorf("second respond overwrote doctor: %v", *stored.DoctorID)
	}
}

func TestInsertRejectsNonHigh(t *testing.T) {
	store := casestest.New()
	_, err := store.Insert(context.Background(), cases.CreateCommand{PatientID: "p1", Severity: cases.SeverityLow})
	if !errors.Is(err, cases.ErrInvalidSeverity) {
		t.Errorf("err = %v, want ErrInvalidSeverity", err)
	}
	if len(store.All()) != 0 {
		t.Error("low severity case stored")
	}
}

func TestSelectPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := casestest.New()

	for i := range 5 {
		store.Seed(cases.Case{PatientID: "p1", Severity: cases.SeverityHigh, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	page, err := store.Select(ctx, cases.Pending(), pagination.PageRequest{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}

	if page.Total != 5 || page.TotalPages != 3 || len(page.Data) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if !page.Data[0].CreatedAt.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("first = %v, want newest", page.Data[0].CreatedAt)
	}
}
