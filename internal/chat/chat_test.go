package chat_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/cases"
	"github.com/JaimeStill/triage/internal/cases/casestest"
	"github.com/JaimeStill/triage/internal/chat"
	"github.com/JaimeStill/triage/internal/classifier"
	"github.com/JaimeStill/triage/internal/escalation"
	"github.com/JaimeStill/triage/internal/history"
	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/internal/review"
	"github.com/JaimeStill/triage/pkg/lifecycle"
	"github.com/JaimeStill/triage/pkg/pagination"
)

const testImage = "data:image/png;base64,aGVsbG8="

var (
	patient = identity.Actor{ID: "p1", Email: "p1@example.com", Role: identity.RolePatient}
	pageCfg = pagination.Config{DefaultPageSize: 25, MaxPageSize: 100}
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type mockClassifier struct {
	calls      atomic.Int32
	classifyFn func(ctx context.Context, s classifier.Submission) (*classifier.Result, error)
}

func (m *mockClassifier) Classify(ctx context.Context, s classifier.Submission) (*classifier.Result, error) {
	m.calls.Add(1)
	return m.classifyFn(ctx, s)
}

type mockEscalation struct {
	mu       sync.Mutex
	requests []escalation.Request
	err      error
}

func (m *mockEscalation) MaybeEscalate(_ context.Context, req escalation.Request) (*cases.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return nil, m.err
}

func returning(res classifier.Result) *mockClassifier {
	return &mockClassifier{classifyFn: func(context.Context, classifier.Submission) (*classifier.Result, error) {
		return &res, nil
	}}
}

func failing() *mockClassifier {
	return &mockClassifier{classifyFn: func(context.Context, classifier.Submission) (*classifier.Result, error) {
		return nil, classifier.ErrUnavailable
	}}
}

func newSystem(t *testing.T, c classifier.System, e escalation.System) chat.System {
	t.Helper()
	cfg := &chat.Config{MaxImageSize: "1KB"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	return chat.New(cfg, c, e, discard())
}

func open(t *testing.T, sys chat.System) uuid.UUID {
	t.Helper()
	snap, err := sys.Open(context.Background(), patient)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return snap.ID
}

func TestOpenStartsIdleWithGreeting(t *testing.T) {
	sys := newSystem(t, failing(), &mockEscalation{})

	snap, err := sys.Open(context.Background(), patient)
	if err != nil {
		t.Fatal(err)
	}

	if snap.State != chat.StateIdle {
		t.Errorf("state = %s", snap.State)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Sender != chat.SenderAI || snap.Messages[0].Text != chat.Greeting {
		t.Errorf("messages = %+v", snap.Messages)
	}
}

func TestSendSuccess(t *testing.T) {
	result := classifier.Result{Disease: ptr("Migraine"), Severity: ptr(cases.SeverityMedium), Info: ptr("Rest in a dark room.")}
	esc := &mockEscalation{}
	sys := newSystem(t, returning(result), esc)
	id := open(t, sys)

	snap, err := sys.Send(context.Background(), patient, id, "throbbing headache", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if snap.State != chat.StateDisplayed {
		t.Errorf("state = %s", snap.State)
	}
	if len(snap.Messages) != 3 {
		t.Fatalf("messages = %+v", snap.Messages)
	}
	if m := snap.Messages[1]; m.Sender != chat.SenderPatient || m.Text != "throbbing headache" {
		t.Errorf("patient message = %+v", m)
	}
	if m := snap.Messages[2]; m.Sender != chat.SenderAI || m.Text != classifier.Narrative(result) {
		t.Errorf("ai message = %+v", m)
	}

	if len(esc.requests) != 1 {
		t.Fatalf("escalation calls = %d, want 1", len(esc.requests))
	}
	if req := esc.requests[0]; req.PatientID != "p1" || req.PatientEmail != "p1@example.com" || *req.Prompt != "throbbing headache" {
		t.Errorf("escalation request = %+v", req)
	}
}

func TestSendFailureShowsFallbackAndNeverEscalates(t *testing.T) {
	esc := &mockEscalation{}
	sys := newSystem(t, failing(), esc)
	id := open(t, sys)

	if _, err := sys.Attach(context.Background(), patient, id, testImage); err != nil {
		t.Fatal(err)
	}

	snap, err := sys.Send(context.Background(), patient, id, "rash", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if snap.State != chat.StateDisplayed {
		t.Errorf("state = %s", snap.State)
	}
	if got := snap.Messages[len(snap.Messages)-1]; got.Text != classifier.FallbackMessage || got.Sender != chat.SenderAI {
		t.Errorf("last message = %+v", got)
	}
	if snap.Attachment != nil {
		t.Error("attachment survived a failed send")
	}
	if len(esc.requests) != 0 {
		t.Errorf("escalation calls = %d, want 0", len(esc.requests))
	}
}

func TestSendValidation(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		image *string
		want  error
	}{
		{"empty", "", nil, chat.ErrEmptyMessage},
		{"whitespace", "  \n\t", nil, chat.ErrEmptyMessage},
		{"not a data uri", "look", ptr("aGVsbG8="), chat.ErrInvalidImage},
		{"not an image", "look", ptr("data:text/plain;base64,aGVsbG8="), chat.ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := returning(classifier.Result{})
			sys := newSystem(t, c, &mockEscalation{})
			id := open(t, sys)

			if _, err := sys.Send(context.Background(), patient, id, tt.text, tt.image); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if c.calls.Load() != 0 {
				t.Error("classifier called for rejected submission")
			}

			snap, _ := sys.Get(context.Background(), patient, id)
			if len(snap.Messages) != 1 || snap.State != chat.StateIdle {
				t.Errorf("session changed: %+v", snap)
			}
		})
	}
}

func TestImageOnlySubmissionUsesAttachment(t *testing.T) {
	var got classifier.Submission
	c := &mockClassifier{classifyFn: func(_ context.Context, s classifier.Submission) (*classifier.Result, error) {
		got = s
		return &classifier.Result{}, nil
	}}
	sys := newSystem(t, c, &mockEscalation{})
	id := open(t, sys)

	snap, err := sys.Attach(context.Background(), patient, id, testImage)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != chat.StateComposing || *snap.Attachment != testImage {
		t.Errorf("after attach: %+v", snap)
	}

	snap, err = sys.Send(context.Background(), patient, id, "", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Image == nil || *got.Image != testImage {
		t.Errorf("submission = %+v", got)
	}
	if snap.Attachment != nil {
		t.Error("attachment not cleared")
	}
	if m := snap.Messages[1]; m.Image == nil || *m.Image != testImage {
		t.Errorf("patient message = %+v", m)
	}
}

func TestAttachRejectsOversizedImage(t *testing.T) {
	sys := newSystem(t, failing(), &mockEscalation{})
	id := open(t, sys)

	big := "data:image/png;base64," + base64Of(2048)
	if _, err := sys.Attach(context.Background(), patient, id, big); !errors.Is(err, chat.ErrImageTooLarge) {
		t.Errorf("err = %v, want ErrImageTooLarge", err)
	}
}

func TestDetachReturnsToIdle(t *testing.T) {
	sys := newSystem(t, failing(), &mockEscalation{})
	id := open(t, sys)

	sys.Attach(context.Background(), patient, id, testImage)
	snap, err := sys.Detach(context.Background(), patient, id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.State != chat.StateIdle || snap.Attachment != nil {
		t.Errorf("after detach: %+v", snap)
	}
}

func TestSingleInFlightSend(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := &mockClassifier{classifyFn: func(context.Context, classifier.Submission) (*classifier.Result, error) {
		close(started)
		<-release
		return &classifier.Result{}, nil
	}}
	sys := newSystem(t, c, &mockEscalation{})
	id := open(t, sys)

	done := make(chan error, 1)
	go func() {
		_, err := sys.Send(context.Background(), patient, id, "first", nil)
		done <- err
	}()

	<-started

	snap, _ := sys.Get(context.Background(), patient, id)
	if snap.State != chat.StateAwaitingClassification {
		t.Errorf("state while classifying = %s", snap.State)
	}
	if len(snap.Messages) != 2 || snap.Messages[1].Text != "first" {
		t.Errorf("patient message not appended before classification: %+v", snap.Messages)
	}

	if _, err := sys.Send(context.Background(), patient, id, "second", nil); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("concurrent Send err = %v, want ErrBusy", err)
	}
	if _, err := sys.Attach(context.Background(), patient, id, testImage); !errors.Is(err, chat.ErrBusy) {
		t.Errorf("Attach while busy err = %v, want ErrBusy", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if got := c.calls.Load(); got != 1 {
		t.Errorf("classifier calls = %d, want 1", got)
	}
}

func TestEscalationFailureLeavesTranscriptUntouched(t *testing.T) {
	result := classifier.Result{Severity: ptr(cases.SeverityHigh), Info: ptr("Go to urgent care.")}
	sys := newSystem(t, returning(result), &mockEscalation{err: escalation.ErrWriteFailed})
	id := open(t, sys)

	snap, err := sys.Send(context.Background(), patient, id, "chest pain", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := snap.Messages[len(snap.Messages)-1].Text; got != classifier.Narrative(result) {
		t.Errorf("ai message = %q", got)
	}
}

func TestSessionsAreOwned(t *testing.T) {
	sys := newSystem(t, failing(), &mockEscalation{})
	id := open(t, sys)
	intruder := identity.Actor{ID: "p2", Role: identity.RolePatient}
	ctx := context.Background()

	if _, err := sys.Get(ctx, intruder, id); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := sys.Send(ctx, intruder, id, "hi", nil); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Send err = %v", err)
	}
	if err := sys.Close(ctx, intruder, id); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Close err = %v", err)
	}
	if list, _ := sys.List(ctx, intruder); len(list) != 0 {
		t.Errorf("List leaked %d sessions", len(list))
	}

	if err := sys.Close(ctx, patient, id); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := sys.Get(ctx, patient, id); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("Get after close err = %v", err)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to chat.State
		want     bool
	}{
		{chat.StateIdle, chat.StateComposing, true},
		{chat.StateComposing, chat.StateAwaitingClassification, true},
		{chat.StateAwaitingClassification, chat.StateDisplayed, true},
		{chat.StateAwaitingClassification, chat.StateFailed, true},
		{chat.StateFailed, chat.StateDisplayed, true},
		{chat.StateDisplayed, chat.StateComposing, true},
		{chat.StateIdle, chat.StateAwaitingClassification, false},
		{chat.StateIdle, chat.StateDisplayed, false},
		{chat.StateFailed, chat.StateComposing, false},
		{chat.StateDisplayed, chat.StateFailed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// A High result flows from the chat into the doctor's queue, and the doctor's
// answer moves it into the patient's history.
func TestRashOnArmScenario(t *testing.T) {
	ctx := context.Background()
	store := casestest.New()
	store.Now = func() time.Time { return time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC) }

	result := classifier.Result{
		Disease:    ptr("Contact Dermatitis"),
		Confidence: ptr(91.0),
		Severity:   ptr(cases.SeverityHigh),
		Info:       ptr("Avoid irritants."),
	}
	sys := newSystem(t, returning(result), escalation.New(store, nil, discard()))
	queue := review.New(store, nil, discard(), pageCfg)
	hist := history.New(store, discard(), pageCfg)

	id := open(t, sys)
	if _, err := sys.Send(ctx, patient, id, "rash on arm", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	all := store.All()
	if len(all) != 1 {
		t.Fatalf("cases = %d, want 1", len(all))
	}
	c := all[0]
	if c.Severity != cases.SeverityHigh || c.DoctorResponse != nil || c.AIResponse != classifier.Narrative(result) {
		t.Errorf("case = %+v", c)
	}

	pending, err := queue.ListPending(ctx, pagination.PageRequest{})
	if err != nil || len(pending.Data) != 1 || pending.Data[0].ID != c.ID {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	if _, err := queue.Respond(ctx, c.ID, "dr1", "Apply hydrocortisone cream."); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	pending, _ = queue.ListPending(ctx, pagination.PageRequest{})
	if len(pending.Data) != 0 {
		t.Errorf("resolved case still pending")
	}

	resolved, err := hist.ListResolved(ctx, patient.ID, pagination.PageRequest{})
	if err != nil || len(resolved.Data) != 1 {
		t.Fatalf("resolved = %+v, %v", resolved, err)
	}
	got := resolved.Data[0]
	if *got.DoctorResponse != "Apply hydrocortisone cream." || *got.DoctorID != "dr1" {
		t.Errorf("history case = %+v", got)
	}
}

// An unreachable classifier leaves the patient's message and one fallback
// reply, and creates no case.
func TestNetworkErrorScenario(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := &classifier.Config{BaseURL: url, Timeout: "2s"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	store := casestest.New()
	sys := newSystem(t, classifier.New(cfg, nil, discard()), escalation.New(store, nil, discard()))
	id := open(t, sys)

	snap, err := sys.Send(context.Background(), patient, id, "rash on arm", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := snap.Messages[1:]
	if len(msgs) != 2 {
		t.Fatalf("messages after greeting = %+v", msgs)
	}
	if msgs[0].Sender != chat.SenderPatient || msgs[0].Text != "rash on arm" {
		t.Errorf("patient message = %+v", msgs[0])
	}
	if msgs[1].Sender != chat.SenderAI || msgs[1].Text != classifier.FallbackMessage {
		t.Errorf("fallback message = %+v", msgs[1])
	}
	if n := len(store.All()); n != 0 {
		t.Errorf("cases = %d, want 0", n)
	}
}

func base64Of(n int) string {
	const block = "AAAA"
	out := make([]byte, 0, n/3*4+4)
	for range n/3 + 1 {
		out = append(out, block...)
	}
	return string(out)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestIdleSessionsExpire(t *testing.T) {
	clk := newClock()
	sys := newSystem(t, failing(), &mockEscalation{})
	chat.SetClock(sys, clk.Now)
	ctx := context.Background()

	stale := open(t, sys)
	clk.Advance(20 * time.Minute)
	fresh := open(t, sys)
	clk.Advance(15 * time.Minute)

	if n := chat.Sweep(sys); n != 1 {
		t.Fatalf("swept %d sessions, want 1", n)
	}
	if _, err := sys.Get(ctx, patient, stale); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("stale session err = %v, want ErrNotFound", err)
	}
	if _, err := sys.Get(ctx, patient, fresh); err != nil {
		t.Fatalf("fresh session: %v", err)
	}

	clk.Advance(29 * time.Minute)
	if n := chat.Sweep(sys); n != 0 {
		t.Errorf("activity did not extend the session: swept %d", n)
	}

	clk.Advance(2 * time.Minute)
	if n := chat.Sweep(sys); n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}
	if list, _ := sys.List(ctx, patient); len(list) != 0 {
		t.Errorf("sessions left = %d", len(list))
	}
}

func TestSweepSparesSessionAwaitingClassification(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := &mockClassifier{classifyFn: func(context.Context, classifier.Submission) (*classifier.Result, error) {
		close(started)
		<-release
		return &classifier.Result{}, nil
	}}

	clk := newClock()
	sys := newSystem(t, c, &mockEscalation{})
	chat.SetClock(sys, clk.Now)
	id := open(t, sys)

	done := make(chan error, 1)
	go func() {
		_, err := sys.Send(context.Background(), patient, id, "still waiting", nil)
		done <- err
	}()
	<-started

	clk.Advance(time.Hour)
	if n := chat.Sweep(sys); n != 0 {
		t.Errorf("swept %d busy sessions", n)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}

	snap, err := sys.Get(context.Background(), patient, id)
	if err != nil || snap.State != chat.StateDisplayed {
		t.Errorf("session after classification = %+v, %v", snap, err)
	}
}

func TestOpenAtCapEvictsLeastRecentlyActive(t *testing.T) {
	cfg := &chat.Config{MaxSessions: 2}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	clk := newClock()
	sys := chat.New(cfg, failing(), &mockEscalation{}, discard())
	chat.SetClock(sys, clk.Now)
	ctx := context.Background()

	first := open(t, sys)
	clk.Advance(time.Minute)
	second := open(t, sys)
	clk.Advance(time.Minute)

	if _, err := sys.Get(ctx, patient, first); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clk.Advance(time.Minute)

	third := open(t, sys)

	if _, err := sys.Get(ctx, patient, second); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("least recently active session err = %v, want ErrNotFound", err)
	}
	for _, id := range []uuid.UUID{first, third} {
		if _, err := sys.Get(ctx, patient, id); err != nil {
			t.Errorf("session %s: %v", id, err)
		}
	}

	other := identity.Actor{ID: "p2", Role: identity.RolePatient}
	if _, err := sys.Open(ctx, other); err != nil {
		t.Errorf("cap applied across patients: %v", err)
	}
}

func TestOpenAtCapWithEverySessionBusy(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	c := &mockClassifier{classifyFn: func(context.Context, classifier.Submission) (*classifier.Result, error) {
		close(started)
		<-release
		return &classifier.Result{}, nil
	}}

	cfg := &chat.Config{MaxSessions: 1}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	sys := chat.New(cfg, c, &mockEscalation{}, discard())
	id := open(t, sys)

	done := make(chan error, 1)
	go func() {
		_, err := sys.Send(context.Background(), patient, id, "waiting", nil)
		done <- err
	}()
	<-started

	_, err := sys.Open(context.Background(), patient)
	if !errors.Is(err, chat.ErrSessionLimit) {
		t.Errorf("err = %v, want ErrSessionLimit", err)
	}
	if chat.MapHTTPStatus(err) != http.StatusTooManyRequests {
		t.Errorf("status = %d", chat.MapHTTPStatus(err))
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Send: %v", err)
	}
}

func TestSweeperStopsOnShutdown(t *testing.T) {
	sys := newSystem(t, failing(), &mockEscalation{})
	lc := lifecycle.New()

	if err := sys.Start(lc); err != nil {
		t.Fatalf("Start: %v", err)
	}
	lc.WaitForStartup()

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestConfigSessionBounds(t *testing.T) {
	var cfg chat.Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.SessionTTLDuration() != 30*time.Minute || cfg.MaxSessions != 10 {
		t.Errorf("defaults = %+v", cfg)
	}

	tests := []struct {
		name string
		cfg  chat.Config
	}{
		{"malformed ttl", chat.Config{SessionTTL: "later"}},
		{"zero ttl", chat.Config{SessionTTL: "0s"}},
		{"negative cap", chat.Config{MaxSessions: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}
