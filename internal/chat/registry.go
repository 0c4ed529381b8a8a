package chat

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/classifier"
	"github.com/JaimeStill/triage/internal/escalation"
	"github.com/JaimeStill/triage/internal/identity"
	"github.com/JaimeStill/triage/pkg/formatting"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

type registry struct {
	classifier   classifier.System
	escalation   escalation.System
	logger       *slog.Logger
	maxImageSize int64
	sessionTTL   time.Duration
	maxSessions  int
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// New creates a session registry over the given classifier and escalation
// writer.
func New(
	cfg *Config,
	classify classifier.System,
	escalate escalation.System,
	logger *slog.Logger,
) System {
	return &registry{
		classifier:   classify,
		escalation:   escalate,
		logger:       logger.With("system", "chat"),
		maxImageSize: cfg.MaxImageSizeBytes(),
		sessionTTL:   cfg.SessionTTLDuration(),
		maxSessions:  cfg.MaxSessions,
		now:          time.Now,
		sessions:     make(map[uuid.UUID]*session),
	}
}

func (r *registry) Handler() *Handler {
	return NewHandler(r, r.logger, r.maxImageSize)
}

// Start runs the idle session sweeper until the lifecycle shuts down.
func (r *registry) Start(lc *lifecycle.Coordinator) error {
	if r.sessionTTL <= 0 {
		return nil
	}

	interval := max(r.sessionTTL/2, time.Second)

	lc.OnShutdown(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-lc.Context().Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	})

	return nil
}

func (r *registry) Open(_ context.Context, patient identity.Actor) (*Snapshot, error) {
	if patient.ID == "" {
		return nil, identity.ErrUnauthenticated
	}

	s := newSession(patient, r.now())

	r.mu.Lock()
	if err := r.makeRoom(patient.ID); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.sessions[s.id] = s
	r.mu.Unlock()

	r.logger.Info("session opened", "session_id", s.id, "patient_id", patient.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (r *registry) List(_ context.Context, patient identity.Actor) ([]Snapshot, error) {
	if patient.ID == "" {
		return nil, identity.ErrUnauthenticated
	}

	r.mu.RLock()
	owned := make([]*session, 0)
	for _, s := range r.sessions {
		if s.patient.ID == patient.ID {
			owned = append(owned, s)
		}
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(owned))
	for _, s := range owned {
		s.mu.Lock()
		snapshots = append(snapshots, *s.snapshot())
		s.mu.Unlock()
	}

	slices.SortFunc(snapshots, func(a, b Snapshot) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return snapshots, nil
}

func (r *registry) Get(_ context.Context, patient identity.Actor, id uuid.UUID) (*Snapshot, error) {
	s, err := r.lookup(patient, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (r *registry) Close(_ context.Context, patient identity.Actor, id uuid.UUID) error {
	if _, err := r.lookup(patient, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	r.logger.Info("session closed", "session_id", id, "patient_id", patient.ID)
	return nil
}

func (r *registry) Attach(_ context.Context, patient identity.Actor, id uuid.UUID, image string) (*Snapshot, error) {
	s, err := r.lookup(patient, id)
	if err != nil {
		return nil, err
	}
	if err := r.validateImage(image); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingClassification {
		return nil, ErrBusy
	}
	if err := s.compose(); err != nil {
		return nil, err
	}

	s.attachment = &image
	return s.snapshot(), nil
}

func (r *registry) Detach(_ context.Context, patient identity.Actor, id uuid.UUID) (*Snapshot, error) {
	s, err := r.lookup(patient, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingClassification {
		return nil, ErrBusy
	}

	s.attachment = nil
	if s.state == StateComposing {
		if err := s.transition(StateIdle); err != nil {
			return nil, err
		}
	}
	return s.snapshot(), nil
}

func (r *registry) Send(ctx context.Context, patient identity.Actor, id uuid.UUID, text string, image *string) (*Snapshot, error) {
	s, err := r.lookup(patient, id)
	if err != nil {
		return nil, err
	}

	submission, err := r.begin(s, text, image)
	if err != nil {
		return nil, err
	}

	result, classifyErr := r.classifier.Classify(ctx, submission)

	snap := r.finish(s, result, classifyErr)

	if classifyErr == nil {
		r.escalate(ctx, s.patient, submission, *result)
	}

	return snap, nil
}

// begin validates the submission, records the patient's message and marks
// the session busy. The staged attachment is consumed here.
func (r *registry) begin(s *session, text string, image *string) (classifier.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingClassification {
		return classifier.Submission{}, ErrBusy
	}

	if image == nil || *image == "" {
		image = s.attachment
	} else if err := r.validateImage(*image); err != nil {
		return classifier.Submission{}, err
	}

	submission := classifier.Submission{Text: text, Image: image}
	if submission.Empty() {
		return classifier.Submission{}, ErrEmptyMessage
	}

	if err := s.compose(); err != nil {
		return classifier.Submission{}, err
	}
	if err := s.transition(StateAwaitingClassification); err != nil {
		return classifier.Submission{}, err
	}

	s.append(SenderPatient, text, image, r.now())
	s.attachment = nil

	return submission, nil
}

// finish appends the classification outcome and settles the session in
// Displayed.
func (r *registry) finish(s *session, result *classifier.Result, err error) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		r.logger.Warn("classification failed", "session_id", s.id, "error", err)
		s.transition(StateFailed)
		s.append(SenderAI, classifier.FallbackMessage, nil, r.now())
	} else {
		s.append(SenderAI, classifier.Narrative(*result), nil, r.now())
	}

	s.lastActive = r.now()
	s.transition(StateDisplayed)
	return s.snapshot()
}

// escalate hands a successful classification to the escalation writer once.
// Failures are logged and never reach the transcript.
func (r *registry) escalate(ctx context.Context, patient identity.Actor, sub classifier.Submission, result classifier.Result) {
	req := escalation.Request{
		PatientID:    patient.ID,
		PatientEmail: patient.Email,
		Image:        sub.Image,
		Result:       result,
	}
	if strings.TrimSpace(sub.Text) != "" {
		prompt := sub.Text
		req.Prompt = &prompt
	}

	c, err := r.escalation.MaybeEscalate(context.WithoutCancel(ctx), req)
	switch {
	case err != nil:
		r.logger.Error("escalation failed", "patient_id", patient.ID, "error", err)
	case c != nil:
		r.logger.Info("submission escalated", "patient_id", patient.ID, "case_id", c.ID)
	}
}

func (r *registry) lookup(patient identity.Actor, id uuid.UUID) (*session, error) {
	if patient.ID == "" {
		return nil, identity.ErrUnauthenticated
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || s.patient.ID != patient.ID {
		return nil, ErrNotFound
	}

	s.touch(r.now())
	return s, nil
}

// sweep drops sessions inactive for longer than the TTL and returns how many
// were removed.
func (r *registry) sweep() int {
	cutoff := r.now().Add(-r.sessionTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, s := range r.sessions {
		if s.expired(cutoff) {
			delete(r.sessions, id)
			evicted++
			r.logger.Info("session expired", "session_id", id, "patient_id", s.patient.ID)
		}
	}
	return evicted
}

// makeRoom evicts the patient's least recently active session once they hold
// maxSessions. Busy sessions are never evicted. Must be called with mu held.
func (r *registry) makeRoom(patientID string) error {
	if r.maxSessions <= 0 {
		return nil
	}

	var (
		owned  int
		oldest *session
	)
	for _, s := range r.sessions {
		if s.patient.ID != patientID {
			continue
		}
		owned++
		if s.busy() {
			continue
		}
		if oldest == nil || s.idleSince().Before(oldest.idleSince()) {
			oldest = s
		}
	}

	if owned < r.maxSessions {
		return nil
	}
	if oldest == nil {
		return ErrSessionLimit
	}

	delete(r.sessions, oldest.id)
	r.logger.Info("session evicted", "session_id", oldest.id, "patient_id", patientID)
	return nil
}

func (r *registry) validateImage(image string) error {
	img, err := formatting.DecodeDataURI(image)
	if err != nil {
		return ErrInvalidImage
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return ErrInvalidImage
	}
	if r.maxImageSize > 0 && int64(len(img.Data)) > r.maxImageSize {
		return ErrImageTooLarge
	}
	return nil
}
