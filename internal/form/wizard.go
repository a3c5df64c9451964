package form

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"
)

type Outcome string

const (
	// OutcomeReport means the engine answered synchronously with a report.
	OutcomeReport Outcome = "report"
	// OutcomeAccepted means the engine took the submission without a report.
	OutcomeAccepted Outcome = "accepted"
	// OutcomePending means the engine did not answer within the timeout.
	OutcomePending Outcome = "pending"
)

var (
	ErrNotLastStep      = errors.New("submit is only allowed from the final step")
	ErrStepInvalid      = errors.New("current step is not valid")
	ErrSubmitInFlight   = errors.New("a submission is already in progress")
	ErrAlreadySubmitted = errors.New("session already submitted")
)

type StepTiming struct {
	Step      int    `json:"step"`
	Name      string `json:"name"`
	TimeSpent int64  `json:"timeSpent"`
}

// Session is the serializable wizard state.
type Session struct {
	ID            string            `json:"id"`
	Step          int               `json:"currentStep"`
	Data          FormData          `json:"formData"`
	Score         int               `json:"completionScore"`
	Valid         bool              `json:"isValid"`
	Errors        map[string]string `json:"validationErrors"`
	Submitted     bool              `json:"submitted"`
	Outcome       Outcome           `json:"outcome,omitempty"`
	CorrelationID string            `json:"submissionId,omitempty"`
	LastError     string            `json:"lastError,omitempty"`
	Timings       []StepTiming      `json:"stepTimings,omitempty"`
	StepStartedAt time.Time         `json:"stepStartedAt"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Submission is handed to the Dispatcher on final submit.
type Submission struct {
	Payload Payload
	Timings []StepTiming
}

// Dispatcher persists a final submission and forwards it to the workflow
// engine. Only an error keeps the session in its pre-submit state.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub Submission) (Outcome, error)
}

type Wizard struct {
	dispatcher Dispatcher
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

type WizardOption func(*Wizard)

func WithClock(now func() time.Time) WizardOption {
	return func(w *Wizard) { w.now = now }
}

func NewWizard(d Dispatcher, opts ...WizardOption) *Wizard {
	w := &Wizard{
		dispatcher: d,
		now:        time.Now,
		inflight:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Wizard) NewSession(id string) *Session {
	now := w.now().UTC()
	s := &Session{
		ID:            id,
		StepStartedAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	w.refresh(s)
	return s
}

// Update merges p into the session's form data, then rescores and
// revalidates the current step.
func (w *Wizard) Update(s *Session, p Patch) {
	s.Data = p.Apply(s.Data)
	w.refresh(s)
}

// Next advances one step if the current step validates and reports whether
// the session moved forward or stayed on a valid final step.
func (w *Wizard) Next(s *Session) bool {
	w.refresh(s)
	if !s.Valid {
		return false
	}
	if s.Step < LastStep {
		w.recordTiming(s)
		s.Step++
		s.StepStartedAt = w.now().UTC()
	}
	w.refresh(s)
	return true
}

func (w *Wizard) Prev(s *Session) {
	if s.Step > 0 {
		s.Step--
		s.StepStartedAt = w.now().UTC()
	}
	w.refresh(s)
}

// Submit dispatches the session's payload. On a dispatch error the session
// keeps its data and step and records the error; any outcome moves it to
// submitted.
func (w *Wizard) Submit(ctx context.Context, s *Session) (Outcome, error) {
	if s.Submitted {
		return s.Outcome, ErrAlreadySubmitted
	}
	if s.Step != LastStep {
		return "", ErrNotLastStep
	}
	w.refresh(s)
	if !s.Valid {
		return "", ErrStepInvalid
	}
	if !w.acquire(s.ID) {
		return "", ErrSubmitInFlight
	}
	defer w.release(s.ID)

	now := w.now().UTC()
	if s.CorrelationID == "" {
		s.CorrelationID = NewCorrelationID(now)
	}
	timings := append([]StepTiming(nil), s.Timings...)
	timings = append(timings, StepTiming{
		Step:      s.Step,
		Name:      StepNames[s.Step],
		TimeSpent: secondsSince(s.StepStartedAt, now),
	})
	payload := Payload{
		FormData:        s.Data.Clone(),
		SubmissionID:    s.CorrelationID,
		Timestamp:       now.Format(time.RFC3339Nano),
		CompletionScore: s.Score,
		CurrentStep:     s.Step + 1,
		TotalSteps:      TotalSteps,
	}

	outcome, err := w.dispatcher.Dispatch(ctx, Submission{Payload: payload, Timings: timings})
	s.UpdatedAt = w.now().UTC()
	if err != nil {
		s.LastError = err.Error()
		return "", fmt.Errorf("dispatch submission: %w", err)
	}
	s.Timings = timings
	s.Submitted = true
	s.Outcome = outcome
	s.LastError = ""
	return outcome, nil
}

func (w *Wizard) refresh(s *Session) {
	s.Step = clampStep(s.Step)
	s.Score = Score(s.Data)
	res := ValidateStep(s.Data, s.Step)
	s.Valid = res.Valid
	s.Errors = res.Errors
	s.UpdatedAt = w.now().UTC()
}

func (w *Wizard) recordTiming(s *Session) {
	s.Timings = append(s.Timings, StepTiming{
		Step:      s.Step,
		Name:      StepNames[s.Step],
		TimeSpent: secondsSince(s.StepStartedAt, w.now().UTC()),
	})
}

func (w *Wizard) acquire(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inflight[id]; busy {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *Wizard) release(id string) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.mu.Unlock()
}

func secondsSince(start, now time.Time) int64 {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return int64(now.Sub(start) / time.Second)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewCorrelationID returns "sub_<unix-ms>_<9 base36 chars>".
func NewCorrelationID(now time.Time) string {
	b := make([]byte, 9)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return fmt.Sprintf("sub_%d_%s", now.UnixMilli(), b)
}
