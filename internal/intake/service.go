// Package intake ties the wizard, the store, the workflow engine and report
// ingestion together.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/form"
	"github.com/joelkehle/readiness-audit/internal/ingest"
	"github.com/joelkehle/readiness-audit/internal/logger"
	"github.com/joelkehle/readiness-audit/internal/observability"
	"github.com/joelkehle/readiness-audit/internal/reconcile"
	"github.com/joelkehle/readiness-audit/internal/render"
	"github.com/joelkehle/readiness-audit/internal/store"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

type Deps struct {
	DB         *store.DB
	Engine     workflow.Engine
	Reconciler *reconcile.Reconciler
	Ingestor   *ingest.Ingestor
	Blobs      blobstore.Store
	// Renderer is optional. Without it reports that arrive without a PDF
	// are stored without one.
	Renderer render.PDFRenderer
	Log      *logger.Logger
	Metrics  *observability.Metrics
	Timeout  time.Duration
	Now      func() time.Time
}

type Service struct {
	db         *store.DB
	engine     workflow.Engine
	reconciler *reconcile.Reconciler
	ingestor   *ingest.Ingestor
	blobs      blobstore.Store
	renderer   render.PDFRenderer
	log        *logger.Logger
	metrics    *observability.Metrics
	timeout    time.Duration
	now        func() time.Time
	validate   *validator.Validate
}

func New(d Deps) *Service {
	if d.Timeout <= 0 {
		d.Timeout = workflow.DefaultTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Service{
		db:         d.DB,
		engine:     d.Engine,
		reconciler: d.Reconciler,
		ingestor:   d.Ingestor,
		blobs:      d.Blobs,
		renderer:   d.Renderer,
		log:        d.Log,
		metrics:    d.Metrics,
		timeout:    d.Timeout,
		now:        d.Now,
		validate:   form.NewValidator(),
	}
}

// Submit validates a full payload and records it: company get-or-create,
// submission row, one interaction per completed step and a final
// form_submitted interaction. A payload whose correlation id is already
// stored returns the existing submission.
func (s *Service) Submit(ctx context.Context, p form.Payload, timings []form.StepTiming) (store.Submission, error) {
	if res := form.ValidateSubmission(p.FormData); !res.Valid {
		return store.Submission{}, apperr.Validation("Invalid form data", res.Errors)
	}
	if strings.TrimSpace(p.SubmissionID) == "" {
		p.SubmissionID = form.NewCorrelationID(s.now())
	}

	existing, err := s.db.FindSubmissions(ctx, store.SubmissionFilter{CorrelationID: p.SubmissionID, Limit: 1})
	if err != nil {
		return store.Submission{}, apperr.Internal("look up submission", err)
	}
	if len(existing) > 0 {
		s.log.Info("submission already recorded", "submission_id", existing[0].ID, "correlation_id", p.SubmissionID)
		return existing[0], nil
	}

	d := p.FormData
	company, err := s.db.GetOrCreateCompany(ctx, store.Company{
		Name:               d.CompanyName,
		Industry:           d.Industry,
		EmployeeCountRange: d.EmployeeCount,
		AnnualRevenueRange: d.Revenue,
		Website:            d.Website,
	})
	if err != nil {
		return store.Submission{}, apperr.Internal("store company", err)
	}

	score := form.Score(d)
	formData, err := toMap(p)
	if err != nil {
		return store.Submission{}, apperr.Internal("encode form data", err)
	}
	sub, err := s.db.CreateSubmission(ctx, store.Submission{
		CompanyID:            company.ID,
		Email:                strings.TrimSpace(d.Email),
		CompanyName:          strings.TrimSpace(d.CompanyName),
		CorrelationID:        p.SubmissionID,
		FormData:             formData,
		Status:               store.StatusInProgress,
		CompletionPercentage: score,
		CalculatedMetrics: map[string]any{
			"completionScore": score,
			"submittedAt":     s.now().UTC().Format(time.RFC3339Nano),
			"industry":        d.Industry,
			"employeeCount":   d.EmployeeCount,
		},
	})
	if err != nil {
		return store.Submission{}, apperr.Internal("store submission", err)
	}

	var total int64
	for _, t := range timings {
		total += t.TimeSpent
		if _, err := s.db.AddInteraction(ctx, store.Interaction{
			SubmissionID:    sub.ID,
			InteractionType: store.InteractionStepCompleted,
			StepName:        t.Name,
			TimeSpent:       t.TimeSpent,
			InteractionData: map[string]any{"step": t.Step},
		}); err != nil {
			return sub, apperr.Internal("store interaction", err)
		}
	}
	if _, err := s.db.AddInteraction(ctx, store.Interaction{
		SubmissionID:    sub.ID,
		InteractionType: store.InteractionSubmitted,
		TimeSpent:       total,
		InteractionData: map[string]any{
			"completionScore": score,
			"totalSteps":      form.TotalSteps,
			"submissionId":    p.SubmissionID,
		},
	}); err != nil {
		return sub, apperr.Internal("store interaction", err)
	}

	s.metrics.Submission("stored")
	s.log.Info("submission stored",
		"submission_id", sub.ID,
		"correlation_id", p.SubmissionID,
		"company", sub.CompanyName,
		"email", sub.Email,
		"completion", score)
	return sub, nil
}

// Dispatch records the submission and forwards it to the workflow engine.
// Only a transport failure is returned as an error; the wizard then stays
// on the final step so the user can retry.
func (s *Service) Dispatch(ctx context.Context, sub form.Submission) (form.Outcome, error) {
	if _, err := s.Submit(ctx, sub.Payload, sub.Timings); err != nil {
		if apperr.Is(err, apperr.CodeValidation) {
			return "", err
		}
		s.metrics.Submission("unrecorded")
		s.log.Error("recording submission failed, dispatching anyway",
			"correlation_id", sub.Payload.SubmissionID, "error", err)
	}

	ctx, span := observability.StartSpan(ctx, "workflow.dispatch",
		attribute.String("submission.correlation_id", sub.Payload.SubmissionID))
	dctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := s.now()
	resp, err := s.engine.Dispatch(dctx, sub.Payload)
	elapsed := s.now().Sub(start)

	var statusErr *workflow.StatusError
	switch {
	case errors.Is(err, workflow.ErrPending):
		s.metrics.Dispatched(string(form.OutcomePending), elapsed)
		s.log.Warn("workflow engine timed out, submission pending", "correlation_id", sub.Payload.SubmissionID)
		observability.EndSpan(span, nil)
		return form.OutcomePending, nil
	case errors.As(err, &statusErr):
		s.metrics.Dispatched(string(form.OutcomeAccepted), elapsed)
		s.log.Warn("workflow engine returned an error status, submission accepted",
			"correlation_id", sub.Payload.SubmissionID, "status", statusErr.Status)
		observability.EndSpan(span, nil)
		return form.OutcomeAccepted, nil
	case err != nil:
		s.metrics.Dispatched("error", elapsed)
		observability.EndSpan(span, err)
		return "", err
	}
	observability.EndSpan(span, nil)

	if !resp.Success || resp.Report == nil {
		s.metrics.Dispatched(string(form.OutcomeAccepted), elapsed)
		s.log.Info("workflow engine accepted submission without report",
			"correlation_id", sub.Payload.SubmissionID, "engine_error", resp.Error)
		return form.OutcomeAccepted, nil
	}

	s.metrics.Dispatched(string(form.OutcomeReport), elapsed)
	if resp.SubmissionID == "" {
		resp.SubmissionID = sub.Payload.SubmissionID
	}
	if _, err := s.IngestReport(ctx, resp); err != nil {
		s.log.Error("storing synchronous report failed",
			"correlation_id", sub.Payload.SubmissionID, "error", err)
	}
	return form.OutcomeReport, nil
}

func (s *Service) validateStruct(v any, message string) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperr.Validation(message, nil)
	}
	details := make(map[string]string, len(ves))
	for _, fe := range ves {
		details[form.FieldPath(fe)] = fieldMessage(fe)
	}
	return apperr.Validation(message, details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Valid email is required"
	case "oneof":
		return fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte", "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "lte", "max":
		return fe.Field() + " must be at most " + fe.Param()
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
