package intake

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type engineFunc func(ctx context.Context, p form.Payload) (*workflow.AuditResponse, error)

func (f engineFunc) Dispatch(ctx context.Context, p form.Payload) (*workflow.AuditResponse, error) {
	return f(ctx, p)
}

type fakeRenderer struct {
	docs []render.Document
}

func (r *fakeRenderer) Render(_ context.Context, doc render.Document) ([]byte, error) {
	r.docs = append(r.docs, doc)
	return []byte("%PDF-1.7 rendered"), nil
}

type harness struct {
	svc      *Service
	db       *store.DB
	renderer *fakeRenderer
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, engine workflow.Engine) *harness {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	blobs, err := blobstore.NewFSStore(t.TempDir(), "")
	require.NoError(t, err)
	if engine == nil {
		engine = workflow.NewSimulator(0)
	}
	r := &fakeRenderer{}
	log := logger.Nop()
	metrics := observability.NewMetrics()
	svc := New(Deps{
		DB:         db,
		Engine:     engine,
		Reconciler: reconcile.New(db, log),
		Ingestor:   ingest.New(db, blobs, log),
		Blobs:      blobs,
		Renderer:   r,
		Log:        log,
		Metrics:    metrics,
	})
	return &harness{svc: svc, db: db, renderer: r, metrics: metrics}
}

func validPayload(correlationID string) form.Payload {
	consent := true
	return form.Payload{
		FormData: form.FormData{
			CompanyName:        "Acme Corp",
			Industry:           "technology",
			EmployeeCount:      "11-50",
			BusinessGoals:      []string{"Reduce costs"},
			TimeConsumingTasks: []string{"Data entry"},
			Email:              "ops@acme.test",
			MarketingConsent:   &consent,
		},
		SubmissionID: correlationID,
		CurrentStep:  form.TotalSteps,
		TotalSteps:   form.TotalSteps,
	}
}

func pdfBase64() string {
	return base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 callback"))
}

func TestSubmitRecordsSubmissionAndInteractions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	sub, err := h.svc.Submit(ctx, validPayload("sub_1_abc"), []form.StepTiming{
		{Step: 0, Name: "company_basics", TimeSpent: 30},
		{Step: 4, Name: "contact", TimeSpent: 12},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub_1_abc", sub.CorrelationID)
	assert.Equal(t, "Acme Corp", sub.CompanyName)
	assert.Equal(t, store.StatusInProgress, sub.Status)
	assert.Equal(t, form.Score(validPayload("").FormData), sub.CompletionPercentage)
	assert.Equal(t, "sub_1_abc", sub.FormData["submissionId"])

	company, err := h.db.GetCompany(ctx, sub.CompanyID)
	require.NoError(t, err)
	assert.Equal(t, "11-50", company.EmployeeCountRange)

	interactions, err := h.db.ListInteractions(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, interactions, 3)
	steps := map[string]int64{}
	var submitted *store.Interaction
	for i, in := range interactions {
		switch in.InteractionType {
		case store.InteractionStepCompleted:
			steps[in.StepName] = in.TimeSpent
		case store.InteractionSubmitted:
			submitted = &interactions[i]
		}
	}
	assert.Equal(t, map[string]int64{"company_basics": 30, "contact": 12}, steps)
	require.NotNil(t, submitted)
	assert.EqualValues(t, 42, submitted.TimeSpent)

	again, err := h.svc.Submit(ctx, validPayload("sub_1_abc"), nil)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, again.ID)
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	h := newHarness(t, nil)
	p := validPayload("sub_1_abc")
	p.Email = ""
	p.BusinessGoals = nil

	_, err := h.svc.Submit(context.Background(), p, nil)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Equal(t, "Email is required", ae.Details["email"])
	assert.Contains(t, ae.Details, "businessGoals")
}

func TestSubmitGeneratesCorrelationID(t *testing.T) {
	h := newHarness(t, nil)
	sub, err := h.svc.Submit(context.Background(), validPayload(""), nil)
	require.NoError(t, err)
	assert.Regexp(t, `^sub_\d+_[0-9a-z]{9}$`, sub.CorrelationID)
}

func TestDispatchStoresSynchronousReport(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	outcome, err := h.svc.Dispatch(ctx, form.Submission{Payload: validPayload("sub_2_abc")})
	require.NoError(t, err)
	assert.Equal(t, form.OutcomeReport, outcome)

	reports, err := h.db.FindReports(ctx, store.ReportQuery{CorrelationID: "sub_2_abc"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	r := reports[0]
	assert.True(t, r.HasPDF())
	assert.Equal(t, "Acme_Corp_AI_Audit_Report.pdf", r.PDFFilename)
	assert.Equal(t, store.StatusCompleted, r.Submission.Status)
	assert.Equal(t, 75.0, r.Submission.CalculatedMetrics["aiReadinessScore"])
	assert.Equal(t, 8500.0, r.Submission.CalculatedMetrics["processingTime"])

	formats := r.ReportData["formats"].(map[string]any)
	pdf := formats["pdf"].(map[string]any)
	assert.NotContains(t, pdf, "data")
	assert.Equal(t, "Acme_Corp_AI_Audit_Report.pdf", pdf["filename"])
	assert.Empty(t, h.renderer.docs)
}

func TestDispatchOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		engine  engineFunc
		want    form.Outcome
		wantErr bool
	}{
		{
			name:   "timeout is pending",
			engine: func(context.Context, form.Payload) (*workflow.AuditResponse, error) { return nil, workflow.ErrPending },
			want:   form.OutcomePending,
		},
		{
			name: "error status is accepted",
			engine: func(context.Context, form.Payload) (*workflow.AuditResponse, error) {
				return nil, &workflow.StatusError{Status: 502, Body: "bad gateway"}
			},
			want: form.OutcomeAccepted,
		},
		{
			name: "success without report is accepted",
			engine: func(context.Context, form.Payload) (*workflow.AuditResponse, error) {
				return &workflow.AuditResponse{Success: true}, nil
			},
			want: form.OutcomeAccepted,
		},
		{
			name: "transport failure is an error",
			engine: func(context.Context, form.Payload) (*workflow.AuditResponse, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.engine)
			outcome, err := h.svc.Dispatch(context.Background(), form.Submission{Payload: validPayload("sub_3_abc")})
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, outcome)
			}

			subs, err := h.db.FindSubmissions(context.Background(), store.SubmissionFilter{CorrelationID: "sub_3_abc"})
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, store.StatusInProgress, subs[0].Status)
		})
	}
}

func TestWizardSubmitEndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	w := form.NewWizard(h.svc)
	s := w.NewSession("sess-1")
	p := validPayload("")
	w.Update(s, form.Patch{
		CompanyName:   &p.CompanyName,
		Industry:      &p.Industry,
		EmployeeCount: &p.EmployeeCount,
	})
	require.True(t, w.Next(s))
	w.Update(s, form.Patch{BusinessGoals: &p.BusinessGoals, TimeConsumingTasks: &p.TimeConsumingTasks})
	require.True(t, w.Next(s))
	require.True(t, w.Next(s))
	require.True(t, w.Next(s))
	w.Update(s, form.Patch{Email: &p.Email})

	outcome, err := w.Submit(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, form.OutcomeReport, outcome)
	assert.True(t, s.Submitted)

	views, err := h.svc.Reports(context.Background(), ReportLookup{SubmissionID: s.CorrelationID})
	require.NoError(t, err)
	require.Len(t, views, 1)
	interactions, err := h.db.ListInteractions(context.Background(), views[0].SubmissionID)
	require.NoError(t, err)
	assert.Len(t, interactions, form.TotalSteps+1)
}

func TestIngestReportRendersMissingPDF(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.svc.Submit(ctx, validPayload("sub_4_abc"), nil)
	require.NoError(t, err)

	resp, err := workflow.NewSimulator(0).Dispatch(ctx, validPayload("sub_4_abc"))
	require.NoError(t, err)
	resp.Report.Formats.PDF = nil
	resp.Report.Formats.Markdown = &workflow.MarkdownFormat{Content: "# Report\n\nBody", Filename: "r.md"}

	res, err := h.svc.IngestReport(ctx, resp)
	require.NoError(t, err)
	assert.Equal(t, reconcile.ByCorrelationID, res.Strategy)
	assert.NotEmpty(t, res.PDFURL)
	require.Len(t, h.renderer.docs, 1)
	assert.Equal(t, "# Report\n\nBody", h.renderer.docs[0].Markdown)
	assert.Equal(t, "Acme Corp", h.renderer.docs[0].Company)
}

func TestIngestReportRejectsBadResponses(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.svc.IngestReport(ctx, &workflow.AuditResponse{Success: false, Error: "engine exploded"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = h.svc.IngestReport(ctx, &workflow.AuditResponse{Success: true, SubmissionID: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = h.svc.IngestReport(ctx, &workflow.AuditResponse{
		Success:      true,
		SubmissionID: "x",
		Report:       &workflow.Report{AIReadinessScore: 140},
	})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Contains(t, ae.Details, "report.aiReadinessScore")

	_, err = h.svc.IngestReport(ctx, &workflow.AuditResponse{
		Success:      true,
		SubmissionID: "sub_unknown",
		Report:       &workflow.Report{AIReadinessScore: 40},
	})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func webhook(correlationID, data string) WebhookCallback {
	size := 2048.0
	return WebhookCallback{
		SubmissionID:     correlationID,
		Email:            "ops@acme.test",
		Timestamp:        "2026-01-01T00:00:00Z",
		BusinessOverview: &BusinessOverview{CompanyName: "Acme Corp"},
		Data: &WebhookFile{
			FileName:      "Acme_Corp_AI_Audit_Report.pdf",
			FileExtension: "pdf",
			MimeType:      "application/pdf",
			FileSize:      &size,
			Data:          data,
		},
	}
}

func TestIngestCallbackStoresPDF(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sub, err := h.svc.Submit(ctx, validPayload("sub_5_abc"), nil)
	require.NoError(t, err)

	res, err := h.svc.IngestCallback(ctx, webhook("", pdfBase64()))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ByEmailCompany, res.Strategy)
	assert.Equal(t, sub.ID, res.SubmissionID)
	assert.Equal(t, true, res.PDFMetadata["processedByWorkflow"])
	assert.EqualValues(t, 2048, res.PDFMetadata["fileSize"])

	again, err := h.svc.IngestCallback(ctx, webhook("sub_5_abc", pdfBase64()))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ByCorrelationID, again.Strategy)
	assert.Equal(t, res.ReportID, again.ReportID)

	got, err := h.db.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, true, got.CalculatedMetrics["pdfGenerated"])

	rc, size, err := h.svc.OpenPDF(ctx, mustReport(t, h, sub.ID))
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 callback", string(body))
	assert.EqualValues(t, len(body), size)
}

func mustReport(t *testing.T, h *harness, submissionID string) store.Report {
	t.Helper()
	r, err := h.db.ReportBySubmission(context.Background(), submissionID)
	require.NoError(t, err)
	return r
}

func TestIngestCallbackRejectsBadPayloads(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sub, err := h.svc.Submit(ctx, validPayload("sub_6_abc"), nil)
	require.NoError(t, err)

	_, err = h.svc.IngestCallback(ctx, webhook("sub_6_abc", "not-base64-at-all!!"))
	assert.True(t, apperr.Is(err, apperr.CodeFormat))
	_, err = h.db.ReportBySubmission(ctx, sub.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	cb := webhook("sub_6_abc", pdfBase64())
	cb.Email = "not-an-email"
	_, err = h.svc.IngestCallback(ctx, cb)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	assert.Contains(t, ae.Details, "email")

	cb = webhook("sub_6_abc", pdfBase64())
	cb.Data = nil
	_, err = h.svc.IngestCallback(ctx, cb)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	cb = webhook("sub_nope", pdfBase64())
	cb.Email = "other@elsewhere.test"
	cb.BusinessOverview = &BusinessOverview{CompanyName: "Globex"}
	_, err = h.svc.IngestCallback(ctx, cb)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestStorePDFMarksPDFReady(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	sub, err := h.svc.Submit(ctx, validPayload("sub_7_abc"), nil)
	require.NoError(t, err)

	size := 17.0
	req := StorePDFRequest{
		SubmissionID: "sub_7_abc",
		Email:        "ops@acme.test",
		CompanyName:  "Acme Corp",
		PDFData:      pdfBase64(),
		Filename:     "report.pdf",
		FileSize:     &size,
	}
	_, err = h.svc.StorePDF(ctx, req)
	assert.True(t, apperr.Is(err, apperr.CodeFormat), "bare base64 without the data url prefix is rejected")

	req.PDFData = ingest.DataURLPrefix + pdfBase64()
	res, err := h.svc.StorePDF(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, res.SubmissionID)
	assert.Contains(t, res.PDFURL, "-report.pdf")

	got, err := h.db.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPDFReady, got.Status)
}

func TestReportActionsAndLookup(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.svc.Dispatch(ctx, form.Submission{Payload: validPayload("sub_8_abc")})
	require.NoError(t, err)

	_, err = h.svc.Reports(ctx, ReportLookup{})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	views, err := h.svc.Reports(ctx, ReportLookup{Email: "ops@acme.test"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	id := views[0].ID

	v, err := h.svc.ApplyReportAction(ctx, id, ActionMarkOpened, nil)
	require.NoError(t, err)
	assert.NotNil(t, v.OpenedAt)
	assert.Nil(t, v.SentAt)

	v, err = h.svc.ApplyReportAction(ctx, id, ActionUpdateMetadata, map[string]any{"note": "called"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"note": "called"}, v.ReportData)

	_, err = h.svc.ApplyReportAction(ctx, id, "explode", nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	_, err = h.svc.ApplyReportAction(ctx, "missing", ActionMarkSent, nil)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestDispatchCountsUnrecordedSubmissions(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.db.Close())

	outcome, err := h.svc.Dispatch(context.Background(), form.Submission{Payload: validPayload("sub_8_abc")})
	require.NoError(t, err)
	assert.Equal(t, form.OutcomeReport, outcome)

	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `audit_submissions_total{outcome="unrecorded"} 1`)
	assert.NotContains(t, rec.Body.String(), `audit_submissions_total{outcome="stored"}`)
}
