package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/ingest"
	"github.com/joelkehle/readiness-audit/internal/reconcile"
	"github.com/joelkehle/readiness-audit/internal/render"
	"github.com/joelkehle/readiness-audit/internal/store"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

const unknownCompany = "Unknown_Company"

// WebhookCallback is the engine's asynchronous PDF delivery.
type WebhookCallback struct {
	SubmissionID     string            `json:"submissionId"`
	Email            string            `json:"email" validate:"omitempty,email"`
	Timestamp        string            `json:"timestamp"`
	BusinessOverview *BusinessOverview `json:"business_overview" validate:"omitempty"`
	Data             *WebhookFile      `json:"data" validate:"required"`
}

type BusinessOverview struct {
	CompanyName string   `json:"company_name"`
	Industry    string   `json:"industry"`
	Employees   string   `json:"employees"`
	Goals       []string `json:"goals"`
}

type WebhookFile struct {
	FileName      string   `json:"fileName"`
	FileExtension string   `json:"fileExtension" validate:"required"`
	MimeType      string   `json:"mimeType" validate:"required"`
	FileSize      *float64 `json:"fileSize" validate:"required,gte=0"`
	Data          string   `json:"data" validate:"required"`
}

// StorePDFRequest is a direct PDF upload carrying a data URL.
type StorePDFRequest struct {
	SubmissionID string   `json:"submissionId" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	CompanyName  string   `json:"companyName" validate:"required"`
	PDFData      string   `json:"pdfData" validate:"required"`
	Filename     string   `json:"filename" validate:"required"`
	FileSize     *float64 `json:"fileSize" validate:"required,gte=0"`
	Timestamp    string   `json:"timestamp"`
}

// IngestResult is what the callback routes answer with.
type IngestResult struct {
	ingest.Result
	Strategy reconcile.Strategy `json:"matchedBy,omitempty"`
}

// IngestCallback resolves the webhook's submission and stores its PDF.
func (s *Service) IngestCallback(ctx context.Context, cb WebhookCallback) (IngestResult, error) {
	if err := s.validateStruct(cb, "Invalid webhook payload format"); err != nil {
		return IngestResult{}, err
	}
	if _, err := ingest.DecodePDF(cb.Data.Data); err != nil {
		s.metrics.Ingested("rejected")
		return IngestResult{}, apperr.Format("Invalid PDF data format", err)
	}

	company := unknownCompany
	if cb.BusinessOverview != nil && strings.TrimSpace(cb.BusinessOverview.CompanyName) != "" {
		company = cb.BusinessOverview.CompanyName
	}
	m, err := s.reconciler.Resolve(ctx, reconcile.Keys{
		SubmissionID: cb.SubmissionID,
		Email:        cb.Email,
		CompanyName:  company,
	})
	if err != nil {
		return IngestResult{}, err
	}

	filename := cb.Data.FileName
	if strings.TrimSpace(filename) == "" {
		filename = workflow.ReportFilename(company)
	}
	res, err := s.ingestor.Ingest(ctx, m.Submission, ingest.Input{
		ReportData: map[string]any{"status": "completed_with_pdf", "generatedByWorkflow": true},
		PDF: &ingest.PDF{
			Data:      cb.Data.Data,
			Filename:  filename,
			MimeType:  cb.Data.MimeType,
			Extension: cb.Data.FileExtension,
			Size:      int64(*cb.Data.FileSize),
		},
		RequirePDF: true,
		Status:     store.StatusCompleted,
		Timestamp:  cb.Timestamp,
	})
	if err != nil {
		return IngestResult{}, err
	}
	if res.PDFMetadata != nil {
		res.PDFMetadata["processedByWorkflow"] = true
	}
	return IngestResult{Result: res, Strategy: m.Strategy}, nil
}

// StorePDF stores a PDF pushed directly by the browser and marks the
// submission pdf_ready.
func (s *Service) StorePDF(ctx context.Context, req StorePDFRequest) (IngestResult, error) {
	if err := s.validateStruct(req, "Invalid request data"); err != nil {
		return IngestResult{}, err
	}
	if !strings.HasPrefix(strings.TrimSpace(req.PDFData), ingest.DataURLPrefix) {
		s.metrics.Ingested("rejected")
		return IngestResult{}, apperr.Format("Invalid PDF data format", fmt.Errorf("pdfData must be a %q data url", ingest.DataURLPrefix))
	}
	if _, err := ingest.DecodePDF(req.PDFData); err != nil {
		s.metrics.Ingested("rejected")
		return IngestResult{}, apperr.Format("Invalid PDF data format", err)
	}

	m, err := s.reconciler.Resolve(ctx, reconcile.Keys{
		SubmissionID: req.SubmissionID,
		Email:        req.Email,
		CompanyName:  req.CompanyName,
	})
	if err != nil {
		return IngestResult{}, err
	}
	res, err := s.ingestor.Ingest(ctx, m.Submission, ingest.Input{
		ReportData: map[string]any{"status": "pdf_generated"},
		PDF: &ingest.PDF{
			Data:     req.PDFData,
			Filename: req.Filename,
			MimeType: "application/pdf",
			Size:     int64(*req.FileSize),
		},
		RequirePDF: true,
		Status:     store.StatusPDFReady,
		Timestamp:  req.Timestamp,
	})
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Result: res, Strategy: m.Strategy}, nil
}

// IngestReport stores a structured engine response against the submission
// named by its correlation id. When the engine sent no PDF and a renderer
// is configured, one is rendered from the report.
func (s *Service) IngestReport(ctx context.Context, resp *workflow.AuditResponse) (IngestResult, error) {
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "workflow processing failed"
		}
		return IngestResult{}, apperr.Validation(msg, nil)
	}
	if resp.Report == nil {
		return IngestResult{}, apperr.Validation("No report data received from workflow engine", nil)
	}
	if strings.TrimSpace(resp.SubmissionID) == "" {
		return IngestResult{}, apperr.Validation("Invalid workflow response format", map[string]string{"submissionId": "submissionId is required"})
	}
	if err := s.validateStruct(resp, "Invalid workflow response format"); err != nil {
		return IngestResult{}, err
	}

	m, err := s.reconciler.Resolve(ctx, reconcile.Keys{SubmissionID: resp.SubmissionID})
	if err != nil {
		return IngestResult{}, err
	}

	report := *resp.Report
	in := ingest.Input{
		Status:      store.StatusCompleted,
		GeneratedAt: parseTime(report.GeneratedAt),
		Metrics: map[string]any{
			"aiReadinessScore":  report.AIReadinessScore,
			"industryBenchmark": report.IndustryBenchmark,
		},
	}
	if resp.ProcessingTime != nil {
		in.Metrics["processingTime"] = *resp.ProcessingTime
	}

	if pdf := report.Formats.PDF; pdf != nil {
		filename := pdf.Filename
		if filename == "" {
			filename = workflow.ReportFilename(m.Submission.CompanyName)
		}
		switch {
		case pdf.Data != "":
			in.PDF = &ingest.PDF{Data: pdf.Data, Filename: filename, MimeType: "application/pdf"}
			if pdf.Size != nil {
				in.PDF.Size = int64(*pdf.Size)
			}
		case pdf.URL != "":
			in.PDFURL = pdf.URL
		}
		// The stored blob keeps the PDF reference but not its bytes.
		stripped := *pdf
		stripped.Data = ""
		report.Formats.PDF = &stripped
	}
	if in.PDF == nil && in.PDFURL == "" && s.renderer != nil {
		if raw, err := s.renderReport(ctx, m.Submission, report); err != nil {
			s.log.Warn("rendering report pdf failed", "submission_id", m.Submission.ID, "error", err)
		} else {
			in.PDF = &ingest.PDF{
				Data:     base64.StdEncoding.EncodeToString(raw),
				Filename: workflow.ReportFilename(m.Submission.CompanyName),
				MimeType: "application/pdf",
			}
		}
	}

	data, err := toMap(report)
	if err != nil {
		return IngestResult{}, apperr.Internal("encode report", err)
	}
	in.ReportData = data

	res, err := s.ingestor.Ingest(ctx, m.Submission, in)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{Result: res, Strategy: m.Strategy}, nil
}

func (s *Service) renderReport(ctx context.Context, sub store.Submission, r workflow.Report) ([]byte, error) {
	doc := render.Document{
		Company:     sub.CompanyName,
		Score:       &r.AIReadinessScore,
		OverallRisk: r.RiskAssessment.OverallRisk,
		GeneratedAt: parseTime(r.GeneratedAt),
	}
	switch {
	case r.Formats.Markdown != nil && strings.TrimSpace(r.Formats.Markdown.Content) != "":
		doc.Markdown = r.Formats.Markdown.Content
	case r.Formats.HTML != nil && strings.TrimSpace(r.Formats.HTML.Content) != "":
		doc.HTML = r.Formats.HTML.Content
		doc.Title = r.Formats.HTML.Title
	default:
		doc.Markdown = render.MarkdownFromReport(sub.CompanyName, r)
	}
	return s.renderer.Render(ctx, doc)
}

func parseTime(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
