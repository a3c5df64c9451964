package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/render"
	"github.com/joelkehle/readiness-audit/internal/store"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

const (
	ActionMarkOpened     = "mark_opened"
	ActionMarkSent       = "mark_sent"
	ActionUpdateMetadata = "update_metadata"
)

// ReportLookup selects reports by the client correlation id or by email.
type ReportLookup struct {
	SubmissionID string
	Email        string
	ReportID     string
	WithPDFOnly  bool
}

// Reports returns the matching reports, newest first. A correlation id
// lookup returns at most one report.
func (s *Service) Reports(ctx context.Context, q ReportLookup) ([]store.ReportView, error) {
	q.SubmissionID = strings.TrimSpace(q.SubmissionID)
	q.Email = strings.TrimSpace(q.Email)
	q.ReportID = strings.TrimSpace(q.ReportID)

	if q.ReportID != "" {
		v, err := s.db.GetReportView(ctx, q.ReportID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, apperr.Internal("load report", err)
		}
		return []store.ReportView{v}, nil
	}

	f := store.ReportQuery{WithPDFOnly: q.WithPDFOnly}
	switch {
	case q.SubmissionID != "":
		f.CorrelationID = q.SubmissionID
		f.Limit = 1
	case q.Email != "":
		f.Email = q.Email
	default:
		return nil, apperr.Validation("Either submissionId or email parameter is required", nil)
	}
	views, err := s.db.FindReports(ctx, f)
	if err != nil {
		return nil, apperr.Internal("find reports", err)
	}
	return views, nil
}

// AllPDFReports lists every report that has a stored PDF.
func (s *Service) AllPDFReports(ctx context.Context) ([]store.ReportView, error) {
	views, err := s.db.FindReports(ctx, store.ReportQuery{WithPDFOnly: true})
	if err != nil {
		return nil, apperr.Internal("find reports", err)
	}
	return views, nil
}

// Report loads one report with its submission.
func (s *Service) Report(ctx context.Context, id string) (store.ReportView, error) {
	v, err := s.db.GetReportView(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.ReportView{}, apperr.NotFound("Audit report not found")
	}
	if err != nil {
		return store.ReportView{}, apperr.Internal("load report", err)
	}
	return v, nil
}

// ApplyReportAction records engagement on a report or replaces its data.
func (s *Service) ApplyReportAction(ctx context.Context, reportID, action string, metadata map[string]any) (store.ReportView, error) {
	if strings.TrimSpace(reportID) == "" || strings.TrimSpace(action) == "" {
		return store.ReportView{}, apperr.Validation("reportId and action are required", nil)
	}

	var err error
	switch action {
	case ActionMarkOpened:
		_, err = s.db.MarkReportOpened(ctx, reportID)
	case ActionMarkSent:
		_, err = s.db.MarkReportSent(ctx, reportID)
	case ActionUpdateMetadata:
		if metadata != nil {
			var r store.Report
			r, err = s.db.GetReport(ctx, reportID)
			if err == nil {
				r.ReportData = metadata
				err = s.db.UpdateReport(ctx, r)
			}
		}
	default:
		return store.ReportView{}, apperr.Validation("Invalid action", map[string]string{"action": "must be one of: mark_opened, mark_sent, update_metadata"})
	}
	if errors.Is(err, store.ErrNotFound) {
		return store.ReportView{}, apperr.NotFound("Audit report not found")
	}
	if err != nil {
		return store.ReportView{}, apperr.Internal("update report", err)
	}
	s.log.Info("report action applied", "report_id", reportID, "action", action)
	return s.Report(ctx, reportID)
}

// OpenPDF opens the stored PDF a report points at.
func (s *Service) OpenPDF(ctx context.Context, r store.Report) (io.ReadCloser, int64, error) {
	if !r.HasPDF() {
		return nil, 0, apperr.NotFound("PDF not found")
	}
	return s.OpenStoredFile(ctx, blobstore.NameFromLocation(r.PDFURL))
}

// OpenStoredFile opens a stored PDF by its storage name.
func (s *Service) OpenStoredFile(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if strings.TrimSpace(name) == "" {
		return nil, 0, apperr.Validation("Filename is required", nil)
	}
	rc, size, err := s.blobs.Open(ctx, name)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, 0, apperr.NotFound("PDF file not found on disk")
	}
	if err != nil {
		return nil, 0, apperr.Internal("Error reading PDF file", err)
	}
	return rc, size, nil
}

// ReportHTML renders a stored report as a standalone HTML page, preferring
// the engine's own HTML or markdown output.
func (s *Service) ReportHTML(ctx context.Context, id string) (string, error) {
	v, err := s.Report(ctx, id)
	if err != nil {
		return "", err
	}
	blob, err := json.Marshal(v.ReportData)
	if err != nil {
		return "", apperr.Internal("encode report data", err)
	}
	var r workflow.Report
	if err := json.Unmarshal(blob, &r); err != nil {
		return "", apperr.Format("Stored report data is not a structured report", err)
	}

	doc := render.Document{
		Company:     v.Submission.CompanyName,
		OverallRisk: r.RiskAssessment.OverallRisk,
		GeneratedAt: v.GeneratedAt,
	}
	if r.ExecutiveSummary != "" {
		doc.Score = &r.AIReadinessScore
	}
	switch {
	case r.Formats.HTML != nil && strings.TrimSpace(r.Formats.HTML.Content) != "":
		doc.HTML = r.Formats.HTML.Content
		doc.Title = r.Formats.HTML.Title
	case r.Formats.Markdown != nil && strings.TrimSpace(r.Formats.Markdown.Content) != "":
		doc.Markdown = r.Formats.Markdown.Content
	case r.ExecutiveSummary != "":
		doc.Markdown = render.MarkdownFromReport(v.Submission.CompanyName, r)
	default:
		return "", apperr.NotFound("Report has no renderable content")
	}
	out, err := render.BuildHTML(doc)
	if err != nil {
		return "", apperr.Internal("render report", err)
	}
	return out, nil
}
