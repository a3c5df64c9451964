package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const reportColumns = `id, submission_id, report_type, report_data, pdf_url, pdf_filename,
	pdf_file_size, pdf_stored_at, generated_at, sent_at, opened_at`

const reportViewSelect = `SELECT r.id, r.submission_id, r.report_type, r.report_data, r.pdf_url,
	r.pdf_filename, r.pdf_file_size, r.pdf_stored_at, r.generated_at, r.sent_at, r.opened_at,
	s.company_id AS s_company_id, s.email AS s_email, s.company_name AS s_company_name,
	s.correlation_id AS s_correlation_id, s.form_data AS s_form_data,
	s.submission_status AS s_submission_status, s.completion_percentage AS s_completion_percentage,
	s.calculated_metrics AS s_calculated_metrics, s.created_at AS s_created_at,
	s.completed_at AS s_completed_at
	FROM audit_reports r JOIN audit_submissions s ON s.id = r.submission_id`

// CreateReport inserts r. A second report for the same submission fails
// with ErrDuplicate.
func (d *DB) CreateReport(ctx context.Context, r Report) (Report, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ReportType == "" {
		r.ReportType = ReportTypeComprehensive
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = d.now().UTC()
	}
	data, err := marshalJSON(r.ReportData)
	if err != nil {
		return Report{}, fmt.Errorf("encode report data: %w", err)
	}
	_, err = d.db.ExecContext(ctx, d.q(`INSERT INTO audit_reports (`+reportColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.SubmissionID, r.ReportType, data, r.PDFURL, r.PDFFilename, r.PDFFileSize,
		timePtrToString(r.PDFStoredAt), timeToString(r.GeneratedAt),
		timePtrToString(r.SentAt), timePtrToString(r.OpenedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return Report{}, fmt.Errorf("report for submission %s: %w", r.SubmissionID, ErrDuplicate)
		}
		return Report{}, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// UpdateReport overwrites every mutable column of r.
func (d *DB) UpdateReport(ctx context.Context, r Report) error {
	data, err := marshalJSON(r.ReportData)
	if err != nil {
		return fmt.Errorf("encode report data: %w", err)
	}
	res, err := d.db.ExecContext(ctx, d.q(`UPDATE audit_reports SET
		report_type = ?, report_data = ?, pdf_url = ?, pdf_filename = ?, pdf_file_size = ?,
		pdf_stored_at = ?, generated_at = ?, sent_at = ?, opened_at = ?
		WHERE id = ?`),
		r.ReportType, data, r.PDFURL, r.PDFFilename, r.PDFFileSize,
		timePtrToString(r.PDFStoredAt), timeToString(r.GeneratedAt),
		timePtrToString(r.SentAt), timePtrToString(r.OpenedAt), r.ID)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) GetReport(ctx context.Context, id string) (Report, error) {
	var row reportRow
	err := d.db.GetContext(ctx, &row, d.q(`SELECT `+reportColumns+` FROM audit_reports WHERE id = ?`), id)
	if err != nil {
		return Report{}, notFound(err)
	}
	return row.toReport(), nil
}

func (d *DB) ReportBySubmission(ctx context.Context, submissionID string) (Report, error) {
	var row reportRow
	err := d.db.GetContext(ctx, &row, d.q(`SELECT `+reportColumns+` FROM audit_reports WHERE submission_id = ?`), submissionID)
	if err != nil {
		return Report{}, notFound(err)
	}
	return row.toReport(), nil
}

func (d *DB) GetReportView(ctx context.Context, id string) (ReportView, error) {
	var row reportViewRow
	if err := d.db.GetContext(ctx, &row, d.q(reportViewSelect+` WHERE r.id = ?`), id); err != nil {
		return ReportView{}, notFound(err)
	}
	return row.toView(), nil
}

// ReportQuery selects joined report views. Empty fields are ignored.
type ReportQuery struct {
	SubmissionID  string
	CorrelationID string
	Email         string
	WithPDFOnly   bool
	Limit         int
}

// FindReports returns matching reports, newest first.
func (d *DB) FindReports(ctx context.Context, f ReportQuery) ([]ReportView, error) {
	query := reportViewSelect + ` WHERE 1=1`
	var args []any
	if f.SubmissionID != "" {
		query += ` AND r.submission_id = ?`
		args = append(args, f.SubmissionID)
	}
	if f.CorrelationID != "" {
		query += ` AND s.correlation_id = ?`
		args = append(args, f.CorrelationID)
	}
	if f.Email != "" {
		query += ` AND s.email = ?`
		args = append(args, f.Email)
	}
	if f.WithPDFOnly {
		query += ` AND r.pdf_url <> ''`
	}
	query += ` ORDER BY r.generated_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var rows []reportViewRow
	if err := d.db.SelectContext(ctx, &rows, d.q(query), args...); err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	out := make([]ReportView, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toView())
	}
	return out, nil
}

func (d *DB) MarkReportSent(ctx context.Context, id string) (time.Time, error) {
	return d.stampReport(ctx, id, "sent_at")
}

func (d *DB) MarkReportOpened(ctx context.Context, id string) (time.Time, error) {
	return d.stampReport(ctx, id, "opened_at")
}

func (d *DB) stampReport(ctx context.Context, id, column string) (time.Time, error) {
	now := d.now().UTC()
	res, err := d.db.ExecContext(ctx, d.q(`UPDATE audit_reports SET `+column+` = ? WHERE id = ?`), timeToString(now), id)
	if err != nil {
		return time.Time{}, fmt.Errorf("update report %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return time.Time{}, ErrNotFound
	}
	return now, nil
}
