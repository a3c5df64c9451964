package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const submissionColumns = `id, company_id, email, company_name, correlation_id, form_data,
	submission_status, completion_percentage, calculated_metrics, created_at, completed_at`

func (d *DB) CreateSubmission(ctx context.Context, s Submission) (Submission, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusInProgress
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = d.now().UTC()
	}
	if s.FormData == nil {
		s.FormData = map[string]any{}
	}
	if s.CalculatedMetrics == nil {
		s.CalculatedMetrics = map[string]any{}
	}
	formData, err := marshalJSON(s.FormData)
	if err != nil {
		return Submission{}, fmt.Errorf("encode form data: %w", err)
	}
	metrics, err := marshalJSON(s.CalculatedMetrics)
	if err != nil {
		return Submission{}, fmt.Errorf("encode metrics: %w", err)
	}
	_, err = d.db.ExecContext(ctx, d.q(`INSERT INTO audit_submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.CompanyID, s.Email, s.CompanyName, s.CorrelationID, formData,
		s.Status, s.CompletionPercentage, metrics, timeToString(s.CreatedAt), timePtrToString(s.CompletedAt))
	if err != nil {
		return Submission{}, fmt.Errorf("insert submission: %w", err)
	}
	return s, nil
}

func (d *DB) GetSubmission(ctx context.Context, id string) (Submission, error) {
	var row submissionRow
	err := d.db.GetContext(ctx, &row, d.q(`SELECT `+submissionColumns+` FROM audit_submissions WHERE id = ?`), id)
	if err != nil {
		return Submission{}, notFound(err)
	}
	return row.toSubmission(), nil
}

// SubmissionFilter narrows FindSubmissions. Empty fields are ignored; every
// set field must match.
type SubmissionFilter struct {
	CorrelationID string
	Email         string
	CompanyName   string
	CreatedSince  time.Time
	Limit         int
}

// FindSubmissions returns matching submissions, newest first.
func (d *DB) FindSubmissions(ctx context.Context, f SubmissionFilter) ([]Submission, error) {
	var (
		where []string
		args  []any
	)
	if f.CorrelationID != "" {
		where = append(where, "correlation_id = ?")
		args = append(args, f.CorrelationID)
	}
	if f.Email != "" {
		where = append(where, "email = ?")
		args = append(args, f.Email)
	}
	if f.CompanyName != "" {
		where = append(where, "company_name = ?")
		args = append(args, f.CompanyName)
	}
	if !f.CreatedSince.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, timeToString(f.CreatedSince))
	}
	query := `SELECT ` + submissionColumns + ` FROM audit_submissions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var rows []submissionRow
	if err := d.db.SelectContext(ctx, &rows, d.q(query), args...); err != nil {
		return nil, fmt.Errorf("find submissions: %w", err)
	}
	out := make([]Submission, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSubmission())
	}
	return out, nil
}

// CompleteSubmission sets the status, re-stamps completed_at and replaces
// the calculated metrics blob.
func (d *DB) CompleteSubmission(ctx context.Context, id, status string, metrics map[string]any) (Submission, error) {
	blob, err := marshalJSON(metrics)
	if err != nil {
		return Submission{}, fmt.Errorf("encode metrics: %w", err)
	}
	now := d.now().UTC()
	res, err := d.db.ExecContext(ctx, d.q(`UPDATE audit_submissions
		SET submission_status = ?, completed_at = ?, calculated_metrics = ?
		WHERE id = ?`), status, timeToString(now), blob, id)
	if err != nil {
		return Submission{}, fmt.Errorf("update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Submission{}, ErrNotFound
	}
	return d.GetSubmission(ctx, id)
}
