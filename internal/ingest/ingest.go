// Package ingest persists generated reports and their PDFs against a
// resolved submission.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/logger"
	"github.com/joelkehle/readiness-audit/internal/observability"
	"github.com/joelkehle/readiness-audit/internal/store"
)

type Store interface {
	ReportBySubmission(ctx context.Context, submissionID string) (store.Report, error)
	CreateReport(ctx context.Context, r store.Report) (store.Report, error)
	UpdateReport(ctx context.Context, r store.Report) error
	CompleteSubmission(ctx context.Context, id, status string, metrics map[string]any) (store.Submission, error)
}

// PDF is an inbound PDF artifact. Bytes takes precedence over Data.
type PDF struct {
	Data      string
	Bytes     []byte
	Filename  string
	MimeType  string
	Extension string
	Size      int64
}

type Input struct {
	// ReportData keys are merged over the existing report blob.
	ReportData map[string]any
	PDF        *PDF
	// PDFURL is an externally hosted PDF, used when no PDF bytes arrive.
	PDFURL string
	// RequirePDF makes an invalid or unstorable PDF a hard failure.
	RequirePDF  bool
	Status      string
	Metrics     map[string]any
	Timestamp   string
	GeneratedAt time.Time
}

type Result struct {
	ReportID     string         `json:"reportId"`
	SubmissionID string         `json:"submissionId"`
	PDFURL       string         `json:"pdfUrl,omitempty"`
	PDFMetadata  map[string]any `json:"pdfMetadata,omitempty"`
	Degraded     bool           `json:"degraded,omitempty"`
	Created      bool           `json:"-"`
}

type Ingestor struct {
	store   Store
	blobs   blobstore.Store
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

type Option func(*Ingestor)

func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func New(st Store, blobs blobstore.Store, log *logger.Logger, opts ...Option) *Ingestor {
	i := &Ingestor{store: st, blobs: blobs, log: log, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type storedPDF struct {
	location string
	filename string
	size     int64
	storedAt time.Time
	meta     map[string]any
}

// Ingest stores the PDF (if any), upserts the submission's report and marks
// the submission with in.Status. PDF validation runs before any write.
func (i *Ingestor) Ingest(ctx context.Context, sub store.Submission, in Input) (Result, error) {
	ctx, span := observability.StartSpan(ctx, "ingest.report",
		attribute.String("submission.id", sub.ID))
	res, err := i.ingest(ctx, sub, in)
	observability.EndSpan(span, err)
	return res, err
}

func (i *Ingestor) ingest(ctx context.Context, sub store.Submission, in Input) (Result, error) {
	res := Result{SubmissionID: sub.ID}

	var raw []byte
	if in.PDF != nil {
		var err error
		if in.PDF.Bytes != nil {
			raw, err = in.PDF.Bytes, CheckPDF(in.PDF.Bytes)
		} else {
			raw, err = DecodePDF(in.PDF.Data)
		}
		if err != nil {
			if in.RequirePDF {
				i.metrics.Ingested("rejected")
				return res, apperr.Format("Invalid PDF data format", err)
			}
			i.log.Warn("discarding invalid pdf", "submission_id", sub.ID, "error", err)
			raw = nil
			res.Degraded = true
		}
	} else if in.RequirePDF {
		i.metrics.Ingested("rejected")
		return res, apperr.Format("PDF data is required", nil)
	}

	var pdf *storedPDF
	if raw != nil {
		stored, err := i.storePDF(ctx, in, raw)
		if err != nil {
			if in.RequirePDF {
				i.metrics.Ingested("failed")
				return res, apperr.Internal("Failed to save PDF file", err)
			}
			i.log.Error("pdf storage failed, keeping report without pdf", "submission_id", sub.ID, "error", err)
			res.Degraded = true
		} else {
			pdf = stored
		}
	}

	report, created, err := i.upsertReport(ctx, sub.ID, in, pdf)
	if err != nil {
		i.metrics.Ingested("failed")
		return res, apperr.Internal("store report", err)
	}
	res.ReportID = report.ID
	res.Created = created
	res.PDFURL = report.PDFURL
	if pdf != nil {
		res.PDFMetadata = pdf.meta
	}

	status := in.Status
	if status == "" {
		status = store.StatusCompleted
	}
	metrics := mergeMaps(sub.CalculatedMetrics, in.Metrics)
	if pdf != nil {
		metrics["pdfGenerated"] = true
		metrics["pdfGeneratedAt"] = i.now().UTC().Format(time.RFC3339Nano)
		metrics["pdfFileSize"] = pdf.size
		metrics["pdfUrl"] = pdf.location
	} else if report.PDFURL != "" && in.PDFURL != "" {
		metrics["pdfUrl"] = report.PDFURL
	}
	if _, err := i.store.CompleteSubmission(ctx, sub.ID, status, metrics); err != nil {
		i.metrics.Ingested("failed")
		return res, apperr.Internal("update submission", err)
	}

	outcome := "updated"
	if created {
		outcome = "created"
	}
	if res.Degraded {
		outcome = "degraded"
	}
	i.metrics.Ingested(outcome)
	i.log.Info("report ingested",
		"submission_id", sub.ID,
		"report_id", report.ID,
		"outcome", outcome,
		"status", status,
		"pdf_url", res.PDFURL)
	return res, nil
}

func (i *Ingestor) storePDF(ctx context.Context, in Input, raw []byte) (*storedPDF, error) {
	now := i.now().UTC()
	filename := strings.TrimSpace(in.PDF.Filename)
	if filename == "" {
		filename = defaultFilename
	}
	key := StorageKey(now, filename)
	location, err := i.blobs.Put(ctx, key, raw, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("put %s: %w", key, err)
	}
	i.metrics.PDFStored(len(raw))

	declared := in.PDF.Size
	if declared <= 0 {
		declared = int64(len(raw))
	}
	meta := map[string]any{
		"filename": filename,
		"fileSize": declared,
		"storedAt": now.Format(time.RFC3339Nano),
	}
	if in.PDF.MimeType != "" {
		meta["mimeType"] = in.PDF.MimeType
	}
	if in.PDF.Extension != "" {
		meta["fileExtension"] = in.PDF.Extension
	}
	if in.Timestamp != "" {
		meta["originalTimestamp"] = in.Timestamp
	}
	return &storedPDF{location: location, filename: filename, size: int64(len(raw)), storedAt: now, meta: meta}, nil
}

func (i *Ingestor) upsertReport(ctx context.Context, submissionID string, in Input, pdf *storedPDF) (store.Report, bool, error) {
	existing, err := i.store.ReportBySubmission(ctx, submissionID)
	switch {
	case err == nil:
		return i.updateReport(ctx, existing, in, pdf)
	case !errors.Is(err, store.ErrNotFound):
		return store.Report{}, false, err
	}

	r := store.Report{
		SubmissionID: submissionID,
		ReportType:   store.ReportTypeComprehensive,
		ReportData:   mergeMaps(nil, in.ReportData),
		PDFURL:       in.PDFURL,
		GeneratedAt:  in.GeneratedAt,
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = i.now().UTC()
	}
	applyPDF(&r, pdf)
	created, err := i.store.CreateReport(ctx, r)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return store.Report{}, false, err
	}
	// Concurrent duplicate delivery won the insert.
	existing, err = i.store.ReportBySubmission(ctx, submissionID)
	if err != nil {
		return store.Report{}, false, err
	}
	return i.updateReport(ctx, existing, in, pdf)
}

func (i *Ingestor) updateReport(ctx context.Context, r store.Report, in Input, pdf *storedPDF) (store.Report, bool, error) {
	r.ReportData = mergeMaps(r.ReportData, in.ReportData)
	if in.PDFURL != "" {
		r.PDFURL = in.PDFURL
	}
	applyPDF(&r, pdf)
	if err := i.store.UpdateReport(ctx, r); err != nil {
		return store.Report{}, false, err
	}
	return r, false, nil
}

func applyPDF(r *store.Report, pdf *storedPDF) {
	if pdf == nil {
		return
	}
	if r.ReportData == nil {
		r.ReportData = map[string]any{}
	}
	r.ReportData["pdfMetadata"] = pdf.meta
	r.PDFURL = pdf.location
	r.PDFFilename = pdf.filename
	r.PDFFileSize = pdf.size
	storedAt := pdf.storedAt
	r.PDFStoredAt = &storedAt
}

func mergeMaps(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
