package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/intake"
	"github.com/joelkehle/readiness-audit/internal/store"
)

func (s *Server) handlePDFRetrieve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := requestOrigin(r)

	if q.Get("list") == "true" {
		views, err := s.intake.AllPDFReports(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		pdfs := make([]map[string]any, 0, len(views))
		for _, v := range views {
			item := pdfMetadata(v)
			for k, u := range accessURLs(v.Report, origin) {
				item[k] = u
			}
			pdfs = append(pdfs, item)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "All PDFs retrieved", "pdfs": pdfs})
		return
	}

	lookup := intake.ReportLookup{WithPDFOnly: true}
	switch {
	case q.Get("reportId") != "":
		lookup.ReportID = q.Get("reportId")
	case q.Get("submissionId") != "":
		lookup.SubmissionID = q.Get("submissionId")
	case q.Get("email") != "":
		lookup.Email = q.Get("email")
	default:
		s.writeError(w, apperr.Validation("reportId, submissionId or email required", nil))
		return
	}
	views, err := s.intake.Reports(r.Context(), lookup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(views) == 0 || !views[0].HasPDF() {
		s.writeError(w, apperr.NotFound("PDF not found"))
		return
	}
	v := views[0]

	if q.Get("download") == "true" {
		filename := v.PDFFilename
		if filename == "" {
			filename = "audit_report.pdf"
		}
		rc, size, err := s.intake.OpenPDF(r.Context(), v.Report)
		if err != nil {
			s.writeError(w, err)
			return
		}
		defer rc.Close()
		s.streamPDF(w, rc, size, fmt.Sprintf("attachment; filename=%q", filename))
		return
	}

	meta := pdfMetadata(v)
	meta["accessUrls"] = accessURLs(v.Report, origin)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "PDF found", "pdf": meta})
}

func (s *Server) handlePDFServe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	rc, size, err := s.intake.OpenStoredFile(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	s.streamPDF(w, rc, size, fmt.Sprintf("inline; filename=%q", name))
}

func (s *Server) streamPDF(w http.ResponseWriter, rc io.Reader, size int64, disposition string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", disposition)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("pdf stream interrupted", "error", err)
	}
}

func pdfMetadata(v store.ReportView) map[string]any {
	return map[string]any{
		"reportId":            v.ID,
		"submissionId":        v.Submission.CorrelationID,
		"email":               v.Submission.Email,
		"companyName":         companyName(v),
		"pdfUrl":              v.PDFURL,
		"pdfFilename":         v.PDFFilename,
		"pdfFileSize":         v.PDFFileSize,
		"pdfStoredAt":         v.PDFStoredAt,
		"generatedAt":         v.GeneratedAt,
		"submissionCreatedAt": v.Submission.CreatedAt,
	}
}

func accessURLs(r store.Report, origin string) map[string]string {
	out := map[string]string{
		"download": origin + "/api/pdf/retrieve?reportId=" + url.QueryEscape(r.ID) + "&download=true",
		"view":     origin + "/api/pdf/serve/" + url.PathEscape(blobstore.NameFromLocation(r.PDFURL)),
		"metadata": origin + "/api/audit/reports?reportId=" + url.QueryEscape(r.ID),
	}
	switch {
	case strings.HasPrefix(r.PDFURL, "/"):
		out["directUrl"] = origin + r.PDFURL
	case strings.HasPrefix(r.PDFURL, "http://"), strings.HasPrefix(r.PDFURL, "https://"):
		out["directUrl"] = r.PDFURL
	}
	return out
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
