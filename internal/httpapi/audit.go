package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/form"
	"github.com/joelkehle/readiness-audit/internal/intake"
	"github.com/joelkehle/readiness-audit/internal/store"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		form.Payload
		StepTimings []form.StepTiming `json:"stepTimings"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sub, err := s.intake.Submit(r.Context(), req.Payload, req.StepTimings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"submissionId":    sub.ID,
		"correlationId":   sub.CorrelationID,
		"completionScore": sub.CompletionPercentage,
		"message":         "Audit submitted successfully",
	})
}

func (s *Server) handleWebhookResponse(w http.ResponseWriter, r *http.Request) {
	var cb intake.WebhookCallback
	if err := decodeJSON(w, r, &cb); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.intake.IngestCallback(r.Context(), cb)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"submissionId": res.SubmissionID,
		"reportId":     res.ReportID,
		"pdfUrl":       res.PDFURL,
		"pdfMetadata":  res.PDFMetadata,
		"matchedBy":    res.Strategy,
		"message":      "PDF successfully stored in database",
	})
}

func (s *Server) handleStorePDF(w http.ResponseWriter, r *http.Request) {
	var req intake.StorePDFRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.intake.StorePDF(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"submissionId": res.SubmissionID,
		"reportId":     res.ReportID,
		"pdfUrl":       res.PDFURL,
		"message":      "PDF stored successfully in database",
	})
}

func (s *Server) handleIngestReport(w http.ResponseWriter, r *http.Request) {
	var resp workflow.AuditResponse
	if err := decodeJSON(w, r, &resp); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.intake.IngestReport(r.Context(), &resp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	payload := map[string]any{
		"success":      true,
		"reportId":     res.ReportID,
		"submissionId": res.SubmissionID,
		"message":      "Audit report stored successfully",
	}
	if res.PDFURL != "" {
		payload["pdfUrl"] = res.PDFURL
	}
	if res.Degraded {
		payload["degraded"] = true
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lookup := intake.ReportLookup{SubmissionID: q.Get("submissionId"), Email: q.Get("email")}
	if strings.TrimSpace(lookup.SubmissionID) == "" && strings.TrimSpace(lookup.Email) == "" {
		s.writeError(w, apperr.Validation("submissionId or email required", nil))
		return
	}
	views, err := s.intake.Reports(r.Context(), lookup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	reports := make([]map[string]any, 0, len(views))
	for _, v := range views {
		reports = append(reports, map[string]any{
			"id":          v.ID,
			"reportType":  v.ReportType,
			"generatedAt": v.GeneratedAt,
			"reportData":  v.ReportData,
			"company":     v.Submission.CompanyName,
			"email":       v.Submission.Email,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reports": reports})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lookup := intake.ReportLookup{
		SubmissionID: q.Get("submissionId"),
		Email:        q.Get("email"),
		ReportID:     q.Get("reportId"),
	}
	views, err := s.intake.Reports(r.Context(), lookup)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if len(views) == 0 {
		msg := "Audit report not found"
		if lookup.SubmissionID == "" && lookup.ReportID == "" {
			msg = "No audit reports found for this email"
		}
		s.writeError(w, apperr.NotFound(msg))
		return
	}

	includeMetadata := q.Get("includeMetadata") == "true"
	out := make([]map[string]any, 0, len(views))
	for _, v := range views {
		out = append(out, formatReport(v, includeMetadata))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"reports": out,
		"count":   len(out),
		"message": fmt.Sprintf("Found %d audit report(s)", len(out)),
	})
}

func (s *Server) handleReportAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReportID string         `json:"reportId"`
		Action   string         `json:"action"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	v, err := s.intake.ApplyReportAction(r.Context(), req.ReportID, req.Action, req.Metadata)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report": map[string]any{
			"id":           v.ID,
			"submissionId": v.SubmissionID,
			"companyName":  companyName(v),
			"email":        v.Submission.Email,
			"action":       req.Action,
			"updatedAt":    time.Now().UTC(),
			"pdf":          pdfInfo(v.Report),
		},
		"message": fmt.Sprintf("Report %s successfully", req.Action),
	})
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	page, err := s.intake.ReportHTML(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

func formatReport(v store.ReportView, includeMetadata bool) map[string]any {
	out := map[string]any{
		"id":               v.ID,
		"submissionId":     v.SubmissionID,
		"correlationId":    v.Submission.CorrelationID,
		"companyName":      companyName(v),
		"email":            v.Submission.Email,
		"reportType":       v.ReportType,
		"submissionStatus": v.Submission.Status,
		"generatedAt":      v.GeneratedAt,
		"completedAt":      v.Submission.CompletedAt,
		"pdf":              pdfInfo(v.Report),
		"emailSent":        v.SentAt != nil,
		"emailSentAt":      v.SentAt,
		"emailOpened":      v.OpenedAt != nil,
		"emailOpenedAt":    v.OpenedAt,
	}
	if includeMetadata {
		out["reportData"] = v.ReportData
		out["formData"] = v.Submission.FormData
	}
	return out
}

func pdfInfo(r store.Report) map[string]any {
	return map[string]any{
		"available":         r.HasPDF(),
		"url":               r.PDFURL,
		"filename":          r.PDFFilename,
		"fileSize":          r.PDFFileSize,
		"fileSizeFormatted": formatFileSize(r.PDFFileSize),
		"storedAt":          r.PDFStoredAt,
	}
}

func companyName(v store.ReportView) string {
	if v.Submission.CompanyName != "" {
		return v.Submission.CompanyName
	}
	if name, ok := v.Submission.FormData["companyName"].(string); ok && name != "" {
		return name
	}
	return "Unknown Company"
}

func formatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "Unknown size"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
