// Package httpapi exposes the audit intake over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/blobstore"
	"github.com/joelkehle/readiness-audit/internal/draft"
	"github.com/joelkehle/readiness-audit/internal/form"
	"github.com/joelkehle/readiness-audit/internal/intake"
	"github.com/joelkehle/readiness-audit/internal/logger"
	"github.com/joelkehle/readiness-audit/internal/observability"
)

const maxBodyBytes = 32 << 20

type Pinger interface {
	Ping() error
}

type Deps struct {
	Intake  *intake.Service
	Wizard  *form.Wizard
	Drafts  draft.Store
	DB      Pinger
	Log     *logger.Logger
	Metrics *observability.Metrics
}

type Server struct {
	intake  *intake.Service
	wizard  *form.Wizard
	drafts  draft.Store
	db      Pinger
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewServer(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	s := &Server{
		intake:  d.Intake,
		wizard:  d.Wizard,
		drafts:  d.Drafts,
		db:      d.DB,
		log:     d.Log,
		metrics: d.Metrics,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/audit/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/audit/webhook-response", s.handleWebhookResponse)
	mux.HandleFunc("POST /api/audit/store-pdf", s.handleStorePDF)
	mux.HandleFunc("POST /api/audit/report", s.handleIngestReport)
	mux.HandleFunc("GET /api/audit/report", s.handleGetReport)
	mux.HandleFunc("GET /api/audit/reports", s.handleListReports)
	mux.HandleFunc("POST /api/audit/reports", s.handleReportAction)
	mux.HandleFunc("GET /api/audit/reports/{id}/html", s.handleReportHTML)
	mux.HandleFunc("GET /api/pdf/retrieve", s.handlePDFRetrieve)
	mux.HandleFunc("GET /api/pdf/serve/{filename}", s.handlePDFServe)
	mux.HandleFunc("GET "+blobstore.DefaultURLPrefix+"/{filename}", s.handlePDFServe)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleUpdateSession)
	mux.HandleFunc("POST /api/sessions/{id}/next", s.handleNextStep)
	mux.HandleFunc("POST /api/sessions/{id}/prev", s.handlePrevStep)
	mux.HandleFunc("POST /api/sessions/{id}/submit", s.handleSubmitSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}
	return s.instrument(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps every request in a span, a metrics observation and an
// access log line.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := observability.StartSpan(r.Context(), "http.request",
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r = r.WithContext(ctx)
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		span.SetAttributes(attribute.String("http.route", route), attribute.Int("http.status_code", rec.status))
		var spanErr error
		if rec.status >= 500 {
			spanErr = fmt.Errorf("status %d", rec.status)
		}
		observability.EndSpan(span, spanErr)
		s.metrics.Request(route, rec.status, elapsed)
		if route != "GET /metrics" && route != "GET /healthz" {
			s.log.Debug("request", "route", route, "status", rec.status, "duration_ms", elapsed.Milliseconds(), "remote", r.RemoteAddr)
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, draft.ErrNotFound):
		err = apperr.NotFound("Session not found")
	case errors.Is(err, form.ErrSubmitInFlight), errors.Is(err, form.ErrAlreadySubmitted):
		err = apperr.Conflict(errorMessage(err))
	case errors.Is(err, form.ErrNotLastStep):
		err = apperr.Validation(errorMessage(err), nil)
	}

	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal("unhandled error", err)
	}
	if ae.Code == apperr.CodeInternal || ae.Code == apperr.CodeUnavailable {
		s.log.Error("request failed", "code", ae.Code, "error", err)
	}
	payload := map[string]any{"success": false, "error": ae.Message}
	if ae.Code == apperr.CodeInternal {
		payload["error"] = "Internal server error"
	}
	if len(ae.Details) > 0 {
		payload["details"] = ae.Details
	}
	writeJSON(w, ae.Status, payload)
}

func errorMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	blob, err := readBody(w, r)
	if err != nil {
		return apperr.InvalidJSON(err)
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		return apperr.InvalidJSON(err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "status": "degraded", "error": "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok", "time": time.Now().UTC()})
}
