package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/form"
)

var outcomeMessages = map[form.Outcome]string{
	form.OutcomeReport:   "Your AI readiness report is ready",
	form.OutcomeAccepted: "Audit submitted. Your report will be delivered by email",
	form.OutcomePending:  "Audit submitted. Report generation is taking longer than usual",
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var p form.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	sess := s.wizard.NewSession(uuid.NewString())
	s.wizard.Update(sess, p)
	if err := s.drafts.Save(r.Context(), sess); err != nil {
		s.writeError(w, apperr.Internal("save session", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "session": sess})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.drafts.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": sess})
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.drafts.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sess.Submitted {
		s.writeError(w, form.ErrAlreadySubmitted)
		return
	}
	var p form.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	s.wizard.Update(sess, p)
	s.saveAndRespond(w, r, sess, http.StatusOK)
}

func (s *Server) handleNextStep(w http.ResponseWriter, r *http.Request) {
	sess, err := s.drafts.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !s.wizard.Next(sess) {
		if err := s.drafts.Save(r.Context(), sess); err != nil {
			s.writeError(w, apperr.Internal("save session", err))
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Current step is not valid",
			"details": sess.Errors,
			"session": sess,
		})
		return
	}
	s.saveAndRespond(w, r, sess, http.StatusOK)
}

func (s *Server) handlePrevStep(w http.ResponseWriter, r *http.Request) {
	sess, err := s.drafts.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.wizard.Prev(sess)
	s.saveAndRespond(w, r, sess, http.StatusOK)
}

func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.drafts.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	outcome, err := s.wizard.Submit(r.Context(), sess)
	if err != nil && !errors.Is(err, form.ErrSubmitInFlight) && !errors.Is(err, form.ErrAlreadySubmitted) {
		if saveErr := s.drafts.Save(r.Context(), sess); saveErr != nil {
			s.log.Error("saving session after failed submit", "session_id", sess.ID, "error", saveErr)
		}
	}
	if err != nil {
		s.metrics.Submission("failed")
		switch {
		case errors.Is(err, form.ErrStepInvalid):
			err = apperr.Validation("Current step is not valid", sess.Errors)
		case errors.Is(err, form.ErrSubmitInFlight), errors.Is(err, form.ErrAlreadySubmitted), errors.Is(err, form.ErrNotLastStep):
		default:
			if _, ok := apperr.As(err); !ok {
				err = apperr.Unavailable("Could not reach the report service, please try again", err)
			}
		}
		s.writeError(w, err)
		return
	}

	s.metrics.Submission(string(outcome))
	if err := s.drafts.Save(r.Context(), sess); err != nil {
		s.log.Error("saving submitted session", "session_id", sess.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"outcome":      outcome,
		"submissionId": sess.CorrelationID,
		"message":      outcomeMessages[outcome],
		"session":      sess,
	})
}

func (s *Server) saveAndRespond(w http.ResponseWriter, r *http.Request, sess *form.Session, status int) {
	if err := s.drafts.Save(r.Context(), sess); err != nil {
		s.writeError(w, apperr.Internal("save session", err))
		return
	}
	writeJSON(w, status, map[string]any{"success": true, "session": sess})
}
