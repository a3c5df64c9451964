// Package reconcile matches asynchronous engine callbacks to the audit
// submission that produced them.
package reconcile

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/joelkehle/readiness-audit/internal/apperr"
	"github.com/joelkehle/readiness-audit/internal/logger"
	"github.com/joelkehle/readiness-audit/internal/observability"
	"github.com/joelkehle/readiness-audit/internal/store"
)

type Strategy string

const (
	ByCorrelationID Strategy = "correlation_id"
	ByEmailCompany  Strategy = "email_company"
	ByCompanyRecent Strategy = "company_recent"
)

const DefaultWindow = 24 * time.Hour

type Finder interface {
	FindSubmissions(ctx context.Context, f store.SubmissionFilter) ([]store.Submission, error)
}

// Keys are whatever identifiers the callback carried. Any may be empty.
type Keys struct {
	SubmissionID string
	Email        string
	CompanyName  string
}

type Match struct {
	Submission store.Submission
	Strategy   Strategy
}

type Reconciler struct {
	finder  Finder
	window  time.Duration
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics
}

type Option func(*Reconciler)

func WithWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func New(finder Finder, log *logger.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		finder: finder,
		window: DefaultWindow,
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve tries each strategy in priority order and returns the newest
// submission of the first strategy that finds anything.
func (r *Reconciler) Resolve(ctx context.Context, k Keys) (Match, error) {
	ctx, span := observability.StartSpan(ctx, "reconcile.resolve")
	k = Keys{
		SubmissionID: strings.TrimSpace(k.SubmissionID),
		Email:        strings.TrimSpace(k.Email),
		CompanyName:  strings.TrimSpace(k.CompanyName),
	}

	for _, attempt := range r.plan(k) {
		subs, err := r.finder.FindSubmissions(ctx, attempt.filter)
		if err != nil {
			err = apperr.Internal("resolve submission", err)
			observability.EndSpan(span, err)
			return Match{}, err
		}
		if len(subs) == 0 {
			continue
		}
		m := Match{Submission: subs[0], Strategy: attempt.strategy}
		r.log.Info("callback resolved",
			"strategy", string(m.Strategy),
			"submission_id", m.Submission.ID,
			"correlation_id", k.SubmissionID,
			"email", k.Email,
			"company", k.CompanyName)
		r.metrics.Reconciled(string(m.Strategy))
		span.SetAttributes(attribute.String("reconcile.strategy", string(m.Strategy)))
		observability.EndSpan(span, nil)
		return m, nil
	}

	r.log.Warn("callback unresolved",
		"correlation_id", k.SubmissionID,
		"email", k.Email,
		"company", k.CompanyName)
	r.metrics.Reconciled("none")
	err := apperr.NotFound("audit submission not found")
	observability.EndSpan(span, err)
	return Match{}, err
}

type attempt struct {
	strategy Strategy
	filter   store.SubmissionFilter
}

func (r *Reconciler) plan(k Keys) []attempt {
	var out []attempt
	if k.SubmissionID != "" {
		out = append(out, attempt{ByCorrelationID, store.SubmissionFilter{CorrelationID: k.SubmissionID, Limit: 1}})
	}
	if k.Email != "" && k.CompanyName != "" {
		out = append(out, attempt{ByEmailCompany, store.SubmissionFilter{Email: k.Email, CompanyName: k.CompanyName, Limit: 1}})
	}
	if k.CompanyName != "" {
		out = append(out, attempt{ByCompanyRecent, store.SubmissionFilter{
			CompanyName:  k.CompanyName,
			CreatedSince: r.now().Add(-r.window),
			Limit:        1,
		}})
	}
	return out
}
