// Package workflow talks to the external report-generation engine and
// provides local engines that produce the same response shape.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/joelkehle/readiness-audit/internal/form"
)

// Engine generates an audit report for a submitted payload.
type Engine interface {
	Dispatch(ctx context.Context, p form.Payload) (*AuditResponse, error)
}

// ErrPending is returned when the engine did not answer within the
// dispatch timeout. The submission is treated as accepted.
var ErrPending = errors.New("workflow engine did not respond in time")

// StatusError is an engine that answered with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("workflow engine returned status %d: %s", e.Status, e.Body)
}

type AuditResponse struct {
	Success        bool     `json:"success"`
	SubmissionID   string   `json:"submissionId"`
	Report         *Report  `json:"report,omitempty" validate:"omitempty"`
	Error          string   `json:"error,omitempty"`
	ProcessingTime *float64 `json:"processingTime,omitempty"`
}

type Report struct {
	ExecutiveSummary      string            `json:"executiveSummary"`
	AIReadinessScore      float64           `json:"aiReadinessScore" validate:"gte=0,lte=100"`
	IndustryBenchmark     IndustryBenchmark `json:"industryBenchmark"`
	Recommendations       []Recommendation  `json:"recommendations" validate:"dive"`
	ImplementationRoadmap []RoadmapPhase    `json:"implementationRoadmap"`
	ROIProjections        ROIProjections    `json:"roiProjections"`
	RiskAssessment        RiskAssessment    `json:"riskAssessment"`
	NextSteps             []string          `json:"nextSteps"`
	GeneratedAt           string            `json:"generatedAt"`
	Formats               Formats           `json:"formats"`
}

type IndustryBenchmark struct {
	Score           float64 `json:"score"`
	Percentile      float64 `json:"percentile"`
	IndustryAverage float64 `json:"industryAverage"`
}

type Recommendation struct {
	Category           string `json:"category"`
	Priority           string `json:"priority" validate:"oneof=high medium low"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	EstimatedImpact    string `json:"estimatedImpact"`
	ImplementationTime string `json:"implementationTime"`
	EstimatedCost      string `json:"estimatedCost"`
}

type RoadmapPhase struct {
	Phase            int      `json:"phase"`
	Title            string   `json:"title"`
	Duration         string   `json:"duration"`
	Tasks            []string `json:"tasks"`
	ExpectedOutcomes []string `json:"expectedOutcomes"`
}

type ROIProjections struct {
	TimeToBreakeven string      `json:"timeToBreakeven"`
	YearOneROI      float64     `json:"yearOneROI"`
	ThreeYearROI    float64     `json:"threeYearROI"`
	CostSavings     CostSavings `json:"costSavings"`
}

type CostSavings struct {
	Annual    float64            `json:"annual"`
	Breakdown map[string]float64 `json:"breakdown"`
}

type RiskAssessment struct {
	OverallRisk string `json:"overallRisk" validate:"omitempty,oneof=low medium high"`
	Risks       []Risk `json:"risks" validate:"dive"`
}

type Risk struct {
	Category    string `json:"category"`
	Level       string `json:"level" validate:"oneof=low medium high"`
	Description string `json:"description"`
	Mitigation  string `json:"mitigation"`
}

type Formats struct {
	PDF      *PDFFormat      `json:"pdf,omitempty"`
	HTML     *HTMLFormat     `json:"html,omitempty"`
	Markdown *MarkdownFormat `json:"markdown,omitempty"`
}

type PDFFormat struct {
	Data     string   `json:"data,omitempty"`
	URL      string   `json:"url,omitempty"`
	Filename string   `json:"filename"`
	Size     *float64 `json:"size,omitempty"`
}

type HTMLFormat struct {
	Content string `json:"content"`
	Title   string `json:"title"`
}

type MarkdownFormat struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
}
