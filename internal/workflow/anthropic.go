package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-playground/validator/v10"

	"github.com/joelkehle/readiness-audit/internal/form"
)

const systemPrompt = "You are an AI adoption consultant writing a readiness audit for a small or mid-sized business. Respond with strict JSON only."

const maxContentAttempts = 3

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicEngine drafts the structured report with Claude. It leaves
// Formats empty; the caller renders the PDF.
type AnthropicEngine struct {
	messages AnthropicMessager
	validate *validator.Validate
	now      func() time.Time
}

func NewAnthropicEngine(m AnthropicMessager) *AnthropicEngine {
	return &AnthropicEngine{messages: m, validate: validator.New(), now: time.Now}
}

func NewAnthropicEngineFromEnv() (*AnthropicEngine, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicEngine(&c.Messages), nil
}

func (e *AnthropicEngine) Dispatch(ctx context.Context, p form.Payload) (*AuditResponse, error) {
	prompt, err := buildReportPrompt(p)
	if err != nil {
		return nil, err
	}
	start := e.now()
	feedback := ""
	var lastErr error
	for attempt := 1; attempt <= maxContentAttempts; attempt++ {
		full := prompt
		if feedback != "" {
			full += "\n\n" + feedback
		}
		raw, err := e.generate(ctx, full)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrPending
			}
			return nil, fmt.Errorf("anthropic request: %w", err)
		}

		var report Report
		if err := json.Unmarshal([]byte(stripCodeFences(raw)), &report); err != nil {
			lastErr = fmt.Errorf("parse report json: %w", err)
			feedback = "Your previous response was not valid JSON. Respond with only valid JSON."
			continue
		}
		if err := e.validate.Struct(report); err != nil {
			lastErr = fmt.Errorf("report failed validation: %w", err)
			feedback = fmt.Sprintf("Your response failed validation: %s. Fix these issues.", err)
			continue
		}
		report.GeneratedAt = e.now().UTC().Format(time.RFC3339)
		report.Formats = Formats{}
		elapsed := float64(e.now().Sub(start).Milliseconds())
		return &AuditResponse{
			Success:        true,
			SubmissionID:   p.SubmissionID,
			Report:         &report,
			ProcessingTime: &elapsed,
		}, nil
	}
	return &AuditResponse{
		Success:      false,
		SubmissionID: p.SubmissionID,
		Error:        lastErr.Error(),
	}, nil
}

func (e *AnthropicEngine) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := e.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   8192,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

func buildReportPrompt(p form.Payload) (string, error) {
	answers, err := json.MarshalIndent(p.FormData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	insights, err := json.MarshalIndent(InsightsFor(p.Industry), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode industry insights: %w", err)
	}

	var b strings.Builder
	b.WriteString("Write an AI readiness audit for the company described by these questionnaire answers.\n\n")
	b.WriteString("Answers:\n")
	b.Write(answers)
	b.WriteString("\n\nIndustry reference data:\n")
	b.Write(insights)
	b.WriteString("\n\nReturn one JSON object with these keys:\n")
	b.WriteString(`executiveSummary (string), aiReadinessScore (number 0-100),
industryBenchmark {score, percentile, industryAverage},
recommendations [{category, priority (high|medium|low), title, description, estimatedImpact, implementationTime, estimatedCost}],
implementationRoadmap [{phase (int), title, duration, tasks [string], expectedOutcomes [string]}],
roiProjections {timeToBreakeven, yearOneROI, threeYearROI, costSavings {annual, breakdown {label: number}}},
riskAssessment {overallRisk (low|medium|high), risks [{category, level (low|medium|high), description, mitigation}]},
nextSteps [string]`)
	b.WriteString("\n\nRespond with only valid JSON matching the schema.")
	return b.String(), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		parts := strings.SplitN(s, "\n", 2)
		if len(parts) == 2 {
			s = parts[1]
		}
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
