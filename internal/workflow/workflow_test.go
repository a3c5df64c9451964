package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/readiness-audit/internal/form"
)

func testPayload() form.Payload {
	return form.Payload{
		FormData: form.FormData{
			CompanyName: "Acme Corp",
			Industry:    "technology",
			Email:       "a@acme.com",
		},
		SubmissionID:    "sub_1_abc",
		Timestamp:       "2026-01-01T00:00:00Z",
		CompletionScore: 56,
		CurrentStep:     5,
		TotalSteps:      5,
	}
}

func TestHTTPEngineDecodesReport(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		resp, _ := NewSimulator(0).Dispatch(r.Context(), testPayload())
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	resp, err := NewHTTPEngine(srv.URL, time.Second).Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 75.0, resp.Report.AIReadinessScore)

	// payload is flat: form fields next to the dispatch metadata
	assert.Equal(t, "Acme Corp", got["companyName"])
	assert.Equal(t, "sub_1_abc", got["submissionId"])
	assert.Equal(t, 5.0, got["totalSteps"])
}

func TestHTTPEngineNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow failed", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPEngine(srv.URL, time.Second).Dispatch(context.Background(), testPayload())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Status)
}

func TestHTTPEngineTimeoutIsPending(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPEngine(srv.URL, 50*time.Millisecond).Dispatch(context.Background(), testPayload())
	assert.ErrorIs(t, err, ErrPending)
}

func TestHTTPEngineNetworkErrorIsNotPending(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPEngine(url, time.Second).Dispatch(context.Background(), testPayload())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPending))
}

func TestHTTPEngineUndecodableBodyIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Workflow was started"))
	}))
	defer srv.Close()

	resp, err := NewHTTPEngine(srv.URL, time.Second).Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Report)
}

func TestSimulatorReturnsValidPDF(t *testing.T) {
	resp, err := NewSimulator(0).Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	require.NotNil(t, resp.Report.Formats.PDF)
	pdf, err := base64.StdEncoding.DecodeString(resp.Report.Formats.PDF.Data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, "Acme_Corp_AI_Audit_Report.pdf", resp.Report.Formats.PDF.Filename)
	assert.Contains(t, resp.Report.ExecutiveSummary, "code review")
}

func TestSimulatorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimulator(time.Hour).Dispatch(ctx, testPayload())
	assert.ErrorIs(t, err, ErrPending)
}

func TestInsightsFallback(t *testing.T) {
	assert.Equal(t, 50, InsightsFor("Manufacturing").AvgROI)
	assert.Equal(t, 35, InsightsFor("agriculture").AvgROI)
	assert.Equal(t, "Company_AI_Audit_Report.pdf", ReportFilename(""))
}

type mockMessager struct {
	mu        sync.Mutex
	responses []string
	calls     int
	err       error
}

func (m *mockMessager) New(_ context.Context, _ anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	text := m.responses[min(m.calls, len(m.responses)-1)]
	m.calls++
	return &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}}}, nil
}

const draftedReport = "```json\n" + `{
	"executiveSummary": "Acme is ready for targeted automation.",
	"aiReadinessScore": 62,
	"industryBenchmark": {"score": 62, "percentile": 70, "industryAverage": 55},
	"recommendations": [{"category": "Ops", "priority": "high", "title": "Automate intake", "description": "d", "estimatedImpact": "20%", "implementationTime": "1 month", "estimatedCost": "$5k"}],
	"implementationRoadmap": [{"phase": 1, "title": "Pilot", "duration": "6 weeks", "tasks": ["a"], "expectedOutcomes": ["b"]}],
	"roiProjections": {"timeToBreakeven": "6 months", "yearOneROI": 120, "threeYearROI": 300, "costSavings": {"annual": 20000, "breakdown": {"Labor": 20000}}},
	"riskAssessment": {"overallRisk": "medium", "risks": [{"category": "Data", "level": "medium", "description": "d", "mitigation": "m"}]},
	"nextSteps": ["Book a call"]
}` + "\n```"

func TestAnthropicEngineRetriesBadJSON(t *testing.T) {
	m := &mockMessager{responses: []string{"not json", draftedReport}}
	resp, err := NewAnthropicEngine(m).Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, m.calls)
	assert.Equal(t, 62.0, resp.Report.AIReadinessScore)
	assert.NotEmpty(t, resp.Report.GeneratedAt)
	assert.Nil(t, resp.Report.Formats.PDF)
}

func TestAnthropicEngineGivesUpAfterAttempts(t *testing.T) {
	m := &mockMessager{responses: []string{`{"aiReadinessScore": 400}`}}
	resp, err := NewAnthropicEngine(m).Dispatch(context.Background(), testPayload())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, maxContentAttempts, m.calls)
	assert.NotEmpty(t, resp.Error)
}

func TestAnthropicEngineTransportError(t *testing.T) {
	m := &mockMessager{err: errors.New("connection reset")}
	_, err := NewAnthropicEngine(m).Dispatch(context.Background(), testPayload())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPending))
}

func TestAnthropicEngineFromEnvRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewAnthropicEngineFromEnv()
	assert.Error(t, err)
}

func TestReportPromptCarriesAnswersAndInsights(t *testing.T) {
	prompt, err := buildReportPrompt(testPayload())
	require.NoError(t, err)
	assert.Contains(t, prompt, `"companyName": "Acme Corp"`)
	assert.Contains(t, prompt, "Industry reference data:")
	for _, useCase := range InsightsFor("technology").CommonUseCases {
		assert.Contains(t, prompt, useCase)
	}
}
