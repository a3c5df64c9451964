package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/readiness-audit/internal/form"
	"github.com/joelkehle/readiness-audit/internal/workflow"
)

func simulatedReport(t *testing.T) workflow.Report {
	t.Helper()
	resp, err := workflow.NewSimulator(0).Dispatch(context.Background(), form.Payload{
		FormData: form.FormData{CompanyName: "Acme", Industry: "retail"},
	})
	require.NoError(t, err)
	return *resp.Report
}

func TestMarkdownFromReportSections(t *testing.T) {
	md := MarkdownFromReport("Acme", simulatedReport(t))
	for _, want := range []string{
		"# AI Readiness Audit: Acme",
		"## Executive Summary",
		"| AI readiness score | 75 / 100 |",
		"### Implement Document Processing Automation (high priority)",
		"### Phase 1: Foundation & Planning (4-6 weeks)",
		"- Annual savings: $45,000",
		"| Error Reduction | $5,000 |",
		"Overall risk: **low**",
		"1. Schedule a consultation",
	} {
		assert.Contains(t, md, want)
	}
}

func TestBuildHTMLFromMarkdown(t *testing.T) {
	score := 75.0
	doc := Document{
		Company:     "Acme <Inc>",
		Score:       &score,
		OverallRisk: "Medium",
		GeneratedAt: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Markdown:    MarkdownFromReport("Acme", simulatedReport(t)),
	}
	out, err := BuildHTML(doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Acme &lt;Inc&gt;")
	assert.Contains(t, out, "Readiness 75/100")
	assert.Contains(t, out, "risk-medium")
	assert.Contains(t, out, "February 3, 2026")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `data-page-break-before="true">Implementation Roadmap</h2>`)
}

func TestBuildHTMLFallsBackToHTMLContent(t *testing.T) {
	out, err := BuildHTML(Document{HTML: "<h2>Next Steps</h2><p>Call us</p>"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `data-page-break-before="true">Next Steps</h2>`))

	_, err = BuildHTML(Document{})
	assert.Error(t, err)
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0))
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,000", groupThousands(1000))
	assert.Equal(t, "1,234,567", groupThousands(1234567))
	assert.Equal(t, "-45,000", groupThousands(-45000))
}
