package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joelkehle/readiness-audit/internal/workflow"
)

// MarkdownFromReport lays a structured report out as markdown.
func MarkdownFromReport(company string, r workflow.Report) string {
	var b strings.Builder
	title := "AI Readiness Audit"
	if strings.TrimSpace(company) != "" {
		title += ": " + company
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(strings.TrimSpace(r.ExecutiveSummary) + "\n\n")

	b.WriteString("## Readiness Score\n\n")
	b.WriteString("| Measure | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| AI readiness score | %.0f / 100 |\n", r.AIReadinessScore)
	fmt.Fprintf(&b, "| Industry benchmark | %.0f |\n", r.IndustryBenchmark.Score)
	fmt.Fprintf(&b, "| Industry average | %.0f |\n", r.IndustryBenchmark.IndustryAverage)
	fmt.Fprintf(&b, "| Percentile | %.0f |\n\n", r.IndustryBenchmark.Percentile)

	if len(r.Recommendations) > 0 {
		b.WriteString("## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "### %s (%s priority)\n\n", rec.Title, rec.Priority)
			if rec.Category != "" {
				fmt.Fprintf(&b, "*%s*\n\n", rec.Category)
			}
			b.WriteString(rec.Description + "\n\n")
			fmt.Fprintf(&b, "- Estimated impact: %s\n- Implementation time: %s\n- Estimated cost: %s\n\n",
				rec.EstimatedImpact, rec.ImplementationTime, rec.EstimatedCost)
		}
	}

	if len(r.ImplementationRoadmap) > 0 {
		b.WriteString("## Implementation Roadmap\n\n")
		for _, phase := range r.ImplementationRoadmap {
			fmt.Fprintf(&b, "### Phase %d: %s (%s)\n\n", phase.Phase, phase.Title, phase.Duration)
			writeList(&b, "Tasks", phase.Tasks)
			writeList(&b, "Expected outcomes", phase.ExpectedOutcomes)
		}
	}

	roi := r.ROIProjections
	if roi.TimeToBreakeven != "" || roi.CostSavings.Annual > 0 {
		b.WriteString("## ROI Projections\n\n")
		fmt.Fprintf(&b, "- Time to breakeven: %s\n- Year one ROI: %.0f%%\n- Three year ROI: %.0f%%\n- Annual savings: $%s\n\n",
			roi.TimeToBreakeven, roi.YearOneROI, roi.ThreeYearROI, groupThousands(roi.CostSavings.Annual))
		if len(roi.CostSavings.Breakdown) > 0 {
			labels := make([]string, 0, len(roi.CostSavings.Breakdown))
			for k := range roi.CostSavings.Breakdown {
				labels = append(labels, k)
			}
			sort.Strings(labels)
			b.WriteString("| Source | Annual savings |\n|---|---|\n")
			for _, k := range labels {
				fmt.Fprintf(&b, "| %s | $%s |\n", k, groupThousands(roi.CostSavings.Breakdown[k]))
			}
			b.WriteString("\n")
		}
	}

	if ra := r.RiskAssessment; ra.OverallRisk != "" || len(ra.Risks) > 0 {
		b.WriteString("## Risk Assessment\n\n")
		if ra.OverallRisk != "" {
			fmt.Fprintf(&b, "Overall risk: **%s**\n\n", ra.OverallRisk)
		}
		for _, risk := range ra.Risks {
			fmt.Fprintf(&b, "- **%s** (%s): %s Mitigation: %s\n", risk.Category, risk.Level, risk.Description, risk.Mitigation)
		}
		b.WriteString("\n")
	}

	if len(r.NextSteps) > 0 {
		b.WriteString("## Next Steps\n\n")
		for i, step := range r.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func groupThousands(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
