package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joelkehle/readiness-audit/internal/form"
)

// MinimalPDF is a base64 one-page PDF used by the simulator.
const MinimalPDF = "JVBERi0xLjQKJcOkw7zDtsO4CjIgMCBvYmoKPDwKL0xlbmd0aCAzIDAgUgo+PgpzdHJlYW0KQnQKL0YxIDEyIFRmCjcyIDcyMCBUZAooSGVsbG8gV29ybGQhKSBUagpFVApzdHJlYW0KZW5kb2JqCjMgMCBvYmoKPDwKL1R5cGUgL0NhdGFsb2cKL1BhZ2VzIDQgMCBSCj4+CmVuZG9iago0IDAgb2JqCjw8Ci9UeXBlIC9QYWdlcwovS2lkcyBbNSAwIFJdCi9Db3VudCAxCj4+CmVuZG9iago1IDAgb2JqCjw8Ci9UeXBlIC9QYWdlCi9QYXJlbnQgNCAwIFIKL01lZGlhQm94IFswIDAgNjEyIDc5Ml0KL0NvbnRlbnRzIDIgMCBSCi9SZXNvdXJjZXMgPDwKL0ZvbnQgPDwKL0YxIDYgMCBSCj4+Cj4+Cj4+CmVuZG9iago2IDAgb2JqCjw8Ci9UeXBlIC9Gb250Ci9TdWJ0eXBlIC9UeXBlMQovQmFzZUZvbnQgL0hlbHZldGljYQo+PgplbmRvYmoKeHJlZgowIDcKMDAwMDAwMDAwMCA2NTUzNSBmIAowMDAwMDAwMDA5IDAwMDAwIG4gCjAwMDAwMDAwNzQgMDAwMDAgbiAKMDAwMDAwMDE3OCAwMDAwMCBuIAowMDAwMDAwMjI1IDAwMDAwIG4gCjAwMDAwMDAyODIgMDAwMDAgbiAKMDAwMDAwMDQzNCAwMDAwMCBuIAp0cmFpbGVyCjw8Ci9TaXplIDcKL1Jvb3QgMyAwIFIKPj4Kc3RhcnR4cmVmCjUzMQolJUVPRg=="

type IndustryInsights struct {
	CommonUseCases     []string `json:"commonUseCases"`
	AvgROI             int      `json:"avgROI"`
	ImplementationTime string   `json:"implementationTime"`
	Challenges         []string `json:"challenges"`
	Opportunities      []string `json:"opportunities"`
}

var industryInsights = map[string]IndustryInsights{
	"professional-services": {
		CommonUseCases:     []string{"Document automation", "Client communication", "Billing optimization"},
		AvgROI:             35,
		ImplementationTime: "2-4 months",
		Challenges:         []string{"Client confidentiality", "Regulatory compliance"},
		Opportunities:      []string{"Process standardization", "Client self-service portals"},
	},
	"healthcare": {
		CommonUseCases:     []string{"Appointment scheduling", "Patient follow-up", "Insurance processing"},
		AvgROI:             45,
		ImplementationTime: "3-6 months",
		Challenges:         []string{"HIPAA compliance", "Integration complexity"},
		Opportunities:      []string{"Patient experience", "Administrative efficiency"},
	},
	"retail": {
		CommonUseCases:     []string{"Inventory management", "Customer service", "Price optimization"},
		AvgROI:             40,
		ImplementationTime: "2-3 months",
		Challenges:         []string{"Seasonal variations", "Multi-channel complexity"},
		Opportunities:      []string{"Personalization", "Supply chain optimization"},
	},
	"manufacturing": {
		CommonUseCases:     []string{"Quality control", "Predictive maintenance", "Supply chain"},
		AvgROI:             50,
		ImplementationTime: "4-8 months",
		Challenges:         []string{"Legacy systems", "Safety requirements"},
		Opportunities:      []string{"Operational efficiency", "Predictive analytics"},
	},
	"real-estate": {
		CommonUseCases:     []string{"Lead qualification", "Property valuation", "Document processing"},
		AvgROI:             30,
		ImplementationTime: "2-4 months",
		Challenges:         []string{"Market volatility", "Regulatory changes"},
		Opportunities:      []string{"Customer experience", "Market analysis"},
	},
	"technology": {
		CommonUseCases:     []string{"Code review", "Customer support", "Data analysis"},
		AvgROI:             55,
		ImplementationTime: "1-3 months",
		Challenges:         []string{"Rapid technology changes", "Talent competition"},
		Opportunities:      []string{"Product innovation", "Development acceleration"},
	},
}

var defaultInsights = IndustryInsights{
	CommonUseCases:     []string{"Process automation", "Data analysis", "Customer service"},
	AvgROI:             35,
	ImplementationTime: "2-4 months",
	Challenges:         []string{"Change management", "Integration complexity"},
	Opportunities:      []string{"Efficiency gains", "Cost reduction"},
}

// InsightsFor returns the benchmark defaults for an industry slug.
func InsightsFor(industry string) IndustryInsights {
	if in, ok := industryInsights[strings.ToLower(strings.TrimSpace(industry))]; ok {
		return in
	}
	return defaultInsights
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ReportFilename is "<Company>_AI_Audit_Report.pdf" with non-alphanumerics
// replaced.
func ReportFilename(company string) string {
	if strings.TrimSpace(company) == "" {
		company = "Company"
	}
	return nonAlnum.ReplaceAllString(company, "_") + "_AI_Audit_Report.pdf"
}

// Simulator answers every dispatch with a canned report and a minimal PDF.
// It stands in for the real engine in local runs.
type Simulator struct {
	Delay time.Duration
	now   func() time.Time
}

func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{Delay: delay, now: time.Now}
}

func (s *Simulator) Dispatch(ctx context.Context, p form.Payload) (*AuditResponse, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ErrPending
		}
	}
	company := p.CompanyName
	if strings.TrimSpace(company) == "" {
		company = "your company"
	}
	insights := InsightsFor(p.Industry)
	size := float64(616)
	processing := float64(8500)
	return &AuditResponse{
		Success:      true,
		SubmissionID: p.SubmissionID,
		Report: &Report{
			ExecutiveSummary: fmt.Sprintf("Based on our analysis of %s, we've identified several key opportunities for AI implementation that could significantly improve operational efficiency and drive growth. Common use cases in your industry include %s.",
				company, strings.ToLower(strings.Join(insights.CommonUseCases, ", "))),
			AIReadinessScore: 75,
			IndustryBenchmark: IndustryBenchmark{
				Score:           68,
				Percentile:      82,
				IndustryAverage: 65,
			},
			Recommendations: []Recommendation{
				{
					Category:           "Process Automation",
					Priority:           "high",
					Title:              "Implement Document Processing Automation",
					Description:        "Automate repetitive document processing tasks using AI-powered tools.",
					EstimatedImpact:    "30% time savings",
					ImplementationTime: "2-3 months",
					EstimatedCost:      "$15,000 - $25,000",
				},
				{
					Category:           "Customer Service",
					Priority:           "medium",
					Title:              "Deploy AI Chatbot for Customer Support",
					Description:        "Implement an intelligent chatbot to handle common customer inquiries.",
					EstimatedImpact:    "40% reduction in support tickets",
					ImplementationTime: "1-2 months",
					EstimatedCost:      "$8,000 - $15,000",
				},
			},
			ImplementationRoadmap: []RoadmapPhase{
				{
					Phase:            1,
					Title:            "Foundation & Planning",
					Duration:         "4-6 weeks",
					Tasks:            []string{"Data audit and preparation", "Team training", "Tool selection"},
					ExpectedOutcomes: []string{"Clean data infrastructure", "Trained team", "Selected AI tools"},
				},
				{
					Phase:            2,
					Title:            "Implementation",
					Duration:         "8-12 weeks",
					Tasks:            []string{"Deploy automation tools", "Integrate systems", "Test workflows"},
					ExpectedOutcomes: []string{"Working AI systems", "Integrated workflows", "Tested processes"},
				},
			},
			ROIProjections: ROIProjections{
				TimeToBreakeven: "8-12 months",
				YearOneROI:      180,
				ThreeYearROI:    350,
				CostSavings: CostSavings{
					Annual: 45000,
					Breakdown: map[string]float64{
						"Labor Cost Reduction": 25000,
						"Process Efficiency":   15000,
						"Error Reduction":      5000,
					},
				},
			},
			RiskAssessment: RiskAssessment{
				OverallRisk: "low",
				Risks: []Risk{{
					Category:    "Technical",
					Level:       "low",
					Description: "Integration complexity with existing systems",
					Mitigation:  "Phased implementation approach with thorough testing",
				}},
			},
			NextSteps: []string{
				"Schedule a consultation to discuss implementation details",
				"Conduct a detailed data audit",
				"Begin team training on AI tools",
				"Start with pilot project in one department",
			},
			GeneratedAt: s.now().UTC().Format(time.RFC3339),
			Formats: Formats{
				PDF: &PDFFormat{
					Data:     MinimalPDF,
					Filename: ReportFilename(p.CompanyName),
					Size:     &size,
				},
			},
		},
		ProcessingTime: &processing,
	}, nil
}
