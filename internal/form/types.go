// Package form implements the readiness audit wizard: the form model, the
// completion scorer, the per-step validator and the wizard state machine.
package form

const TotalSteps = 5

const LastStep = TotalSteps - 1

var StepNames = [TotalSteps]string{
	"company_basics",
	"operations",
	"tech_readiness",
	"ai_goals",
	"contact",
}

type TechReadiness struct {
	CurrentTools []string `json:"currentTools,omitempty"`
	ComfortLevel string   `json:"comfortLevel,omitempty" validate:"omitempty,oneof=low medium high"`
	Challenges   []string `json:"challenges,omitempty"`
}

type AIGoals struct {
	PrimaryObjective string   `json:"primaryObjective,omitempty"`
	BudgetRange      string   `json:"budgetRange,omitempty"`
	Timeline         string   `json:"timeline,omitempty"`
	SpecificUseCases []string `json:"specificUseCases,omitempty"`
}

// FormData is the full wizard payload. Fields are optional until the step
// that owns them is validated.
type FormData struct {
	CompanyName   string `json:"companyName,omitempty" validate:"required"`
	Industry      string `json:"industry,omitempty" validate:"required"`
	EmployeeCount string `json:"employeeCount,omitempty" validate:"required"`
	Revenue       string `json:"revenue,omitempty"`
	Website       string `json:"website,omitempty"`

	BusinessGoals      []string `json:"businessGoals,omitempty" validate:"min=1"`
	TimeConsumingTasks []string `json:"timeConsumingTasks,omitempty" validate:"min=1"`
	RepetitiveTaskTime string   `json:"repetitiveTaskTime,omitempty"`

	TechReadiness *TechReadiness `json:"techReadiness,omitempty"`
	AIGoals       *AIGoals       `json:"aiGoals,omitempty"`

	Email            string `json:"email,omitempty" validate:"required"`
	FullName         string `json:"fullName,omitempty"`
	Phone            string `json:"phone,omitempty"`
	PreferredContact string `json:"preferredContact,omitempty" validate:"omitempty,oneof=email phone"`
	MarketingConsent *bool  `json:"marketingConsent,omitempty"`
}

// Payload is what gets dispatched to the workflow engine on final submit.
type Payload struct {
	FormData
	SubmissionID    string `json:"submissionId"`
	Timestamp       string `json:"timestamp"`
	CompletionScore int    `json:"completionScore"`
	CurrentStep     int    `json:"currentStep"`
	TotalSteps      int    `json:"totalSteps"`
}

func (d FormData) Clone() FormData {
	out := d
	out.BusinessGoals = cloneStrings(d.BusinessGoals)
	out.TimeConsumingTasks = cloneStrings(d.TimeConsumingTasks)
	if d.TechReadiness != nil {
		tr := *d.TechReadiness
		tr.CurrentTools = cloneStrings(tr.CurrentTools)
		tr.Challenges = cloneStrings(tr.Challenges)
		out.TechReadiness = &tr
	}
	if d.AIGoals != nil {
		g := *d.AIGoals
		g.SpecificUseCases = cloneStrings(g.SpecificUseCases)
		out.AIGoals = &g
	}
	if d.MarketingConsent != nil {
		v := *d.MarketingConsent
		out.MarketingConsent = &v
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
