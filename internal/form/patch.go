package form

// Patch is a partial update. Nil fields are left untouched; the nested
// techReadiness and aiGoals objects merge at their own level.
type Patch struct {
	CompanyName   *string `json:"companyName,omitempty"`
	Industry      *string `json:"industry,omitempty"`
	EmployeeCount *string `json:"employeeCount,omitempty"`
	Revenue       *string `json:"revenue,omitempty"`
	Website       *string `json:"website,omitempty"`

	BusinessGoals      *[]string `json:"businessGoals,omitempty"`
	TimeConsumingTasks *[]string `json:"timeConsumingTasks,omitempty"`
	RepetitiveTaskTime *string   `json:"repetitiveTaskTime,omitempty"`

	TechReadiness *TechReadinessPatch `json:"techReadiness,omitempty"`
	AIGoals       *AIGoalsPatch       `json:"aiGoals,omitempty"`

	Email            *string `json:"email,omitempty"`
	FullName         *string `json:"fullName,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	PreferredContact *string `json:"preferredContact,omitempty"`
	MarketingConsent *bool   `json:"marketingConsent,omitempty"`
}

type TechReadinessPatch struct {
	CurrentTools *[]string `json:"currentTools,omitempty"`
	ComfortLevel *string   `json:"comfortLevel,omitempty"`
	Challenges   *[]string `json:"challenges,omitempty"`
}

type AIGoalsPatch struct {
	PrimaryObjective *string   `json:"primaryObjective,omitempty"`
	BudgetRange      *string   `json:"budgetRange,omitempty"`
	Timeline         *string   `json:"timeline,omitempty"`
	SpecificUseCases *[]string `json:"specificUseCases,omitempty"`
}

// Apply returns a copy of d with the patch merged in. d is not modified.
func (p Patch) Apply(d FormData) FormData {
	out := d.Clone()
	setString(&out.CompanyName, p.CompanyName)
	setString(&out.Industry, p.Industry)
	setString(&out.EmployeeCount, p.EmployeeCount)
	setString(&out.Revenue, p.Revenue)
	setString(&out.Website, p.Website)
	setList(&out.BusinessGoals, p.BusinessGoals)
	setList(&out.TimeConsumingTasks, p.TimeConsumingTasks)
	setString(&out.RepetitiveTaskTime, p.RepetitiveTaskTime)
	setString(&out.Email, p.Email)
	setString(&out.FullName, p.FullName)
	setString(&out.Phone, p.Phone)
	setString(&out.PreferredContact, p.PreferredContact)
	if p.MarketingConsent != nil {
		v := *p.MarketingConsent
		out.MarketingConsent = &v
	}

	if tp := p.TechReadiness; tp != nil {
		if out.TechReadiness == nil {
			out.TechReadiness = &TechReadiness{}
		}
		setList(&out.TechReadiness.CurrentTools, tp.CurrentTools)
		setString(&out.TechReadiness.ComfortLevel, tp.ComfortLevel)
		setList(&out.TechReadiness.Challenges, tp.Challenges)
	}
	if gp := p.AIGoals; gp != nil {
		if out.AIGoals == nil {
			out.AIGoals = &AIGoals{}
		}
		setString(&out.AIGoals.PrimaryObjective, gp.PrimaryObjective)
		setString(&out.AIGoals.BudgetRange, gp.BudgetRange)
		setString(&out.AIGoals.Timeline, gp.Timeline)
		setList(&out.AIGoals.SpecificUseCases, gp.SpecificUseCases)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *[]string, v *[]string) {
	if v != nil {
		*dst = cloneStrings(*v)
		if *dst == nil {
			*dst = []string{}
		}
	}
}
