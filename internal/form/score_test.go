package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool { return &v }

func fullFormData() FormData {
	return FormData{
		CompanyName:        "Acme Corp",
		Industry:           "Technology",
		EmployeeCount:      "11-50",
		Revenue:            "$1M-$5M",
		Website:            "https://acme.example.com",
		BusinessGoals:      []string{"Reduce costs"},
		TimeConsumingTasks: []string{"Data entry"},
		RepetitiveTaskTime: "10-20 hours",
		TechReadiness:      &TechReadiness{ComfortLevel: "medium"},
		AIGoals:            &AIGoals{PrimaryObjective: "Automation"},
		Email:              "jane@acme.com",
		FullName:           "Jane Doe",
		Phone:              "555-0100",
		PreferredContact:   "email",
		MarketingConsent:   boolPtr(false),
	}
}

func acmeFormData() FormData {
	return FormData{
		CompanyName:        "Acme",
		Industry:           "Technology",
		EmployeeCount:      "11-50",
		BusinessGoals:      []string{"Reduce costs"},
		TimeConsumingTasks: []string{"Data entry"},
		Email:              "a@acme.com",
	}
}

func TestScoreEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0, Score(FormData{}))
}

func TestScoreFullIsHundred(t *testing.T) {
	assert.Equal(t, 100, Score(fullFormData()))
}

func TestScoreAcmeScenario(t *testing.T) {
	// 20 (step 0 required) + 20 (step 1 required) + 16 (email)
	assert.Equal(t, 56, Score(acmeFormData()))
}

func TestScoreIdempotent(t *testing.T) {
	d := acmeFormData()
	assert.Equal(t, Score(d), Score(d))
}

func TestScoreMonotonicWhenFieldsAreAdded(t *testing.T) {
	patches := []Patch{
		{CompanyName: strPtr("Acme")},
		{Industry: strPtr("Retail")},
		{EmployeeCount: strPtr("1-10")},
		{Revenue: strPtr("<$1M")},
		{BusinessGoals: &[]string{"Grow"}},
		{TechReadiness: &TechReadinessPatch{Challenges: &[]string{"Budget"}}},
		{AIGoals: &AIGoalsPatch{Timeline: strPtr("6 months")}},
		{Email: strPtr("x@y.z")},
		{MarketingConsent: boolPtr(true)},
	}
	d := FormData{}
	prev := Score(d)
	for _, p := range patches {
		d = p.Apply(d)
		next := Score(d)
		assert.GreaterOrEqual(t, next, prev)
		assert.LessOrEqual(t, next, 100)
		prev = next
	}
}

func TestScoreIgnoresBlankValues(t *testing.T) {
	d := FormData{
		CompanyName:   "   ",
		BusinessGoals: []string{},
		TechReadiness: &TechReadiness{},
		AIGoals:       &AIGoals{SpecificUseCases: []string{}},
	}
	assert.Equal(t, 0, Score(d))
}

func TestScoreOptionalOnlyStepGetsFullWeight(t *testing.T) {
	d := FormData{TechReadiness: &TechReadiness{CurrentTools: []string{"Excel"}}}
	assert.Equal(t, 15, Score(d))
}

func TestMarketingConsentFalseCountsAsComplete(t *testing.T) {
	withConsent := FormData{MarketingConsent: boolPtr(false)}
	// 20 * 0.2 / 4 = 1
	assert.Equal(t, 1, Score(withConsent))
}

func TestCompletedShapes(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"absent", nil, false},
		{"blank text", Text("  "), false},
		{"text", Text("x"), true},
		{"empty list", List{}, false},
		{"list", List{Text("")}, true},
		{"false flag", Flag(false), true},
		{"empty record", Record{}, false},
		{"record of blanks", Record{"a": Text(""), "b": List{}}, false},
		{"nested record", Record{"a": Record{"b": Text("y")}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Completed(tc.v))
		})
	}
}

func TestScoreFieldsClampsAndHandlesUnknownKeys(t *testing.T) {
	fields := map[string]Value{"unknown": Text("x"), "companyName": Text("Acme")}
	got := ScoreFields(fields)
	assert.GreaterOrEqual(t, got, 0)
	assert.LessOrEqual(t, got, 100)
	assert.Equal(t, 7, got)
}

func strPtr(s string) *string { return &s }
