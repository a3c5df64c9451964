package form

import "math"

type stepFields struct {
	weight   float64
	required []string
	optional []string
}

var scoredSteps = [TotalSteps]stepFields{
	{weight: 25, required: []string{"companyName", "industry", "employeeCount"}, optional: []string{"revenue", "website"}},
	{weight: 25, required: []string{"businessGoals", "timeConsumingTasks"}, optional: []string{"repetitiveTaskTime"}},
	{weight: 15, optional: []string{"techReadiness"}},
	{weight: 15, optional: []string{"aiGoals"}},
	{weight: 20, required: []string{"email"}, optional: []string{"fullName", "phone", "preferredContact", "marketingConsent"}},
}

// Score returns the completion percentage of d in [0,100].
func Score(d FormData) int {
	return ScoreFields(d.Fields())
}

// ScoreFields scores an already-flattened field map. Required fields share
// 80% of a step's weight and optional fields the remaining 20%; a step
// without required fields gives its optional fields the whole weight.
func ScoreFields(fields map[string]Value) int {
	total := 0.0
	for _, st := range scoredSteps {
		total += st.score(fields)
	}
	return int(math.Round(math.Max(0, math.Min(100, total))))
}

func (s stepFields) score(fields map[string]Value) float64 {
	if len(s.required) == 0 {
		if len(s.optional) == 0 {
			return 0
		}
		return s.weight / float64(len(s.optional)) * float64(countCompleted(fields, s.optional))
	}
	out := s.weight * 0.8 / float64(len(s.required)) * float64(countCompleted(fields, s.required))
	if len(s.optional) > 0 {
		out += s.weight * 0.2 / float64(len(s.optional)) * float64(countCompleted(fields, s.optional))
	}
	return out
}

func countCompleted(fields map[string]Value, names []string) int {
	n := 0
	for _, name := range names {
		if Completed(fields[name]) {
			n++
		}
	}
	return n
}
