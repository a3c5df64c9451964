package form

import "strings"

// Value is the closed set of shapes a form field can take. A nil Value is
// an absent field.
type Value interface {
	isValue()
}

type (
	Text   string
	List   []Value
	Flag   bool
	Record map[string]Value
)

func (Text) isValue()   {}
func (List) isValue()   {}
func (Flag) isValue()   {}
func (Record) isValue() {}

// Completed reports whether v counts as filled in: non-blank text, a
// non-empty list, any flag, or a record with at least one completed value.
func Completed(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Text:
		return strings.TrimSpace(string(t)) != ""
	case List:
		return len(t) > 0
	case Flag:
		return true
	case Record:
		for _, inner := range t {
			if Completed(inner) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Fields flattens d into top-level field values keyed by JSON name.
func (d FormData) Fields() map[string]Value {
	f := map[string]Value{
		"companyName":        Text(d.CompanyName),
		"industry":           Text(d.Industry),
		"employeeCount":      Text(d.EmployeeCount),
		"revenue":            Text(d.Revenue),
		"website":            Text(d.Website),
		"businessGoals":      textList(d.BusinessGoals),
		"timeConsumingTasks": textList(d.TimeConsumingTasks),
		"repetitiveTaskTime": Text(d.RepetitiveTaskTime),
		"email":              Text(d.Email),
		"fullName":           Text(d.FullName),
		"phone":              Text(d.Phone),
		"preferredContact":   Text(d.PreferredContact),
	}
	if tr := d.TechReadiness; tr != nil {
		f["techReadiness"] = Record{
			"currentTools": textList(tr.CurrentTools),
			"comfortLevel": Text(tr.ComfortLevel),
			"challenges":   textList(tr.Challenges),
		}
	}
	if g := d.AIGoals; g != nil {
		f["aiGoals"] = Record{
			"primaryObjective": Text(g.PrimaryObjective),
			"budgetRange":      Text(g.BudgetRange),
			"timeline":         Text(g.Timeline),
			"specificUseCases": textList(g.SpecificUseCases),
		}
	}
	if d.MarketingConsent != nil {
		f["marketingConsent"] = Flag(*d.MarketingConsent)
	}
	return f
}

func textList(items []string) Value {
	if items == nil {
		return nil
	}
	out := make(List, len(items))
	for i, s := range items {
		out[i] = Text(s)
	}
	return out
}
