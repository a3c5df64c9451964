package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Result is the outcome of validating one step or a whole submission.
// Errors is keyed by dotted JSON path.
type Result struct {
	Valid  bool              `json:"isValid"`
	Errors map[string]string `json:"validationErrors"`
}

var stepOwnedFields = [TotalSteps][]string{
	{"CompanyName", "Industry", "EmployeeCount", "Revenue", "Website"},
	{"BusinessGoals", "TimeConsumingTasks", "RepetitiveTaskTime"},
	{},
	{},
	{"Email", "FullName", "Phone", "PreferredContact"},
}

var fieldMessages = map[string]string{
	"companyName/required":             "Company name is required",
	"industry/required":                "Industry is required",
	"employeeCount/required":           "Employee count is required",
	"businessGoals/min":                "Select at least one business goal",
	"timeConsumingTasks/min":           "Add at least one time-consuming task",
	"email/required":                   "Email is required",
	"techReadiness.comfortLevel/oneof": "Comfort level must be one of: low, medium, high",
	"preferredContact/oneof":           "Preferred contact must be one of: email, phone",
}

var validate = NewValidator()

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStep checks only the fields the given step owns. Steps 2 and 3
// have no hard requirements. Out-of-range steps validate as the nearest step.
func ValidateStep(d FormData, step int) Result {
	step = clampStep(step)
	owned := map[string]bool{}
	for _, name := range stepOwnedFields[step] {
		owned[name] = true
	}
	if len(owned) == 0 {
		return Result{Valid: true, Errors: map[string]string{}}
	}
	return collect(validate.Struct(d), func(fe validator.FieldError) bool {
		return owned[topLevelField(fe.StructNamespace())]
	})
}

// ValidateSubmission checks the full payload, including enum fields.
func ValidateSubmission(d FormData) Result {
	return collect(validate.Struct(d), func(validator.FieldError) bool { return true })
}

func collect(err error, keep func(validator.FieldError) bool) Result {
	res := Result{Valid: true, Errors: map[string]string{}}
	if err == nil {
		return res
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.Valid = false
		res.Errors["_"] = err.Error()
		return res
	}
	for _, fe := range verrs {
		if !keep(fe) {
			continue
		}
		path := FieldPath(fe)
		if _, seen := res.Errors[path]; !seen {
			res.Errors[path] = Message(fe)
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// FieldPath converts a validator namespace ("FormData.techReadiness.comfortLevel")
// into a dotted JSON path without the root type.
func FieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Message returns the human-readable message for a field error.
func Message(fe validator.FieldError) string {
	if msg, ok := fieldMessages[FieldPath(fe)+"/"+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Invalid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must have at least %s item(s)", fe.Field(), fe.Param())
	default:
		return "Validation error"
	}
}

func topLevelField(structNamespace string) string {
	parts := strings.SplitN(structNamespace, ".", 3)
	if len(parts) < 2 {
		return structNamespace
	}
	return parts[1]
}

func clampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step > LastStep {
		return LastStep
	}
	return step
}
