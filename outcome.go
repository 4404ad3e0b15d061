package valueset

import "strings"

// Outcome aggregates the issues raised by one operation, in the shape of
// an OperationOutcome. The zero value is ready to use.
type Outcome struct {
	Issues []Issue `json:"issues,omitempty"`
}

// Add appends an issue.
func (o *Outcome) Add(issue Issue) {
	o.Issues = append(o.Issues, issue)
}

// HasErrors reports whether any issue is error or fatal grade.
func (o *Outcome) HasErrors() bool {
	for _, i := range o.Issues {
		if i.IsError() {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error and fatal issues.
func (o *Outcome) ErrorCount() int {
	n := 0
	for _, i := range o.Issues {
		if i.IsError() {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning issues.
func (o *Outcome) WarningCount() int {
	n := 0
	for _, i := range o.Issues {
		if i.IsWarning() {
			n++
		}
	}
	return n
}

// Errors returns the error and fatal issues.
func (o *Outcome) Errors() []Issue {
	var out []Issue
	for _, i := range o.Issues {
		if i.IsError() {
			out = append(out, i)
		}
	}
	return out
}

// String renders all issues, one per line.
func (o *Outcome) String() string {
	if len(o.Issues) == 0 {
		return "no issues"
	}
	lines := make([]string, 0, len(o.Issues))
	for _, i := range o.Issues {
		lines = append(lines, i.String())
	}
	return strings.Join(lines, "\n")
}
