package valueset

// IssueSeverity grades an operation issue.
// Maps to OperationOutcome.issue.severity in FHIR.
type IssueSeverity string

const (
	// SeverityFatal indicates the operation could not complete.
	SeverityFatal IssueSeverity = "fatal"
	// SeverityError indicates the operation failed for the affected item.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a condition the caller should review.
	SeverityWarning IssueSeverity = "warning"
	// SeverityInformation indicates informational feedback.
	SeverityInformation IssueSeverity = "information"
)

// IssueType classifies an operation issue.
// Maps to OperationOutcome.issue.code in FHIR.
type IssueType string

const (
	// IssueTypeCodeInvalid indicates a code was not valid in context.
	IssueTypeCodeInvalid IssueType = "code-invalid"
	// IssueTypeNotFound indicates a referenced system or value set is unknown.
	IssueTypeNotFound IssueType = "not-found"
	// IssueTypeNotSupported indicates the operation is not supported by
	// the value set variant.
	IssueTypeNotSupported IssueType = "not-supported"
	// IssueTypeTooCostly indicates an expansion exceeded its size cap.
	IssueTypeTooCostly IssueType = "too-costly"
	// IssueTypeProcessing indicates a processing failure.
	IssueTypeProcessing IssueType = "processing"
	// IssueTypeBusinessRule indicates a composition rule violation.
	IssueTypeBusinessRule IssueType = "business-rule"
	// IssueTypeInformational indicates informational content.
	IssueTypeInformational IssueType = "informational"
)

// Issue is a single operational finding raised while expanding or
// validating, e.g. an unknown code system skipped in lenient mode.
type Issue struct {
	Severity    IssueSeverity `json:"severity"`
	Code        IssueType     `json:"code"`
	Diagnostics string        `json:"diagnostics,omitempty"`

	// Expression locates the finding, e.g. "compose.include[2]".
	Expression []string `json:"expression,omitempty"`

	// System and ValueSetURL identify the terminology artifacts involved.
	System      string `json:"system,omitempty"`
	ValueSetURL string `json:"valueSetUrl,omitempty"`
}

// IsError reports whether the issue is error or fatal grade.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// IsWarning reports whether the issue is warning grade.
func (i Issue) IsWarning() bool {
	return i.Severity == SeverityWarning
}

// String renders the issue as "severity: diagnostics at expression".
func (i Issue) String() string {
	path := ""
	if len(i.Expression) > 0 {
		path = " at " + i.Expression[0]
	}
	return string(i.Severity) + ": " + i.Diagnostics + path
}

// NewIssue builds an issue with the given grade and classification.
func NewIssue(severity IssueSeverity, code IssueType, diagnostics string) Issue {
	return Issue{Severity: severity, Code: code, Diagnostics: diagnostics}
}

// WithExpression returns a copy locating the issue.
func (i Issue) WithExpression(expr string) Issue {
	i.Expression = append(i.Expression[:len(i.Expression):len(i.Expression)], expr)
	return i
}

// WithSystem returns a copy naming the code system involved.
func (i Issue) WithSystem(system string) Issue {
	i.System = system
	return i
}

// WithValueSet returns a copy naming the value set involved.
func (i Issue) WithValueSet(url string) Issue {
	i.ValueSetURL = url
	return i
}
