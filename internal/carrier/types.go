// Package carrier implements the composite REST API contract of the policy
// administration system: request construction, variable binding, execution
// and response parsing.
package carrier

// VarDecl declares a value to extract from a step's response body so later
// steps can reference it as ${name}.
type VarDecl struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Step is a single sub-request inside a composite call.
type Step struct {
	Method string                 `json:"method"`
	URI    string                 `json:"uri"`
	Body   map[string]interface{} `json:"body,omitempty"`
	Vars   []VarDecl              `json:"vars,omitempty"`
}

// CompositeRequest is the top-level payload posted to the composite endpoint.
type CompositeRequest struct {
	Requests []Step `json:"requests"`
}

// StepResponse is one entry of the composite response array, positionally
// aligned with the request steps.
type StepResponse struct {
	Status int                    `json:"status"`
	Body   map[string]interface{} `json:"body,omitempty"`
}

// CompositeResponse is the carrier's answer to a composite call.
type CompositeResponse struct {
	Responses []StepResponse `json:"responses"`
}

// ChoiceValue is a coverage term selection: a machine code plus its display
// name, e.g. {"2Musd", "2,000,000"}.
type ChoiceValue struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubmissionSpec carries the mapped, carrier-ready values for one submission.
// All fields are already normalized: state codes are from the carrier's
// allow-list, amounts are plain decimal strings, dates are ISO.
type SubmissionSpec struct {
	SubmissionID string

	CompanyName          string
	TaxID                string
	AddressLine1         string
	City                 string
	PostalCode           string
	StateCode            string
	OrganizationTypeCode string
	ContactEmail         string

	ProducerCode   string
	ProductCode    string
	EffectiveDate  string
	ExpirationDate string

	CoverageAmount int64

	DateBusinessStarted string
	PolicyTypeCode      string
	FTEmployees         int
	PTEmployees         int
	TotalAssets         string
	TotalLiabilities    string
	TotalRevenues       string
	TotalPayroll        string
}
