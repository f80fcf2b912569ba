package carrier

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"uw-workbench/internal/common/errors"
)

// AccountInfo holds the values extracted from the account creation response.
// AccountNumber is best effort: some carrier versions omit it from the
// composite body, so callers must tolerate an empty value.
type AccountInfo struct {
	AccountID        string `json:"accountId"`
	AccountNumber    string `json:"accountNumber,omitempty"`
	AccountStatus    string `json:"accountStatus,omitempty"`
	OrganizationName string `json:"organizationName,omitempty"`
	NumberOfContacts int    `json:"numberOfContacts,omitempty"`
}

// JobInfo holds the values extracted from the submission creation response.
type JobInfo struct {
	JobID            string `json:"jobId"`
	JobNumber        string `json:"jobNumber,omitempty"`
	JobStatus        string `json:"jobStatus,omitempty"`
	JobEffectiveDate string `json:"jobEffectiveDate,omitempty"`
	BaseState        string `json:"baseState,omitempty"`
	ProductID        string `json:"productId,omitempty"`
	ProducerCodeID   string `json:"producerCodeId,omitempty"`
}

// BusinessData echoes the line-level financials the carrier accepted.
// Numeric fields are nil when the carrier returned nothing parseable.
type BusinessData struct {
	BusinessStartedDate string   `json:"businessStartedDate,omitempty"`
	TotalEmployees      *int     `json:"totalEmployees,omitempty"`
	TotalRevenues       *float64 `json:"totalRevenues,omitempty"`
	TotalAssets         *float64 `json:"totalAssets,omitempty"`
	TotalLiabilities    *float64 `json:"totalLiabilities,omitempty"`
	IndustryType        string   `json:"industryType,omitempty"`
}

// Money is an amount/currency pair from the quote response.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// PricingInfo holds the quote step's outputs.
type PricingInfo struct {
	TotalCost           *Money `json:"totalCost,omitempty"`
	TotalPremium        *Money `json:"totalPremium,omitempty"`
	RateAsOfDate        string `json:"rateAsOfDate,omitempty"`
	UnderwritingCompany string `json:"underwritingCompany,omitempty"`
}

// SubmissionResult is the parsed view of a full five-step composite response.
type SubmissionResult struct {
	Account        AccountInfo            `json:"account"`
	Job            JobInfo                `json:"job"`
	CoverageTerms  map[string]ChoiceValue `json:"coverageTerms,omitempty"`
	Business       BusinessData           `json:"business"`
	Pricing        PricingInfo            `json:"pricing"`
	Links          map[string]interface{} `json:"links,omitempty"`
	QuoteGenerated bool                   `json:"quoteGenerated"`
	Checksum       string                 `json:"checksum"`
	Simulated      bool                   `json:"simulated"`
}

// ParseSubmissionResponse extracts the structured result from a composite
// response whose steps follow the standard chain order: account, submission,
// coverages, line details, quote. Each present entry must carry a 2xx status
// before its body is trusted.
func ParseSubmissionResponse(resp *CompositeResponse) (*SubmissionResult, error) {
	if resp == nil || len(resp.Responses) == 0 {
		return nil, errors.NewParseError("composite response", fmt.Errorf("empty response array"))
	}

	result := &SubmissionResult{
		CoverageTerms: map[string]ChoiceValue{},
	}

	account, err := ParseAccountEntry(resp.Responses[0])
	if err != nil {
		return nil, err
	}
	result.Account = *account

	if len(resp.Responses) > 1 {
		job, err := parseJobEntry(resp.Responses[1])
		if err != nil {
			return nil, err
		}
		result.Job = *job
	}

	if len(resp.Responses) > 2 {
		if attrs, ok := entryAttributes(resp.Responses[2]); ok {
			result.CoverageTerms = parseCoverageTerms(attrs)
		}
	}

	if len(resp.Responses) > 3 {
		if attrs, ok := entryAttributes(resp.Responses[3]); ok {
			result.Business = parseBusinessData(attrs)
		}
	}

	if len(resp.Responses) > 4 {
		if attrs, ok := entryAttributes(resp.Responses[4]); ok {
			result.Pricing = parsePricing(attrs)
			if links, ok := attrs["links"].(map[string]interface{}); ok {
				result.Links = links
			}
			result.QuoteGenerated = true
		}
	}

	result.Checksum = Checksum(resp.Responses)
	return result, nil
}

// ParseAccountEntry extracts account identifiers from the account creation
// step's response. Used standalone in split mode.
func ParseAccountEntry(entry StepResponse) (*AccountInfo, error) {
	if !entryOK(entry) {
		return nil, errors.NewParseError("account", fmt.Errorf("account step returned status %d", entry.Status))
	}
	attrs, ok := entryAttributes(entry)
	if !ok {
		return nil, errors.NewParseError("account", fmt.Errorf("account response has no data.attributes"))
	}

	id := stringField(attrs, "id")
	if id == "" {
		return nil, errors.NewParseError("account", fmt.Errorf("account response has no id"))
	}

	return &AccountInfo{
		AccountID:        id,
		AccountNumber:    stringField(attrs, "accountNumber"),
		AccountStatus:    nestedStringField(attrs, "accountStatus", "code"),
		OrganizationName: nestedStringField(attrs, "accountHolderContact", "displayName"),
		NumberOfContacts: intField(attrs, "numberOfContacts"),
	}, nil
}

func parseJobEntry(entry StepResponse) (*JobInfo, error) {
	if !entryOK(entry) {
		return nil, errors.NewParseError("job", fmt.Errorf("submission step returned status %d", entry.Status))
	}
	attrs, ok := entryAttributes(entry)
	if !ok {
		return nil, errors.NewParseError("job", fmt.Errorf("submission response has no data.attributes"))
	}

	id := stringField(attrs, "id")
	if id == "" {
		return nil, errors.NewParseError("job", fmt.Errorf("submission response has no id"))
	}

	return &JobInfo{
		JobID:            id,
		JobNumber:        stringField(attrs, "jobNumber"),
		JobStatus:        nestedStringField(attrs, "jobStatus", "code"),
		JobEffectiveDate: stringField(attrs, "jobEffectiveDate"),
		BaseState:        nestedStringField(attrs, "baseState", "code"),
		ProductID:        nestedStringField(attrs, "product", "id"),
		ProducerCodeID:   nestedStringField(attrs, "producerCode", "id"),
	}, nil
}

func parseCoverageTerms(attrs map[string]interface{}) map[string]ChoiceValue {
	out := map[string]ChoiceValue{}
	terms, ok := attrs["terms"].(map[string]interface{})
	if !ok {
		return out
	}
	for name, raw := range terms {
		term, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		choice, ok := term["choiceValue"].(map[string]interface{})
		if !ok {
			continue
		}
		out[name] = ChoiceValue{
			Code: stringField(choice, "code"),
			Name: stringField(choice, "name"),
		}
	}
	return out
}

func parseBusinessData(attrs map[string]interface{}) BusinessData {
	data := BusinessData{
		BusinessStartedDate: stringField(attrs, "aclDateBusinessStarted"),
		IndustryType:        stringField(attrs, "aclIndustryType"),
	}
	if n, ok := numberField(attrs, "aclTotalFTEmployees"); ok {
		employees := int(n)
		data.TotalEmployees = &employees
	}
	data.TotalRevenues = floatFieldPtr(attrs, "aclTotalRevenues")
	data.TotalAssets = floatFieldPtr(attrs, "aclTotalAssets")
	data.TotalLiabilities = floatFieldPtr(attrs, "aclTotalLiabilities")
	return data
}

func parsePricing(attrs map[string]interface{}) PricingInfo {
	pricing := PricingInfo{
		RateAsOfDate:        stringField(attrs, "rateAsOfDate"),
		UnderwritingCompany: nestedStringField(attrs, "uwCompany", "displayName"),
	}
	pricing.TotalCost = parseMoney(attrs, "totalCost")
	pricing.TotalPremium = parseMoney(attrs, "totalPremium")
	return pricing
}

func parseMoney(attrs map[string]interface{}, key string) *Money {
	obj, ok := attrs[key].(map[string]interface{})
	if !ok {
		return nil
	}
	amount, ok := numberField(obj, "amount")
	if !ok {
		return nil
	}
	return &Money{
		Amount:   amount,
		Currency: stringField(obj, "currency"),
	}
}

// Checksum returns a stable SHA-256 over the response entries. Go's JSON
// encoder sorts map keys, so semantically identical responses hash the same
// regardless of the carrier's key order.
func Checksum(responses []StepResponse) string {
	raw, err := json.Marshal(responses)
	if err != nil {
		return "checksum_error"
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func entryOK(entry StepResponse) bool {
	return entry.Status == http.StatusOK || entry.Status == http.StatusCreated
}

func entryAttributes(entry StepResponse) (map[string]interface{}, bool) {
	if !entryOK(entry) || entry.Body == nil {
		return nil, false
	}
	data, ok := entry.Body["data"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	attrs, ok := data["attributes"].(map[string]interface{})
	return attrs, ok
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func nestedStringField(m map[string]interface{}, key, sub string) string {
	if obj, ok := m[key].(map[string]interface{}); ok {
		return stringField(obj, sub)
	}
	return ""
}

func intField(m map[string]interface{}, key string) int {
	if n, ok := numberField(m, key); ok {
		return int(n)
	}
	return 0
}

// numberField accepts both JSON numbers and numeric strings, which the
// carrier mixes freely.
func numberField(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func floatFieldPtr(m map[string]interface{}, key string) *float64 {
	if f, ok := numberField(m, key); ok {
		return &f
	}
	return nil
}
