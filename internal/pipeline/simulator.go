package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"uw-workbench/internal/carrier"
)

// Simulation pricing rates applied to the requested coverage amount.
const (
	simulatedPremiumRate = 0.00125
	simulatedCostRate    = 0.0015
)

// Simulator produces a structurally complete submission result when the
// carrier is unreachable. Identifiers are timestamped and clearly marked so
// downstream consumers can distinguish simulated runs.
type Simulator struct {
	now func() time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{now: time.Now}
}

// Simulate builds a result equivalent in shape to a parsed five-step
// response for the given spec.
func (s *Simulator) Simulate(spec *carrier.SubmissionSpec) *carrier.SubmissionResult {
	now := s.now().UTC()
	stamp := now.Format("20060102150405")

	aggregate := carrier.AggregateLimitChoice(spec.CoverageAmount)
	coverage := float64(spec.CoverageAmount)
	premium := coverage * simulatedPremiumRate
	cost := coverage * simulatedCostRate

	employees := spec.FTEmployees
	revenues := parseFloatOrZero(spec.TotalRevenues)
	assets := parseFloatOrZero(spec.TotalAssets)
	liabilities := parseFloatOrZero(spec.TotalLiabilities)

	result := &carrier.SubmissionResult{
		Account: carrier.AccountInfo{
			AccountID:        fmt.Sprintf("pc:SIM_ACCT_%s", stamp),
			AccountNumber:    fmt.Sprintf("ACCT%s", stamp),
			AccountStatus:    "Active",
			OrganizationName: spec.CompanyName,
			NumberOfContacts: 1,
		},
		Job: carrier.JobInfo{
			JobID:            fmt.Sprintf("pc:SIM_JOB_%s", stamp),
			JobNumber:        fmt.Sprintf("JOB%s", stamp),
			JobStatus:        "Quoted",
			JobEffectiveDate: spec.EffectiveDate,
			BaseState:        spec.StateCode,
			ProductID:        spec.ProductCode,
			ProducerCodeID:   spec.ProducerCode,
		},
		CoverageTerms: map[string]carrier.ChoiceValue{
			"ACLCommlCyberLiabilityCyberAggLimit": aggregate,
			"ACLCommlCyberLiabilityRetention":     {Code: "5Kusd", Name: "5,000"},
			"ACLCommlCyberLiabilityExtortion":     {Code: "5Kusd", Name: "5,000"},
			"ACLCommlCyberLiabilityWaitingPeriod": {Code: "12HR", Name: "12 hrs"},
		},
		Business: carrier.BusinessData{
			BusinessStartedDate: spec.DateBusinessStarted,
			TotalEmployees:      &employees,
			TotalRevenues:       &revenues,
			TotalAssets:         &assets,
			TotalLiabilities:    &liabilities,
		},
		Pricing: carrier.PricingInfo{
			TotalPremium:        &carrier.Money{Amount: premium, Currency: "USD"},
			TotalCost:           &carrier.Money{Amount: cost, Currency: "USD"},
			RateAsOfDate:        now.Format("2006-01-02"),
			UnderwritingCompany: "Simulated Insurance Co",
		},
		Links: map[string]interface{}{
			"self":    fmt.Sprintf("/job/v1/jobs/SIM%s", stamp),
			"account": fmt.Sprintf("/account/v1/accounts/SIM%s", stamp),
		},
		QuoteGenerated: true,
		Checksum:       uuid.NewString(),
		Simulated:      true,
	}

	return result
}

func parseFloatOrZero(s string) float64 {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	if err != nil {
		return 0
	}
	return f
}
