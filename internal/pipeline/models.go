// Package pipeline orchestrates carrier submission runs: mapping business
// records into carrier values, executing the composite chain, tracking sync
// progress and simulating results when the carrier is unreachable.
package pipeline

import (
	"time"

	"uw-workbench/internal/carrier"
)

// Intent names the caller's goal for a run.
type Intent string

const (
	IntentFullChain       Intent = "full_chain"
	IntentAccountOnly     Intent = "account_only"
	IntentExistingAccount Intent = "existing_account"
)

// ExistingAccount identifies a carrier account created outside this run. The
// number and organization name are persisted so the row stays searchable by
// them even when the carrier response never echoes them back.
type ExistingAccount struct {
	AccountID        string `json:"accountId"`
	AccountNumber    string `json:"accountNumber,omitempty"`
	OrganizationName string `json:"organizationName,omitempty"`
}

// BusinessRecord is the inbound workbench record for one submission. String
// money fields arrive in whatever shape the workbench captured ("$2,000,000",
// "500k"); the mapper normalizes them.
type BusinessRecord struct {
	SubmissionID string `json:"submission_id"`
	WorkItemID   string `json:"work_item_id,omitempty"`

	CompanyName  string `json:"company_name"`
	TaxID        string `json:"tax_id,omitempty"`
	AddressLine1 string `json:"address_line1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	EntityType   string `json:"entity_type,omitempty"`
	Industry     string `json:"industry,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`

	CoverageAmount string `json:"coverage_amount,omitempty"`
	EffectiveDate  string `json:"effective_date,omitempty"`

	YearsInBusiness  int    `json:"years_in_business,omitempty"`
	FTEmployees      int    `json:"full_time_employees,omitempty"`
	PTEmployees      int    `json:"part_time_employees,omitempty"`
	AnnualRevenue    string `json:"annual_revenue,omitempty"`
	TotalAssets      string `json:"total_assets,omitempty"`
	TotalLiabilities string `json:"total_liabilities,omitempty"`
	AnnualPayroll    string `json:"annual_payroll,omitempty"`
}

// MappingNote records a field that could not be mapped and the default that
// replaced it. Notes are informational, never fatal.
type MappingNote struct {
	Field   string `json:"field"`
	Given   string `json:"given,omitempty"`
	Default string `json:"default"`
	Reason  string `json:"reason"`
}

// RunResult is the outcome of a pipeline run.
type RunResult struct {
	SubmissionID string                    `json:"submissionId"`
	Intent       Intent                    `json:"intent"`
	SyncStatus   string                    `json:"syncStatus"`
	Result       *carrier.SubmissionResult `json:"result,omitempty"`
	Notes        []MappingNote             `json:"notes,omitempty"`
	Attempts     int                       `json:"attempts"`
	StartedAt    time.Time                 `json:"startedAt"`
	FinishedAt   time.Time                 `json:"finishedAt"`
	Error        string                    `json:"error,omitempty"`
}
