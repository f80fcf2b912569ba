package carrier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createValidSpec() *SubmissionSpec {
	return &SubmissionSpec{
		SubmissionID:         "sub-001",
		CompanyName:          "Acme Corp",
		TaxID:                "12-3456789",
		AddressLine1:         "1 Market St",
		City:                 "San Francisco",
		PostalCode:           "94105",
		StateCode:            "CA",
		OrganizationTypeCode: "corporation",
		ContactEmail:         "risk@acme.example",
		ProducerCode:         "pc:16",
		ProductCode:          "USCyber",
		EffectiveDate:        "2025-01-01",
		ExpirationDate:       "2026-01-01",
		CoverageAmount:       2000000,
		DateBusinessStarted:  "2015-01-01T00:00:00.000Z",
		PolicyTypeCode:       "commercialcyber",
		FTEmployees:          40,
		PTEmployees:          5,
		TotalAssets:          "1000000.00",
		TotalLiabilities:     "100000.00",
		TotalRevenues:        "5000000.00",
		TotalPayroll:         "2500000.00",
	}
}

// ==========================
// Chain Construction Tests
// ==========================

func TestBuildChain_Bundled(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeBundled)
	require.Len(t, steps, 5)

	assert.Equal(t, "post", steps[0].Method)
	assert.Equal(t, "/account/v1/accounts", steps[0].URI)
	assert.Equal(t, "post", steps[1].Method)
	assert.Equal(t, "/job/v1/submissions", steps[1].URI)
	assert.Equal(t, "post", steps[2].Method)
	assert.Equal(t, "/job/v1/jobs/${jobId}/lines/USCyberLine/coverages", steps[2].URI)
	assert.Equal(t, "patch", steps[3].Method)
	assert.Equal(t, "/job/v1/jobs/${jobId}/lines/USCyberLine", steps[3].URI)
	assert.Equal(t, "post", steps[4].Method)
	assert.Equal(t, "/job/v1/jobs/${jobId}/quote", steps[4].URI)
}

func TestBuildChain_AccountOnly(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeAccountOnly)
	require.Len(t, steps, 1)
	assert.Equal(t, "/account/v1/accounts", steps[0].URI)
	require.Len(t, steps[0].Vars, 1)
	assert.Equal(t, "accountId", steps[0].Vars[0].Name)
	assert.Equal(t, "$.data.attributes.id", steps[0].Vars[0].Path)
}

func TestBuildChain_ExistingAccount(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeForExistingAccount)
	require.Len(t, steps, 4)
	assert.Equal(t, "/job/v1/submissions", steps[0].URI)
	assert.Equal(t, "/job/v1/jobs/${jobId}/quote", steps[3].URI)
}

func TestBuildChain_AccountStepPayload(t *testing.T) {
	spec := createValidSpec()
	steps := BuildChain(spec, ModeBundled)

	attrs := steps[0].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	holder := attrs["initialAccountHolder"].(map[string]interface{})
	assert.Equal(t, "Company", holder["contactSubtype"])
	assert.Equal(t, "Acme Corp", holder["companyName"])
	assert.Equal(t, "12-3456789", holder["taxId"])

	address := holder["primaryAddress"].(map[string]interface{})
	assert.Equal(t, "San Francisco", address["city"])
	assert.Equal(t, map[string]interface{}{"code": "CA"}, address["state"])

	// The account location mirrors the holder address.
	assert.Equal(t, address, attrs["initialPrimaryLocation"])

	producers := attrs["producerCodes"].([]interface{})
	require.Len(t, producers, 1)
	assert.Equal(t, map[string]interface{}{"id": "pc:16"}, producers[0])
	assert.Equal(t, map[string]interface{}{"code": "corporation"}, attrs["organizationType"])
}

func TestBuildChain_SubmissionStepReferencesAccount(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeBundled)

	attrs := steps[1].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	account := attrs["account"].(map[string]interface{})
	assert.Equal(t, "${accountId}", account["id"])
	assert.Equal(t, "2025-01-01", attrs["jobEffectiveDate"])
	assert.Equal(t, map[string]interface{}{"code": "CA"}, attrs["baseState"])
	assert.Equal(t, map[string]interface{}{"id": "USCyber"}, attrs["product"])

	require.Len(t, steps[1].Vars, 2)
	assert.Equal(t, "jobId", steps[1].Vars[0].Name)
	assert.Equal(t, "jobNumber", steps[1].Vars[1].Name)
	assert.Equal(t, "$.data.attributes.jobNumber", steps[1].Vars[1].Path)
}

func TestBuildChain_CoverageTerms(t *testing.T) {
	spec := createValidSpec()
	spec.CoverageAmount = 2000000
	steps := BuildChain(spec, ModeBundled)

	attrs := steps[2].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"id": "ACLCommlCyberLiability"}, attrs["pattern"])

	terms := attrs["terms"].(map[string]interface{})
	choice := func(name string) map[string]interface{} {
		return terms[name].(map[string]interface{})["choiceValue"].(map[string]interface{})
	}

	// 2M aggregate scales sublimits: income 200k->250k, extortion 100k->50k,
	// retention 20k->10k.
	assert.Equal(t, "2Musd", choice("ACLCommlCyberLiabilityCyberAggLimit")["code"])
	assert.Equal(t, "250Kusd", choice("ACLCommlCyberLiabilityBusIncLimit")["code"])
	assert.Equal(t, "50Kusd", choice("ACLCommlCyberLiabilityExtortion")["code"])
	assert.Equal(t, "10Kusd", choice("ACLCommlCyberLiabilityRetention")["code"])
	assert.Equal(t, "5Kusd", choice("ACLCommlCyberLiabilityPublicRelations")["code"])
	assert.Equal(t, "12HR", choice("ACLCommlCyberLiabilityWaitingPeriod")["code"])
}

func TestBuildChain_LineDetailsPayload(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeBundled)

	attrs := steps[3].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	assert.Equal(t, "2015-01-01T00:00:00.000Z", attrs["aclDateBusinessStarted"])
	assert.Equal(t, 40, attrs["aclTotalFTEmployees"])
	assert.Equal(t, 5, attrs["aclTotalPTEmployees"])
	assert.Equal(t, "5000000.00", attrs["aclTotalRevenues"])
	assert.Equal(t, map[string]interface{}{"code": "commercialcyber", "name": "Commercial Cyber"}, attrs["aclPolicyType"])
}

// ==========================
// Choice Grid Tests
// ==========================

func TestAggregateLimitChoice(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		wantCode string
		wantName string
	}{
		{"exact tier", 1000000, "1Musd", "1,000,000"},
		{"rounds up to nearest", 1800000, "2Musd", "2,000,000"},
		{"rounds down to nearest", 1200000, "1Musd", "1,000,000"},
		{"below smallest tier", 1000, "25Kusd", "25,000"},
		{"above largest tier", 50000000, "5Musd", "5,000,000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateLimitChoice(tt.amount)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantName, got.Name)
		})
	}
}

func TestNearestChoice_Retention(t *testing.T) {
	// The retention grid carries the carrier's own quirky codes for the
	// 2,500 and 7,500 tiers.
	assert.Equal(t, ChoiceValue{Code: "25Kusd", Name: "2,500"}, NearestChoice(2500, retentionChoices))
	assert.Equal(t, ChoiceValue{Code: "75Kusd", Name: "7,500"}, NearestChoice(7500, retentionChoices))
}
