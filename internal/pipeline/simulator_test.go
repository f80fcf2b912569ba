package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createFrozenSimulator(at time.Time) *Simulator {
	sim := NewSimulator()
	sim.now = func() time.Time { return at }
	return sim
}

func TestSimulator_Simulate(t *testing.T) {
	frozen := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	sim := createFrozenSimulator(frozen)

	mapper := NewMapper(createPipelineConfig())
	spec, _ := mapper.Map(createValidRecord())

	result := sim.Simulate(spec)

	assert.True(t, result.Simulated)
	assert.Equal(t, "pc:SIM_ACCT_20250315103000", result.Account.AccountID)
	assert.Equal(t, "ACCT20250315103000", result.Account.AccountNumber)
	assert.Equal(t, "Active", result.Account.AccountStatus)
	assert.Equal(t, "Acme Corp", result.Account.OrganizationName)

	assert.Equal(t, "pc:SIM_JOB_20250315103000", result.Job.JobID)
	assert.Equal(t, "JOB20250315103000", result.Job.JobNumber)
	assert.Equal(t, "Quoted", result.Job.JobStatus)
	assert.Equal(t, "CA", result.Job.BaseState)
	assert.Equal(t, "USCyber", result.Job.ProductID)

	// 2M coverage at the simulation rates.
	require.NotNil(t, result.Pricing.TotalPremium)
	assert.InDelta(t, 2500.0, result.Pricing.TotalPremium.Amount, 0.001)
	assert.Equal(t, "USD", result.Pricing.TotalPremium.Currency)
	require.NotNil(t, result.Pricing.TotalCost)
	assert.InDelta(t, 3000.0, result.Pricing.TotalCost.Amount, 0.001)
	assert.Equal(t, "2025-03-15", result.Pricing.RateAsOfDate)
	assert.Equal(t, "Simulated Insurance Co", result.Pricing.UnderwritingCompany)

	assert.Equal(t, "2Musd", result.CoverageTerms["ACLCommlCyberLiabilityCyberAggLimit"].Code)
	assert.True(t, result.QuoteGenerated)
	assert.NotEmpty(t, result.Checksum)
	assert.NotEmpty(t, result.Links["self"])
}

func TestSimulator_Simulate_BusinessDataEchoed(t *testing.T) {
	sim := NewSimulator()
	mapper := NewMapper(createPipelineConfig())
	spec, _ := mapper.Map(createValidRecord())

	result := sim.Simulate(spec)

	require.NotNil(t, result.Business.TotalEmployees)
	assert.Equal(t, 40, *result.Business.TotalEmployees)
	require.NotNil(t, result.Business.TotalRevenues)
	assert.InDelta(t, 5000000.0, *result.Business.TotalRevenues, 0.01)
	require.NotNil(t, result.Business.TotalAssets)
	assert.InDelta(t, 1000000.0, *result.Business.TotalAssets, 0.01)
}

func TestSimulator_Simulate_DistinctChecksums(t *testing.T) {
	sim := NewSimulator()
	mapper := NewMapper(createPipelineConfig())
	spec, _ := mapper.Map(createValidRecord())

	first := sim.Simulate(spec)
	second := sim.Simulate(spec)

	// Simulated results never collide with a real response checksum, nor
	// with each other.
	assert.NotEqual(t, first.Checksum, second.Checksum)
}
