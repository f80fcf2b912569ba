package carrier

// Mode selects which slice of the submission chain a composite call carries.
type Mode string

const (
	// ModeBundled sends all five steps in one call and lets the carrier
	// resolve ${...} placeholders server-side.
	ModeBundled Mode = "bundled"
	// ModeAccountOnly sends only the account creation step.
	ModeAccountOnly Mode = "account_only"
	// ModeForExistingAccount sends the submission steps for an account that
	// already exists; the accountId binding must be supplied by the caller.
	ModeForExistingAccount Mode = "existing_account"
)

const (
	accountsURI    = "/account/v1/accounts"
	submissionsURI = "/job/v1/submissions"
	coveragesURI   = "/job/v1/jobs/${jobId}/lines/USCyberLine/coverages"
	lineURI        = "/job/v1/jobs/${jobId}/lines/USCyberLine"
	quoteURI       = "/job/v1/jobs/${jobId}/quote"

	coveragePatternID = "ACLCommlCyberLiability"
)

// Coverage term choice grids. Amounts map to the carrier's nearest selectable
// option.
var (
	aggregateChoices = map[int64]ChoiceValue{
		25000:   {Code: "25Kusd", Name: "25,000"},
		50000:   {Code: "50Kusd", Name: "50,000"},
		100000:  {Code: "100Kusd", Name: "100,000"},
		250000:  {Code: "250Kusd", Name: "250,000"},
		500000:  {Code: "500Kusd", Name: "500,000"},
		1000000: {Code: "1Musd", Name: "1,000,000"},
		2000000: {Code: "2Musd", Name: "2,000,000"},
		5000000: {Code: "5Musd", Name: "5,000,000"},
	}
	businessIncomeChoices = map[int64]ChoiceValue{
		10000:  {Code: "10Kusd", Name: "10,000"},
		25000:  {Code: "25Kusd", Name: "25,000"},
		50000:  {Code: "50Kusd", Name: "50,000"},
		100000: {Code: "100Kusd", Name: "100,000"},
		250000: {Code: "250Kusd", Name: "250,000"},
	}
	extortionChoices = map[int64]ChoiceValue{
		5000:  {Code: "5Kusd", Name: "5,000"},
		10000: {Code: "10Kusd", Name: "10,000"},
		25000: {Code: "25Kusd", Name: "25,000"},
		50000: {Code: "50Kusd", Name: "50,000"},
	}
	retentionChoices = map[int64]ChoiceValue{
		1000:  {Code: "1Kusd", Name: "1,000"},
		2500:  {Code: "25Kusd", Name: "2,500"},
		5000:  {Code: "5Kusd", Name: "5,000"},
		7500:  {Code: "75Kusd", Name: "7,500"},
		10000: {Code: "10Kusd", Name: "10,000"},
	}
)

// NearestChoice picks the grid option closest to the requested amount.
func NearestChoice(amount int64, grid map[int64]ChoiceValue) ChoiceValue {
	var bestKey int64
	first := true
	for k := range grid {
		if first {
			bestKey = k
			first = false
			continue
		}
		if abs64(k-amount) < abs64(bestKey-amount) {
			bestKey = k
		}
	}
	return grid[bestKey]
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// AggregateLimitChoice maps the requested coverage amount to the carrier's
// aggregate limit option.
func AggregateLimitChoice(amount int64) ChoiceValue {
	return NearestChoice(amount, aggregateChoices)
}

// BuildChain assembles the composite steps for a submission according to the
// execution mode.
func BuildChain(spec *SubmissionSpec, mode Mode) []Step {
	switch mode {
	case ModeAccountOnly:
		return []Step{buildAccountStep(spec)}
	case ModeForExistingAccount:
		return []Step{
			buildSubmissionStep(spec),
			buildCoverageStep(spec),
			buildLineDetailsStep(spec),
			buildQuoteStep(),
		}
	default:
		return []Step{
			buildAccountStep(spec),
			buildSubmissionStep(spec),
			buildCoverageStep(spec),
			buildLineDetailsStep(spec),
			buildQuoteStep(),
		}
	}
}

func buildAccountStep(spec *SubmissionSpec) Step {
	address := map[string]interface{}{
		"addressLine1": spec.AddressLine1,
		"city":         spec.City,
		"postalCode":   spec.PostalCode,
		"state": map[string]interface{}{
			"code": spec.StateCode,
		},
	}

	return Step{
		Method: "post",
		URI:    accountsURI,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{
					"initialAccountHolder": map[string]interface{}{
						"contactSubtype": "Company",
						"companyName":    spec.CompanyName,
						"taxId":          spec.TaxID,
						"primaryAddress": address,
					},
					"initialPrimaryLocation": address,
					"producerCodes": []interface{}{
						map[string]interface{}{"id": spec.ProducerCode},
					},
					"organizationType": map[string]interface{}{
						"code": spec.OrganizationTypeCode,
					},
				},
			},
		},
		Vars: []VarDecl{
			{Name: "accountId", Path: "$.data.attributes.id"},
		},
	}
}

func buildSubmissionStep(spec *SubmissionSpec) Step {
	return Step{
		Method: "post",
		URI:    submissionsURI,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{
					"account": map[string]interface{}{
						"id": "${accountId}",
					},
					"baseState": map[string]interface{}{
						"code": spec.StateCode,
					},
					"jobEffectiveDate": spec.EffectiveDate,
					"producerCode": map[string]interface{}{
						"id": spec.ProducerCode,
					},
					"product": map[string]interface{}{
						"id": spec.ProductCode,
					},
				},
			},
		},
		Vars: []VarDecl{
			{Name: "jobId", Path: "$.data.attributes.id"},
			{Name: "jobNumber", Path: "$.data.attributes.jobNumber"},
		},
	}
}

func buildCoverageStep(spec *SubmissionSpec) Step {
	aggregate := NearestChoice(spec.CoverageAmount, aggregateChoices)
	// Sublimits scale off the aggregate: the grids clamp them into the
	// carrier's selectable range.
	businessIncome := NearestChoice(spec.CoverageAmount/10, businessIncomeChoices)
	extortion := NearestChoice(spec.CoverageAmount/20, extortionChoices)
	retention := NearestChoice(spec.CoverageAmount/100, retentionChoices)

	return Step{
		Method: "post",
		URI:    coveragesURI,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{
					"pattern": map[string]interface{}{
						"id": coveragePatternID,
					},
					"terms": map[string]interface{}{
						"ACLCommlCyberLiabilityBusIncLimit": map[string]interface{}{
							"choiceValue": choiceBody(businessIncome),
						},
						"ACLCommlCyberLiabilityCyberAggLimit": map[string]interface{}{
							"choiceValue": choiceBody(aggregate),
						},
						"ACLCommlCyberLiabilityExtortion": map[string]interface{}{
							"choiceValue": choiceBody(extortion),
						},
						"ACLCommlCyberLiabilityPublicRelations": map[string]interface{}{
							"choiceValue": choiceBody(ChoiceValue{Code: "5Kusd", Name: "5,000"}),
						},
						"ACLCommlCyberLiabilityRetention": map[string]interface{}{
							"choiceValue": choiceBody(retention),
						},
						"ACLCommlCyberLiabilityWaitingPeriod": map[string]interface{}{
							"choiceValue": choiceBody(ChoiceValue{Code: "12HR", Name: "12 hrs"}),
						},
					},
				},
			},
		},
	}
}

func choiceBody(cv ChoiceValue) map[string]interface{} {
	return map[string]interface{}{
		"code": cv.Code,
		"name": cv.Name,
	}
}

func buildLineDetailsStep(spec *SubmissionSpec) Step {
	return Step{
		Method: "patch",
		URI:    lineURI,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{
					"aclDateBusinessStarted": spec.DateBusinessStarted,
					"aclPolicyType": map[string]interface{}{
						"code": spec.PolicyTypeCode,
						"name": "Commercial Cyber",
					},
					"aclTotalAssets":      spec.TotalAssets,
					"aclTotalFTEmployees": spec.FTEmployees,
					"aclTotalLiabilities": spec.TotalLiabilities,
					"aclTotalPTEmployees": spec.PTEmployees,
					"aclTotalPayroll":     spec.TotalPayroll,
					"aclTotalRevenues":    spec.TotalRevenues,
				},
			},
		},
	}
}

func buildQuoteStep() Step {
	return Step{
		Method: "post",
		URI:    quoteURI,
	}
}
