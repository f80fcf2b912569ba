package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"uw-workbench/internal/carrier"
	"uw-workbench/internal/common/config"
)

var entityTypeCodes = map[string]string{
	"corporation":               "corporation",
	"corp":                      "corporation",
	"llc":                       "llc",
	"limited liability company": "llc",
	"partnership":               "partnership",
	"sole proprietorship":       "sole_proprietorship",
	"nonprofit":                 "nonprofit",
}

var industryCodes = map[string]string{
	"technology":         "tech",
	"healthcare":         "healthcare",
	"financial_services": "financial",
	"manufacturing":      "manufacturing",
	"retail":             "retail",
	"education":          "education",
	"government":         "government",
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}

// Mapper converts workbench business records into carrier-ready submission
// specs. Mapping never fails: unusable values fall back to configured
// defaults and each fallback is recorded as a note.
type Mapper struct {
	cfg config.PipelineConfig
}

func NewMapper(cfg config.PipelineConfig) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map normalizes the record into a SubmissionSpec plus the defaults applied.
func (m *Mapper) Map(record *BusinessRecord) (*carrier.SubmissionSpec, []MappingNote) {
	var notes []MappingNote
	note := func(field, given, def, reason string) {
		notes = append(notes, MappingNote{Field: field, Given: given, Default: def, Reason: reason})
	}

	spec := &carrier.SubmissionSpec{
		SubmissionID:   record.SubmissionID,
		CompanyName:    strings.TrimSpace(record.CompanyName),
		TaxID:          strings.TrimSpace(record.TaxID),
		AddressLine1:   record.AddressLine1,
		City:           record.City,
		PostalCode:     record.PostalCode,
		ContactEmail:   record.ContactEmail,
		ProducerCode:   m.cfg.ProducerCode,
		ProductCode:    m.cfg.ProductCode,
		FTEmployees:    record.FTEmployees,
		PTEmployees:    record.PTEmployees,
		PolicyTypeCode: "commercialcyber",
	}

	if spec.CompanyName == "" {
		spec.CompanyName = "Unknown Company"
		note("company_name", record.CompanyName, spec.CompanyName, "missing company name")
	}
	if spec.TaxID == "" {
		spec.TaxID = "12-1212121"
		note("tax_id", "", spec.TaxID, "missing tax id")
	}
	if spec.AddressLine1 == "" {
		spec.AddressLine1 = "123 Main St"
		note("address_line1", "", spec.AddressLine1, "missing address")
	}
	if spec.City == "" {
		spec.City = "San Mateo"
		note("city", "", spec.City, "missing city")
	}
	if spec.PostalCode == "" {
		spec.PostalCode = "94403"
		note("postal_code", "", spec.PostalCode, "missing postal code")
	}

	spec.StateCode = m.mapState(record.State, &notes)
	spec.OrganizationTypeCode = mapEntityType(record.EntityType)
	spec.CoverageAmount = m.mapCoverage(record.CoverageAmount, &notes)

	effective := m.mapEffectiveDate(record.EffectiveDate, &notes)
	spec.EffectiveDate = effective.Format("2006-01-02")
	spec.ExpirationDate = effective.AddDate(1, 0, 0).Format("2006-01-02")

	if record.YearsInBusiness > 0 {
		spec.DateBusinessStarted = time.Now().UTC().AddDate(-record.YearsInBusiness, 0, 0).Format("2006-01-02T15:04:05.000Z")
	} else {
		spec.DateBusinessStarted = time.Now().UTC().AddDate(-1, 0, 0).Format("2006-01-02T15:04:05.000Z")
		note("years_in_business", "", "1", "missing years in business")
	}

	spec.TotalRevenues = m.mapMoneyField("annual_revenue", record.AnnualRevenue, "1000000.00", &notes)
	spec.TotalAssets = m.mapMoneyField("total_assets", record.TotalAssets, "1000000.00", &notes)
	spec.TotalLiabilities = m.mapMoneyField("total_liabilities", record.TotalLiabilities, "100000.00", &notes)
	spec.TotalPayroll = m.mapMoneyField("annual_payroll", record.AnnualPayroll, "500000.00", &notes)

	return spec, notes
}

// IndustryCode maps a free-text industry to the carrier's code set.
func IndustryCode(industry string) string {
	if industry == "" {
		return "other"
	}
	if code, ok := industryCodes[strings.ToLower(strings.TrimSpace(industry))]; ok {
		return code
	}
	return "other"
}

func mapEntityType(entityType string) string {
	if entityType == "" {
		return "other"
	}
	if code, ok := entityTypeCodes[strings.ToLower(strings.TrimSpace(entityType))]; ok {
		return code
	}
	return "other"
}

func (m *Mapper) mapState(state string, notes *[]MappingNote) string {
	code := strings.ToUpper(strings.TrimSpace(state))
	if usStates[code] {
		return code
	}
	*notes = append(*notes, MappingNote{
		Field:   "state",
		Given:   state,
		Default: m.cfg.DefaultState,
		Reason:  "not a recognized state code",
	})
	return m.cfg.DefaultState
}

func (m *Mapper) mapCoverage(raw string, notes *[]MappingNote) int64 {
	amount, err := ParseMoney(raw)
	if err != nil || amount <= 0 {
		*notes = append(*notes, MappingNote{
			Field:   "coverage_amount",
			Given:   raw,
			Default: fmt.Sprintf("%d", m.cfg.DefaultCoverage),
			Reason:  "unparseable coverage amount",
		})
		return m.cfg.DefaultCoverage
	}
	return amount
}

func (m *Mapper) mapEffectiveDate(raw string, notes *[]MappingNote) time.Time {
	if raw != "" {
		for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
		*notes = append(*notes, MappingNote{
			Field:   "effective_date",
			Given:   raw,
			Default: "today",
			Reason:  "unparseable date",
		})
	}
	return time.Now().UTC()
}

func (m *Mapper) mapMoneyField(field, raw, def string, notes *[]MappingNote) string {
	if raw == "" {
		*notes = append(*notes, MappingNote{Field: field, Default: def, Reason: "missing value"})
		return def
	}
	amount, err := parseMoneyDecimal(raw)
	if err != nil {
		*notes = append(*notes, MappingNote{Field: field, Given: raw, Default: def, Reason: "unparseable amount"})
		return def
	}
	return amount.StringFixed(2)
}

// ParseMoney parses a money string into whole dollars. It strips currency
// symbols and thousands separators and understands k/m magnitude suffixes.
func ParseMoney(raw string) (int64, error) {
	d, err := parseMoneyDecimal(raw)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

func parseMoneyDecimal(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	multiplier := decimal.NewFromInt(1)
	lower := strings.ToLower(cleaned)
	switch {
	case strings.HasSuffix(lower, "m"):
		multiplier = decimal.NewFromInt(1000000)
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(lower, "k"):
		multiplier = decimal.NewFromInt(1000)
		cleaned = cleaned[:len(cleaned)-1]
	}

	d, err := decimal.NewFromString(strings.TrimSpace(cleaned))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d.Mul(multiplier), nil
}
