package carrier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uw-workbench/internal/common/errors"
)

// ==========================
// Validation Tests
// ==========================

func TestValidate_ChainDeclaresOwnVars(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeBundled)
	assert.NoError(t, Validate(steps, BindingTable{}))
}

func TestValidate_MissingBinding(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeForExistingAccount)

	// Without an accountId binding the first step references an undeclared
	// variable.
	err := Validate(steps, BindingTable{})
	require.Error(t, err)

	bindErr, ok := errors.AsBindingError(err)
	require.True(t, ok)
	assert.Equal(t, "accountId", bindErr.Variable)
	assert.Equal(t, 0, bindErr.StepIndex)
}

func TestValidate_SuppliedBindingSatisfiesReference(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeForExistingAccount)
	err := Validate(steps, BindingTable{"accountId": "pc:1001"})
	assert.NoError(t, err)
}

// ==========================
// Resolution Tests
// ==========================

func TestResolve_SubstitutesBoundValues(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeForExistingAccount)
	resolved, err := Resolve(steps, BindingTable{
		"accountId": "pc:1001",
		"jobId":     "pc:2002",
	})
	require.NoError(t, err)

	attrs := resolved[0].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	account := attrs["account"].(map[string]interface{})
	assert.Equal(t, "pc:1001", account["id"])
	assert.Equal(t, "/job/v1/jobs/pc:2002/lines/USCyberLine/coverages", resolved[1].URI)
	assert.Equal(t, "/job/v1/jobs/pc:2002/quote", resolved[3].URI)
}

func TestResolve_LeavesServerSideReferences(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeBundled)
	resolved, err := Resolve(steps, BindingTable{})
	require.NoError(t, err)

	// jobId is declared by step 2's vars and resolved by the carrier, so the
	// placeholder survives client-side resolution.
	assert.Equal(t, "/job/v1/jobs/${jobId}/quote", resolved[4].URI)

	attrs := resolved[1].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	account := attrs["account"].(map[string]interface{})
	assert.Equal(t, "${accountId}", account["id"])
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	steps := BuildChain(createValidSpec(), ModeForExistingAccount)
	_, err := Resolve(steps, BindingTable{"accountId": "pc:1001"})
	require.NoError(t, err)

	attrs := steps[0].Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	account := attrs["account"].(map[string]interface{})
	assert.Equal(t, "${accountId}", account["id"])
}

// ==========================
// Variable Extraction Tests
// ==========================

func TestExtractVars_Success(t *testing.T) {
	resp := StepResponse{
		Status: 201,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{
					"id":        "pc:3003",
					"jobNumber": "0001234567",
				},
			},
		},
	}

	bindings := BindingTable{}
	decls := []VarDecl{
		{Name: "jobId", Path: "$.data.attributes.id"},
		{Name: "jobNumber", Path: "$.data.attributes.jobNumber"},
	}
	require.NoError(t, ExtractVars(resp, decls, bindings))
	assert.Equal(t, "pc:3003", bindings["jobId"])
	assert.Equal(t, "0001234567", bindings["jobNumber"])
}

func TestExtractVars_MissingPath(t *testing.T) {
	resp := StepResponse{
		Status: 201,
		Body:   map[string]interface{}{"data": map[string]interface{}{}},
	}

	err := ExtractVars(resp, []VarDecl{{Name: "accountId", Path: "$.data.attributes.id"}}, BindingTable{})
	require.Error(t, err)

	parseErr, ok := errors.AsParseError(err)
	require.True(t, ok)
	assert.Equal(t, "accountId", parseErr.Entity)
}

func TestEvalPath(t *testing.T) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"attributes": map[string]interface{}{
				"id":       "pc:55",
				"count":    float64(3),
				"ratio":    json.Number("1.25"),
				"verified": true,
				"nested":   map[string]interface{}{},
			},
		},
	}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"string leaf", "$.data.attributes.id", "pc:55", false},
		{"number leaf", "$.data.attributes.count", "3", false},
		{"json number leaf", "$.data.attributes.ratio", "1.25", false},
		{"bool leaf", "$.data.attributes.verified", "true", false},
		{"missing segment", "$.data.attributes.nope", "", true},
		{"non-scalar leaf", "$.data.attributes.nested", "", true},
		{"unsupported path", "data.attributes.id", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalPath(body, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
