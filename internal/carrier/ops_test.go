package carrier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Approval Tests
// ==========================

func TestClient_ApproveSubmission(t *testing.T) {
	var gotReq CompositeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{{Status: 200}}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	require.NoError(t, client.ApproveSubmission(context.Background(), "pc:2002", "clean risk"))

	require.Len(t, gotReq.Requests, 1)
	step := gotReq.Requests[0]
	assert.Equal(t, "patch", step.Method)
	assert.Equal(t, "/job/v1/jobs/pc:2002", step.URI)

	attrs := step.Body["data"].(map[string]interface{})["attributes"].(map[string]interface{})
	assert.Equal(t, "approved", attrs["status"])
	assert.Equal(t, "clean risk", attrs["underwriterNotes"])
	assert.NotEmpty(t, attrs["approvalDate"])
}

func TestClient_ApproveSubmission_StepFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{{Status: 409}}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	err := client.ApproveSubmission(context.Background(), "pc:2002", "")
	assert.Error(t, err)
}

// ==========================
// Quote Document Tests
// ==========================

func TestClient_CreateQuoteWithDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{
			{Status: 200},
			{Status: 200, Body: map[string]interface{}{
				"data": map[string]interface{}{
					"attributes": map[string]interface{}{
						"id":           "quote-1",
						"totalPremium": map[string]interface{}{"amount": float64(2500)},
					},
				},
			}},
			{Status: 200, Body: map[string]interface{}{
				"data": []interface{}{
					map[string]interface{}{
						"attributes": map[string]interface{}{
							"id":   "doc-1",
							"name": "Quote.pdf",
							"type": "quote",
						},
					},
				},
			}},
		}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	out, err := client.CreateQuoteWithDocuments(context.Background(), "pc:2002")
	require.NoError(t, err)

	assert.Equal(t, "pc:2002", out.JobID)
	assert.Equal(t, "quote-1", out.Quote["id"])
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "doc-1", out.Documents[0].ID)
	assert.Equal(t, "Quote.pdf", out.Documents[0].Name)
}

func TestClient_GetDocumentURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{
			{Status: 200, Body: map[string]interface{}{"downloadUrl": "https://carrier.example/doc-1"}},
		}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	url, err := client.GetDocumentURL(context.Background(), "pc:2002", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "https://carrier.example/doc-1", url)
}

func TestClient_GetDocumentURL_Missing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CompositeResponse{Responses: []StepResponse{
			{Status: 200, Body: map[string]interface{}{}},
		}})
	}))
	defer server.Close()

	client := createTestClient(t, createClientConfig(server.URL))
	_, err := client.GetDocumentURL(context.Background(), "pc:2002", "doc-1")
	assert.Error(t, err)
}

// ==========================
// Status Mapping Tests
// ==========================

func TestWorkItemStatus(t *testing.T) {
	tests := []struct {
		jobStatus string
		want      string
	}{
		{"Draft", "IN_REVIEW"},
		{"Quoted", "QUOTED"},
		{"Bound", "POLICY_ISSUED"},
		{"Cancelled", "CANCELLED"},
		{"Declined", "DECLINED"},
		{"Withdrawn", "WITHDRAWN"},
		{"SomethingNew", "IN_REVIEW"},
		{"", "IN_REVIEW"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorkItemStatus(tt.jobStatus), "job status %q", tt.jobStatus)
	}
}
