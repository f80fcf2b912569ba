package carrier

import (
	"context"
	"fmt"
	"time"

	"uw-workbench/internal/common/errors"
)

// QuoteDocument is one entry from the job documents listing.
type QuoteDocument struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// QuoteWithDocuments bundles the quote attributes with the job's documents.
type QuoteWithDocuments struct {
	JobID     string                 `json:"jobId"`
	Quote     map[string]interface{} `json:"quote,omitempty"`
	Documents []QuoteDocument        `json:"documents,omitempty"`
}

// ApproveSubmission patches the job status to approved with the reviewer's
// notes.
func (c *Client) ApproveSubmission(ctx context.Context, jobID, notes string) error {
	req := &CompositeRequest{
		Requests: []Step{
			{
				Method: "patch",
				URI:    fmt.Sprintf("/job/v1/jobs/%s", jobID),
				Body: map[string]interface{}{
					"data": map[string]interface{}{
						"attributes": map[string]interface{}{
							"status":           "approved",
							"underwriterNotes": notes,
							"approvalDate":     time.Now().UTC().Format(time.RFC3339),
						},
					},
				},
			},
		},
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Responses) == 0 || !entryOK(resp.Responses[0]) {
		status := 0
		if len(resp.Responses) > 0 {
			status = resp.Responses[0].Status
		}
		return errors.NewParseError("approval", fmt.Errorf("approval step returned status %d", status))
	}
	return nil
}

// CreateQuoteWithDocuments re-quotes a job and lists its generated documents
// in a single composite call.
func (c *Client) CreateQuoteWithDocuments(ctx context.Context, jobID string) (*QuoteWithDocuments, error) {
	req := &CompositeRequest{
		Requests: []Step{
			{Method: "post", URI: fmt.Sprintf("/job/v1/jobs/%s/quote", jobID)},
			{
				Method: "get",
				URI:    fmt.Sprintf("/job/v1/jobs/%s/quote", jobID),
				Vars:   []VarDecl{{Name: "quoteId", Path: "$.data.attributes.id"}},
			},
			{Method: "get", URI: fmt.Sprintf("/job/v1/jobs/%s/documents", jobID)},
		},
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &QuoteWithDocuments{JobID: jobID}

	if len(resp.Responses) > 1 && entryOK(resp.Responses[1]) {
		if data, ok := resp.Responses[1].Body["data"].(map[string]interface{}); ok {
			if attrs, ok := data["attributes"].(map[string]interface{}); ok {
				out.Quote = attrs
			}
		}
	}

	if len(resp.Responses) > 2 && entryOK(resp.Responses[2]) {
		if docs, ok := resp.Responses[2].Body["data"].([]interface{}); ok {
			for _, raw := range docs {
				doc, ok := raw.(map[string]interface{})
				if !ok {
					continue
				}
				entry := QuoteDocument{ID: stringField(doc, "id")}
				if attrs, ok := doc["attributes"].(map[string]interface{}); ok {
					if entry.ID == "" {
						entry.ID = stringField(attrs, "id")
					}
					entry.Name = stringField(attrs, "name")
					entry.Type = stringField(attrs, "type")
				}
				out.Documents = append(out.Documents, entry)
			}
		}
	}

	return out, nil
}

// GetDocumentURL fetches the download URL for a quote document.
func (c *Client) GetDocumentURL(ctx context.Context, jobID, documentID string) (string, error) {
	req := &CompositeRequest{
		Requests: []Step{
			{Method: "get", URI: fmt.Sprintf("/job/v1/jobs/%s/documents/%s/download", jobID, documentID)},
		},
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Responses) == 0 || !entryOK(resp.Responses[0]) {
		return "", errors.NewParseError("document", fmt.Errorf("document download lookup failed"))
	}

	url := stringField(resp.Responses[0].Body, "downloadUrl")
	if url == "" {
		return "", errors.NewParseError("document", fmt.Errorf("response carries no downloadUrl"))
	}
	return url, nil
}

// WorkItemStatus maps a carrier job status code to the workbench's work item
// status.
func WorkItemStatus(jobStatus string) string {
	switch jobStatus {
	case "Draft":
		return "IN_REVIEW"
	case "Quoted":
		return "QUOTED"
	case "Bound":
		return "POLICY_ISSUED"
	case "Cancelled":
		return "CANCELLED"
	case "Declined":
		return "DECLINED"
	case "Withdrawn":
		return "WITHDRAWN"
	default:
		return "IN_REVIEW"
	}
}
