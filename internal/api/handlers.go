package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
	"uw-workbench/internal/common/validation"
	"uw-workbench/internal/pipeline"
	"uw-workbench/internal/store"
)

// ProgressReader is the read side of the progress store the handlers need.
type ProgressReader interface {
	Get(ctx context.Context, submissionID string) (*store.SyncProgress, error)
	Search(ctx context.Context, term string, limit int) ([]*store.SyncProgress, error)
	Recent(ctx context.Context, limit int) ([]*store.SyncProgress, error)
	Summary(ctx context.Context) (*store.StatusSummary, error)
}

// Runner triggers pipeline runs for manual re-syncs.
type Runner interface {
	CreateSubmission(ctx context.Context, record *pipeline.BusinessRecord) *pipeline.RunResult
	CreateAccountOnly(ctx context.Context, record *pipeline.BusinessRecord) *pipeline.RunResult
	CreateSubmissionForExistingAccount(ctx context.Context, record *pipeline.BusinessRecord, account pipeline.ExistingAccount) *pipeline.RunResult
}

// Handler serves the sync API endpoints.
type Handler struct {
	progress ProgressReader
	runner   Runner
	logger   logger.Logger
}

func NewHandler(progress ProgressReader, runner Runner, log logger.Logger) *Handler {
	return &Handler{progress: progress, runner: runner, logger: log}
}

// GetStatus returns the sync progress row for one submission.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("submissionID")
	if submissionID == "" {
		writeError(w, http.StatusBadRequest, "submission id is required")
		return
	}

	p, err := h.progress.Get(r.Context(), submissionID)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeProgressNotFound {
			writeError(w, http.StatusNotFound, "no sync progress for submission "+submissionID)
			return
		}
		h.logger.WithError(err).Error("Status lookup failed", map[string]interface{}{
			"submissionId": submissionID,
		})
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GetLookups returns the status summary together with the most recent rows.
func (h *Handler) GetLookups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.progress.Summary(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Summary query failed", nil)
		writeError(w, http.StatusInternalServerError, "summary query failed")
		return
	}

	limit := queryLimit(r, 20)
	recent, err := h.progress.Recent(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Recent query failed", nil)
		writeError(w, http.StatusInternalServerError, "recent query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": summary,
		"recent":  recent,
	})
}

// Search finds progress rows matching the term against account number, job
// number or organization name.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.PathValue("term")
	if term == "" {
		writeError(w, http.StatusBadRequest, "search term is required")
		return
	}

	results, err := h.progress.Search(r.Context(), term, queryLimit(r, 50))
	if err != nil {
		h.logger.WithError(err).Error("Search query failed", map[string]interface{}{
			"term": term,
		})
		writeError(w, http.StatusInternalServerError, "search query failed")
		return
	}
	if results == nil {
		results = []*store.SyncProgress{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"term":    term,
		"count":   len(results),
		"results": results,
	})
}

// manualSyncRequest is the POST body for a manual re-sync.
type manualSyncRequest struct {
	Intent           string                 `json:"intent,omitempty"`
	AccountID        string                 `json:"account_id,omitempty"`
	AccountNumber    string                 `json:"account_number,omitempty"`
	OrganizationName string                 `json:"organization_name,omitempty"`
	Record           map[string]interface{} `json:"record"`
}

// ManualSync validates the record and runs the pipeline synchronously.
func (h *Handler) ManualSync(w http.ResponseWriter, r *http.Request) {
	var req manualSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Record == nil {
		writeError(w, http.StatusBadRequest, "record is required")
		return
	}

	if result := validation.ValidateBusinessRecord(req.Record); !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "record validation failed",
			"issues": result.GetErrorMessages(),
		})
		return
	}

	record, err := decodeRecord(req.Record)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record: "+err.Error())
		return
	}
	if record.SubmissionID == "" {
		writeError(w, http.StatusBadRequest, "submission_id is required")
		return
	}

	var run *pipeline.RunResult
	switch req.Intent {
	case "", string(pipeline.IntentFullChain):
		run = h.runner.CreateSubmission(r.Context(), record)
	case string(pipeline.IntentAccountOnly):
		run = h.runner.CreateAccountOnly(r.Context(), record)
	case string(pipeline.IntentExistingAccount):
		if req.AccountID == "" {
			writeError(w, http.StatusBadRequest, "account_id is required for existing_account intent")
			return
		}
		run = h.runner.CreateSubmissionForExistingAccount(r.Context(), record, pipeline.ExistingAccount{
			AccountID:        req.AccountID,
			AccountNumber:    req.AccountNumber,
			OrganizationName: req.OrganizationName,
		})
	default:
		writeError(w, http.StatusBadRequest, "unknown intent: "+req.Intent)
		return
	}

	status := http.StatusOK
	if run.SyncStatus == store.StatusFailed {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, run)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   nowRFC3339(),
	})
}

// decodeRecord round-trips the validated map into the typed record. The
// schema has already vetted the field types, so decode errors here mean a
// shape the schema does not cover.
func decodeRecord(raw map[string]interface{}) (*pipeline.BusinessRecord, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var record pipeline.BusinessRecord
	if err := json.Unmarshal(buf, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return fallback
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

