// Package store persists per-submission sync progress and the raw carrier
// responses backing it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"uw-workbench/internal/common/database"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
)

// Sync status values. partial means the account exists but the submission
// chain did not finish; failed means nothing was created.
const (
	StatusPending  = "pending"
	StatusPartial  = "partial"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// SyncProgress is the durable record of one submission's journey to the
// carrier.
type SyncProgress struct {
	SubmissionID        string          `json:"submissionId"`
	WorkItemID          string          `json:"workItemId,omitempty"`
	AccountID           string          `json:"accountId,omitempty"`
	AccountNumber       string          `json:"accountNumber,omitempty"`
	JobID               string          `json:"jobId,omitempty"`
	JobNumber           string          `json:"jobNumber,omitempty"`
	OrganizationName    string          `json:"organizationName,omitempty"`
	AccountCreated      bool            `json:"accountCreated"`
	SubmissionCreated   bool            `json:"submissionCreated"`
	SyncStatus          string          `json:"syncStatus"`
	Simulated           bool            `json:"simulated"`
	CoverageAmount      int64           `json:"coverageAmount,omitempty"`
	Industry            string          `json:"industry,omitempty"`
	ContactEmail        string          `json:"contactEmail,omitempty"`
	LastError           string          `json:"lastError,omitempty"`
	RetryCount          int             `json:"retryCount"`
	RawResponse         json.RawMessage `json:"rawResponse,omitempty"`
	Checksum            string          `json:"checksum,omitempty"`
	AccountCreatedAt    *time.Time      `json:"accountCreatedAt,omitempty"`
	SubmissionCreatedAt *time.Time      `json:"submissionCreatedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// ComputeStatus derives the sync status from the created flags. A run that
// errored before creating anything stays failed; otherwise the booleans
// decide.
func (p *SyncProgress) ComputeStatus() string {
	switch {
	case p.AccountCreated && p.SubmissionCreated:
		return StatusComplete
	case p.AccountCreated:
		return StatusPartial
	case p.LastError != "":
		return StatusFailed
	default:
		return StatusPending
	}
}

// StatusSummary aggregates row counts per sync status.
type StatusSummary struct {
	Pending  int `json:"pending"`
	Partial  int `json:"partial"`
	Complete int `json:"complete"`
	Failed   int `json:"failed"`
}

// ProgressStore reads and writes sync progress rows.
type ProgressStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewProgressStore(db *database.PostgresClient, log logger.Logger) *ProgressStore {
	return &ProgressStore{db: db, logger: log}
}

const upsertProgressSQL = `
INSERT INTO sync_progress (
	submission_id, work_item_id, account_id, account_number, job_id, job_number,
	organization_name, account_created, submission_created, sync_status, simulated,
	coverage_amount, industry, contact_email, last_error, retry_count,
	raw_response, checksum, account_created_at, submission_created_at,
	created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),NOW())
ON CONFLICT (submission_id) DO UPDATE SET
	work_item_id = EXCLUDED.work_item_id,
	account_id = COALESCE(NULLIF(EXCLUDED.account_id, ''), sync_progress.account_id),
	account_number = COALESCE(NULLIF(EXCLUDED.account_number, ''), sync_progress.account_number),
	job_id = COALESCE(NULLIF(EXCLUDED.job_id, ''), sync_progress.job_id),
	job_number = COALESCE(NULLIF(EXCLUDED.job_number, ''), sync_progress.job_number),
	organization_name = COALESCE(NULLIF(EXCLUDED.organization_name, ''), sync_progress.organization_name),
	account_created = sync_progress.account_created OR EXCLUDED.account_created,
	submission_created = sync_progress.submission_created OR EXCLUDED.submission_created,
	sync_status = EXCLUDED.sync_status,
	simulated = EXCLUDED.simulated,
	coverage_amount = EXCLUDED.coverage_amount,
	industry = EXCLUDED.industry,
	contact_email = EXCLUDED.contact_email,
	last_error = CASE
		WHEN EXCLUDED.last_error = '' THEN sync_progress.last_error
		WHEN sync_progress.last_error = '' THEN EXCLUDED.last_error
		ELSE sync_progress.last_error || E'\n' || EXCLUDED.last_error
	END,
	retry_count = EXCLUDED.retry_count,
	raw_response = COALESCE(EXCLUDED.raw_response, sync_progress.raw_response),
	checksum = COALESCE(NULLIF(EXCLUDED.checksum, ''), sync_progress.checksum),
	account_created_at = COALESCE(sync_progress.account_created_at, EXCLUDED.account_created_at),
	submission_created_at = COALESCE(sync_progress.submission_created_at, EXCLUDED.submission_created_at),
	updated_at = NOW()`

// Upsert writes the row, merging with any previous state: created flags only
// ever move forward, errors append, identifiers are never blanked out.
func (s *ProgressStore) Upsert(ctx context.Context, p *SyncProgress) error {
	if p.SyncStatus == "" {
		p.SyncStatus = p.ComputeStatus()
	}

	_, err := s.db.Exec(ctx, upsertProgressSQL,
		p.SubmissionID, p.WorkItemID, p.AccountID, p.AccountNumber, p.JobID, p.JobNumber,
		p.OrganizationName, p.AccountCreated, p.SubmissionCreated, p.SyncStatus, p.Simulated,
		p.CoverageAmount, p.Industry, p.ContactEmail, p.LastError, p.RetryCount,
		nullableJSON(p.RawResponse), p.Checksum, p.AccountCreatedAt, p.SubmissionCreatedAt,
	)
	if err != nil {
		return errors.NewProgressUpsertFailedError(p.SubmissionID, err)
	}

	s.logger.Debug("Upserted sync progress", map[string]interface{}{
		"submissionId": p.SubmissionID,
		"syncStatus":   p.SyncStatus,
	})
	return nil
}

const selectProgressSQL = `
SELECT submission_id, work_item_id, account_id, account_number, job_id, job_number,
	organization_name, account_created, submission_created, sync_status, simulated,
	coverage_amount, industry, contact_email, last_error, retry_count,
	raw_response, checksum, account_created_at, submission_created_at,
	created_at, updated_at
FROM sync_progress`

// Get returns the progress row for a submission, or a PROGRESS_NOT_FOUND
// error when no row exists.
func (s *ProgressStore) Get(ctx context.Context, submissionID string) (*SyncProgress, error) {
	row := s.db.QueryRow(ctx, selectProgressSQL+" WHERE submission_id = $1", submissionID)
	p, err := scanProgress(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewProgressNotFoundError(submissionID)
	}
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	return p, nil
}

// Search finds rows whose account number, job number or organization name
// matches the term, newest first.
func (s *ProgressStore) Search(ctx context.Context, term string, limit int) ([]*SyncProgress, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + term + "%"
	rows, err := s.db.Query(ctx,
		selectProgressSQL+` WHERE account_number ILIKE $1 OR job_number ILIKE $1 OR organization_name ILIKE $1
		ORDER BY updated_at DESC LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// ListByStatus returns rows with the given sync status, newest first.
func (s *ProgressStore) ListByStatus(ctx context.Context, status string, limit int) ([]*SyncProgress, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		selectProgressSQL+" WHERE sync_status = $1 ORDER BY updated_at DESC LIMIT $2",
		status, limit,
	)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// Recent returns the most recently updated rows.
func (s *ProgressStore) Recent(ctx context.Context, limit int) ([]*SyncProgress, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, selectProgressSQL+" ORDER BY updated_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()
	return scanProgressRows(rows)
}

// Summary counts rows per sync status.
func (s *ProgressStore) Summary(ctx context.Context) (*StatusSummary, error) {
	rows, err := s.db.Query(ctx, "SELECT sync_status, COUNT(*) FROM sync_progress GROUP BY sync_status")
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer rows.Close()

	summary := &StatusSummary{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusPartial:
			summary.Partial = count
		case StatusComplete:
			summary.Complete = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgress(row rowScanner) (*SyncProgress, error) {
	var p SyncProgress
	var workItemID, accountID, accountNumber, jobID, jobNumber sql.NullString
	var orgName, industry, contactEmail, lastError, checksum sql.NullString
	var rawResponse []byte
	var accountCreatedAt, submissionCreatedAt sql.NullTime

	err := row.Scan(
		&p.SubmissionID, &workItemID, &accountID, &accountNumber, &jobID, &jobNumber,
		&orgName, &p.AccountCreated, &p.SubmissionCreated, &p.SyncStatus, &p.Simulated,
		&p.CoverageAmount, &industry, &contactEmail, &lastError, &p.RetryCount,
		&rawResponse, &checksum, &accountCreatedAt, &submissionCreatedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.WorkItemID = workItemID.String
	p.AccountID = accountID.String
	p.AccountNumber = accountNumber.String
	p.JobID = jobID.String
	p.JobNumber = jobNumber.String
	p.OrganizationName = orgName.String
	p.Industry = industry.String
	p.ContactEmail = contactEmail.String
	p.LastError = lastError.String
	p.Checksum = checksum.String
	p.RawResponse = rawResponse
	if accountCreatedAt.Valid {
		p.AccountCreatedAt = &accountCreatedAt.Time
	}
	if submissionCreatedAt.Valid {
		p.SubmissionCreatedAt = &submissionCreatedAt.Time
	}
	return &p, nil
}

func scanProgressRows(rows *sql.Rows) ([]*SyncProgress, error) {
	var out []*SyncProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, errors.NewDatabaseConnectionFailedError(err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
