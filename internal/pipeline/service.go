package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"uw-workbench/internal/carrier"
	"uw-workbench/internal/common/config"
	"uw-workbench/internal/common/errors"
	"uw-workbench/internal/common/logger"
	"uw-workbench/internal/common/metrics"
	"uw-workbench/internal/store"
)

// Executor sends composite requests to the carrier.
type Executor interface {
	Execute(ctx context.Context, req *carrier.CompositeRequest) (*carrier.CompositeResponse, error)
}

// ProgressTracker persists per-submission sync progress.
type ProgressTracker interface {
	Get(ctx context.Context, submissionID string) (*store.SyncProgress, error)
	Upsert(ctx context.Context, p *store.SyncProgress) error
}

// ChecksumCache short-circuits re-ingesting an unchanged carrier response.
type ChecksumCache interface {
	Seen(ctx context.Context, submissionID, checksum string) (bool, error)
	Remember(ctx context.Context, submissionID, checksum string) error
}

// Alerter notifies operators about failed or partial runs. Optional.
type Alerter interface {
	AlertRunOutcome(ctx context.Context, submissionID, status, errMsg string) error
}

// RunRecorder receives per-run telemetry. Optional.
type RunRecorder interface {
	RecordRunProcessed(ctx context.Context, status string)
	RecordRunDuration(ctx context.Context, duration time.Duration, status string)
}

// Service orchestrates submission runs end to end. It never panics and
// never lets one submission's failure corrupt another's tracked state.
type Service struct {
	cfg       config.PipelineConfig
	executor  Executor
	mapper    *Mapper
	simulator *Simulator
	tracker   ProgressTracker
	checksums ChecksumCache
	alerter   Alerter
	recorder  RunRecorder
	handler   *errors.Handler
	logger    logger.Logger
}

type ServiceOptions struct {
	Config    config.PipelineConfig
	Executor  Executor
	Tracker   ProgressTracker
	Checksums ChecksumCache
	Alerter   Alerter
	Recorder  RunRecorder
	Logger    logger.Logger
}

func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Tracker == nil {
		return nil, fmt.Errorf("progress tracker is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Config.MaxAttempts <= 0 {
		opts.Config.MaxAttempts = 3
	}
	if opts.Config.RetryDelay <= 0 {
		opts.Config.RetryDelay = 1000
	}

	return &Service{
		cfg:       opts.Config,
		executor:  opts.Executor,
		mapper:    NewMapper(opts.Config),
		simulator: NewSimulator(),
		tracker:   opts.Tracker,
		checksums: opts.Checksums,
		alerter:   opts.Alerter,
		recorder:  opts.Recorder,
		handler:   errors.NewHandler(opts.Logger),
		logger:    opts.Logger,
	}, nil
}

// CreateSubmission runs the full chain for a record: account, submission,
// coverages, line details, quote. Previously created accounts are reused
// instead of re-issued.
func (s *Service) CreateSubmission(ctx context.Context, record *BusinessRecord) *RunResult {
	return s.run(ctx, record, IntentFullChain, nil)
}

// CreateAccountOnly creates just the carrier account for a record.
func (s *Service) CreateAccountOnly(ctx context.Context, record *BusinessRecord) *RunResult {
	return s.run(ctx, record, IntentAccountOnly, nil)
}

// CreateSubmissionForExistingAccount runs the submission steps against an
// account that already exists. The account's number and organization name are
// carried into the progress row so lookups by those values keep working even
// when this run created no prior row.
func (s *Service) CreateSubmissionForExistingAccount(ctx context.Context, record *BusinessRecord, account ExistingAccount) *RunResult {
	return s.run(ctx, record, IntentExistingAccount, &account)
}

func (s *Service) run(ctx context.Context, record *BusinessRecord, intent Intent, existing *ExistingAccount) *RunResult {
	started := time.Now()

	result := &RunResult{
		SubmissionID: record.SubmissionID,
		Intent:       intent,
		StartedAt:    started,
	}

	spec, notes := s.mapper.Map(record)
	result.Notes = notes

	// Consult prior progress to keep the run idempotent.
	prior, _ := s.tracker.Get(ctx, record.SubmissionID)
	if prior != nil && prior.SyncStatus == store.StatusComplete && intent != IntentAccountOnly {
		s.logger.Info("Submission already synced, skipping", map[string]interface{}{
			"submissionId": record.SubmissionID,
		})
		result.SyncStatus = store.StatusComplete
		result.FinishedAt = time.Now()
		return result
	}

	mode := carrier.ModeBundled
	bindings := carrier.BindingTable{}
	switch {
	case intent == IntentAccountOnly:
		mode = carrier.ModeAccountOnly
	case intent == IntentExistingAccount:
		mode = carrier.ModeForExistingAccount
		bindings["accountId"] = existing.AccountID
	case prior != nil && prior.AccountCreated && prior.AccountID != "":
		// The account survived an earlier partial run; never create it twice.
		mode = carrier.ModeForExistingAccount
		bindings["accountId"] = prior.AccountID
	case prior != nil && prior.RetryCount > 0:
		// A failed earlier attempt may have left a same-named account behind
		// on the carrier side. Suffix the name so the retry cannot collide.
		spec.CompanyName = fmt.Sprintf("%s %06d", spec.CompanyName, rand.Intn(1000000))
	}

	// Retries only accumulate on errored runs; a clean re-sync carries the
	// prior count forward untouched.
	priorRetries := 0
	if prior != nil {
		priorRetries = prior.RetryCount
	}

	var runErr error
	var parsed *carrier.SubmissionResult
	var attempts int

	if s.cfg.SplitMode && mode == carrier.ModeBundled {
		parsed, attempts, runErr = s.executeSplit(ctx, spec)
	} else {
		parsed, attempts, runErr = s.executeComposite(ctx, spec, mode, bindings, record.SubmissionID)
	}
	result.Attempts = attempts

	if parsed != nil && existing != nil {
		if parsed.Account.AccountNumber == "" {
			parsed.Account.AccountNumber = existing.AccountNumber
		}
		if parsed.Account.OrganizationName == "" {
			parsed.Account.OrganizationName = existing.OrganizationName
		}
	}

	switch {
	case runErr == nil:
		s.persistSuccess(ctx, record, spec, parsed, priorRetries)
		result.Result = parsed
		if intent == IntentAccountOnly {
			result.SyncStatus = store.StatusPartial
		} else {
			result.SyncStatus = store.StatusComplete
		}
		metrics.PipelineRunsCompleted.WithLabelValues(string(intent)).Inc()

	case errors.IsTransport(runErr) && s.cfg.SimulateOnError && !hasRealAccount(parsed):
		s.handler.Log(record.SubmissionID, runErr, errors.OutcomeSimulate, s.cfg.MaxAttempts)
		parsed = s.simulator.Simulate(spec)
		s.persistSuccess(ctx, record, spec, parsed, priorRetries)
		result.Result = parsed
		result.SyncStatus = store.StatusComplete
		metrics.PipelineRunsSimulated.WithLabelValues(string(intent)).Inc()

	default:
		// Transport failures after a real account exists land here: the row
		// stays partial with the live carrier ids, never a simulated one.
		result.SyncStatus = s.persistFailure(ctx, record, spec, runErr, parsed, priorRetries+1)
		result.Error = runErr.Error()
		metrics.PipelineRunsFailed.WithLabelValues(string(intent), string(errors.CodeOf(runErr))).Inc()
		s.alert(ctx, record.SubmissionID, result.SyncStatus, runErr)
	}

	result.FinishedAt = time.Now()
	metrics.PipelineRunDuration.WithLabelValues(string(intent)).Observe(result.FinishedAt.Sub(started).Seconds())
	if s.recorder != nil {
		s.recorder.RecordRunProcessed(ctx, result.SyncStatus)
		s.recorder.RecordRunDuration(ctx, result.FinishedAt.Sub(started), result.SyncStatus)
	}
	return result
}

// executeComposite sends one composite call for the mode, retrying transport
// failures up to the configured attempt cap. Returns the number of attempts
// actually made.
func (s *Service) executeComposite(ctx context.Context, spec *carrier.SubmissionSpec, mode carrier.Mode, bindings carrier.BindingTable, submissionID string) (*carrier.SubmissionResult, int, error) {
	steps := carrier.BuildChain(spec, mode)

	resolved, err := carrier.Resolve(steps, bindings)
	if err != nil {
		return nil, 0, err
	}

	resp, attempts, err := s.executeWithRetry(ctx, &carrier.CompositeRequest{Requests: resolved}, submissionID)
	if err != nil {
		return nil, attempts, err
	}

	if mode == carrier.ModeAccountOnly {
		if len(resp.Responses) == 0 {
			return nil, attempts, errors.NewParseError("account", fmt.Errorf("composite response has no entries"))
		}
		account, err := carrier.ParseAccountEntry(resp.Responses[0])
		if err != nil {
			return nil, attempts, err
		}
		return &carrier.SubmissionResult{
			Account:  *account,
			Checksum: carrier.Checksum(resp.Responses),
		}, attempts, nil
	}

	if mode == carrier.ModeForExistingAccount {
		parsed, err := s.parseSubmissionOnly(resp, bindings["accountId"])
		return parsed, attempts, err
	}

	parsed, err := carrier.ParseSubmissionResponse(resp)
	return parsed, attempts, err
}

// executeSplit issues the account step alone, extracts the account id
// locally, then sends the remaining steps with client-resolved bindings.
// A failure after the account step persists as partial rather than failed.
func (s *Service) executeSplit(ctx context.Context, spec *carrier.SubmissionSpec) (*carrier.SubmissionResult, int, error) {
	accountSteps := carrier.BuildChain(spec, carrier.ModeAccountOnly)
	accountResp, attempts, err := s.executeWithRetry(ctx, &carrier.CompositeRequest{Requests: accountSteps}, spec.SubmissionID)
	if err != nil {
		return nil, attempts, err
	}
	if len(accountResp.Responses) == 0 {
		return nil, attempts, errors.NewParseError("account", fmt.Errorf("composite response has no entries"))
	}

	account, err := carrier.ParseAccountEntry(accountResp.Responses[0])
	if err != nil {
		return nil, attempts, err
	}

	bindings := carrier.BindingTable{}
	if err := carrier.ExtractVars(accountResp.Responses[0], accountSteps[0].Vars, bindings); err != nil {
		return nil, attempts, err
	}

	rest := carrier.BuildChain(spec, carrier.ModeForExistingAccount)
	resolved, err := carrier.Resolve(rest, bindings)
	if err != nil {
		return partialWithAccount(account, attempts, err)
	}

	resp, restAttempts, err := s.executeWithRetry(ctx, &carrier.CompositeRequest{Requests: resolved}, spec.SubmissionID)
	attempts += restAttempts
	if err != nil {
		return partialWithAccount(account, attempts, err)
	}

	// Prepend the account entry so the positional parser sees the full chain.
	full := &carrier.CompositeResponse{
		Responses: append(accountResp.Responses, resp.Responses...),
	}
	parsed, err := carrier.ParseSubmissionResponse(full)
	if err != nil {
		return partialWithAccount(account, attempts, err)
	}
	return parsed, attempts, nil
}

// partialWithAccount returns the account info alongside the error so the
// failure path can persist a partial row.
func partialWithAccount(account *carrier.AccountInfo, attempts int, err error) (*carrier.SubmissionResult, int, error) {
	return &carrier.SubmissionResult{Account: *account}, attempts, err
}

func hasRealAccount(parsed *carrier.SubmissionResult) bool {
	return parsed != nil && parsed.Account.AccountID != ""
}

func (s *Service) parseSubmissionOnly(resp *carrier.CompositeResponse, accountID string) (*carrier.SubmissionResult, error) {
	// Shift a synthetic account entry in front so positional parsing holds.
	synthetic := carrier.StepResponse{
		Status: 200,
		Body: map[string]interface{}{
			"data": map[string]interface{}{
				"attributes": map[string]interface{}{"id": accountID},
			},
		},
	}
	full := &carrier.CompositeResponse{
		Responses: append([]carrier.StepResponse{synthetic}, resp.Responses...),
	}
	parsed, err := carrier.ParseSubmissionResponse(full)
	if err != nil {
		return nil, err
	}
	// The synthetic entry must not leak into the stored checksum.
	parsed.Checksum = carrier.Checksum(resp.Responses)
	return parsed, nil
}

func (s *Service) executeWithRetry(ctx context.Context, req *carrier.CompositeRequest, submissionID string) (*carrier.CompositeResponse, int, error) {
	var lastErr error
	delay := config.GetDuration(s.cfg.RetryDelay)

	attempts := 0
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		resp, err := s.executor.Execute(ctx, req)
		if err == nil {
			return resp, attempts, nil
		}
		lastErr = err

		outcome := s.handler.Decide(err, false, attempt, s.cfg.MaxAttempts)
		if outcome != errors.OutcomeRetry {
			break
		}

		s.logger.Warn("Retrying composite call", map[string]interface{}{
			"submissionId": submissionID,
			"attempt":      attempt,
			"error":        err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, attempts, errors.NewTransportError("composite", true, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, attempts, lastErr
}

func (s *Service) persistSuccess(ctx context.Context, record *BusinessRecord, spec *carrier.SubmissionSpec, parsed *carrier.SubmissionResult, retryCount int) {
	if s.checksums != nil && parsed.Checksum != "" {
		if seen, err := s.checksums.Seen(ctx, record.SubmissionID, parsed.Checksum); err == nil && seen {
			s.logger.Debug("Response unchanged, skipping persistence", map[string]interface{}{
				"submissionId": record.SubmissionID,
			})
			return
		}
	}

	now := time.Now().UTC()
	progress := &store.SyncProgress{
		SubmissionID:      record.SubmissionID,
		WorkItemID:        record.WorkItemID,
		AccountID:         parsed.Account.AccountID,
		AccountNumber:     parsed.Account.AccountNumber,
		JobID:             parsed.Job.JobID,
		JobNumber:         parsed.Job.JobNumber,
		OrganizationName:  orgName(parsed, spec),
		AccountCreated:    parsed.Account.AccountID != "",
		SubmissionCreated: parsed.Job.JobID != "",
		Simulated:         parsed.Simulated,
		CoverageAmount:    spec.CoverageAmount,
		Industry:          IndustryCode(record.Industry),
		ContactEmail:      record.ContactEmail,
		RetryCount:        retryCount,
		Checksum:          parsed.Checksum,
	}
	if progress.AccountCreated {
		progress.AccountCreatedAt = &now
	}
	if progress.SubmissionCreated {
		progress.SubmissionCreatedAt = &now
	}
	if raw, err := json.Marshal(parsed); err == nil {
		progress.RawResponse = raw
	}
	progress.SyncStatus = progress.ComputeStatus()

	if err := s.tracker.Upsert(ctx, progress); err != nil {
		s.logger.WithError(err).Error("Failed to persist sync progress", map[string]interface{}{
			"submissionId": record.SubmissionID,
		})
		return
	}

	if s.checksums != nil && parsed.Checksum != "" {
		if err := s.checksums.Remember(ctx, record.SubmissionID, parsed.Checksum); err != nil {
			s.logger.WithError(err).Warn("Failed to cache response checksum", map[string]interface{}{
				"submissionId": record.SubmissionID,
			})
		}
	}
}

// persistFailure records the failed run and returns the resulting status.
func (s *Service) persistFailure(ctx context.Context, record *BusinessRecord, spec *carrier.SubmissionSpec, runErr error, parsed *carrier.SubmissionResult, retryCount int) string {
	progress := &store.SyncProgress{
		SubmissionID:   record.SubmissionID,
		WorkItemID:     record.WorkItemID,
		CoverageAmount: spec.CoverageAmount,
		Industry:       IndustryCode(record.Industry),
		ContactEmail:   record.ContactEmail,
		LastError:      runErr.Error(),
		RetryCount:     retryCount,
	}

	if parsed != nil && parsed.Account.AccountID != "" {
		now := time.Now().UTC()
		progress.AccountID = parsed.Account.AccountID
		progress.AccountNumber = parsed.Account.AccountNumber
		progress.OrganizationName = orgName(parsed, spec)
		progress.AccountCreated = true
		progress.AccountCreatedAt = &now
	}

	progress.SyncStatus = progress.ComputeStatus()
	s.handler.Log(record.SubmissionID, runErr, errors.Outcome(progress.SyncStatus), retryCount)

	if err := s.tracker.Upsert(ctx, progress); err != nil {
		s.logger.WithError(err).Error("Failed to persist failed run", map[string]interface{}{
			"submissionId": record.SubmissionID,
		})
	}
	return progress.SyncStatus
}

func (s *Service) alert(ctx context.Context, submissionID, status string, runErr error) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.AlertRunOutcome(ctx, submissionID, status, runErr.Error()); err != nil {
		s.logger.WithError(err).Warn("Failed to send failure alert", map[string]interface{}{
			"submissionId": submissionID,
		})
	}
}

func orgName(parsed *carrier.SubmissionResult, spec *carrier.SubmissionSpec) string {
	if parsed.Account.OrganizationName != "" {
		return parsed.Account.OrganizationName
	}
	return spec.CompanyName
}
