package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type SagaKind string

const (
	SagaKindIssue         SagaKind = "issue"
	SagaKindIssueVersion  SagaKind = "issue_version"
	SagaKindAdminMintFree SagaKind = "admin_mint_free"
	SagaKindAdminRevoke   SagaKind = "admin_revoke"
	SagaKindAdminCall     SagaKind = "admin_call"
)

type Stage string

const (
	StageValidate          Stage = "VALIDATE"
	StageAuthorize         Stage = "AUTHORIZE"
	StagePublish           Stage = "PUBLISH"
	StageRecord            Stage = "RECORD"
	StageVersionRecord     Stage = "VERSION_RECORD"
	StageLedgerMint        Stage = "LEDGER_MINT"
	StageLedgerVersionMint Stage = "LEDGER_VERSION_MINT"
	StageTokenBind         Stage = "TOKEN_BIND"
	StageReferralUpdate    Stage = "REFERRAL_UPDATE"
	StageLedgerRevoke      Stage = "LEDGER_REVOKE"
	StageRecordDelete      Stage = "RECORD_DELETE"
	StageLedgerCall        Stage = "LEDGER_CALL"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepCommitted StepStatus = "committed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	// StepUnknown marks a broadcast ledger step whose outcome was not observed.
	StepUnknown StepStatus = "unknown"
)

type SagaStatus string

const (
	SagaRunning             SagaStatus = "running"
	SagaCompleted           SagaStatus = "completed"
	SagaFailed              SagaStatus = "failed"
	SagaPendingConfirmation SagaStatus = "pending_confirmation"
)

// Open reports whether a saga may still progress without an operator. Failed
// sagas are resumed explicitly, never swept.
func (s SagaStatus) Open() bool {
	return s == SagaRunning || s == SagaPendingConfirmation
}

type SagaStep struct {
	Stage     Stage
	Status    StepStatus
	TxHash    string
	Error     string
	ErrorCode string
	UpdatedAt time.Time
}

// SagaInput carries everything a resumed saga needs to replay its remaining
// steps. Outputs of committed steps (CID, URI, TokenID) are written back here.
// ReferrerCredited records that the referrer held a certificate at RECORD;
// Referrer itself always goes to the contract.
type SagaInput struct {
	Caller           string
	Owner            string
	Referrer         string
	ReferrerCredited bool
	Content          Content
	Free             bool
	CID              string
	URI              string
	TokenID          string
	VersionID        string
	Created          bool
	Call             LedgerCall
}

// Saga is the inspectable journal of one cross-system workflow.
type Saga struct {
	ID        string
	Kind      SagaKind
	Status    SagaStatus
	Input     SagaInput
	Steps     []SagaStep
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Saga) Clone() Saga {
	cloned := s
	cloned.Input.Content = s.Input.Content.Clone()
	cloned.Steps = append([]SagaStep(nil), s.Steps...)
	return cloned
}

func (s Saga) Step(stage Stage) (SagaStep, bool) {
	for _, step := range s.Steps {
		if step.Stage == stage {
			return step, true
		}
	}
	return SagaStep{}, false
}

// LastCommitted returns the most recent committed stage in plan order.
func (s Saga) LastCommitted() (Stage, bool) {
	for i := len(s.Steps) - 1; i >= 0; i-- {
		if s.Steps[i].Status == StepCommitted {
			return s.Steps[i].Stage, true
		}
	}
	return "", false
}

// NextStage returns the first planned stage that is neither committed nor skipped.
func (s Saga) NextStage() (Stage, bool) {
	for _, step := range s.Steps {
		if step.Status != StepCommitted && step.Status != StepSkipped {
			return step.Stage, true
		}
	}
	return "", false
}

func (s Saga) awaitingConfirmation() bool {
	for _, step := range s.Steps {
		if step.Status == StepUnknown {
			return true
		}
	}
	return false
}

func (s Saga) Done() bool {
	_, pending := s.NextStage()
	return !pending
}

func (s *Saga) setStep(stage Stage, status StepStatus, txHash string, err error, at time.Time) {
	for i := range s.Steps {
		if s.Steps[i].Stage != stage {
			continue
		}
		s.Steps[i].Status = status
		if strings.TrimSpace(txHash) != "" {
			s.Steps[i].TxHash = strings.TrimSpace(txHash)
		}
		s.Steps[i].Error = ""
		s.Steps[i].ErrorCode = ""
		if err != nil {
			s.Steps[i].Error = err.Error()
			var rich *goerrors.Error
			if goerrors.As(err, &rich) && rich != nil {
				s.Steps[i].ErrorCode = rich.TextCode
			}
		}
		s.Steps[i].UpdatedAt = at
		return
	}
	s.Steps = append(s.Steps, SagaStep{Stage: stage, Status: status, TxHash: strings.TrimSpace(txHash), UpdatedAt: at})
	if err != nil {
		s.setStep(stage, status, txHash, err, at)
	}
}

func newSaga(kind SagaKind, input SagaInput, now time.Time, stages ...Stage) Saga {
	steps := make([]SagaStep, 0, len(stages))
	for _, stage := range stages {
		steps = append(steps, SagaStep{Stage: stage, Status: StepPending, UpdatedAt: now})
	}
	return Saga{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    SagaRunning,
		Input:     input,
		Steps:     steps,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// sagaRun drives one saga through its steps and journals every transition.
// Committed steps are skipped so the same workflow code serves resumption.
type sagaRun struct {
	svc  *Service
	saga *Saga
}

// receipt rebuilds the receipt of a ledger stage committed by an earlier run.
func (r *sagaRun) receipt(stage Stage, operation LedgerOperation) Receipt {
	step, _ := r.saga.Step(stage)
	receipt := Receipt{Operation: operation, TxHash: step.TxHash, Status: ReceiptStatusSuccess}
	if operation == LedgerOpMintFor {
		receipt.TokenID = r.saga.Input.TokenID
	}
	return receipt
}

func (s *Service) startSaga(ctx context.Context, kind SagaKind, input SagaInput, stages ...Stage) *sagaRun {
	saga := newSaga(kind, input, s.now(), stages...)
	run := &sagaRun{svc: s, saga: &saga}
	run.commit(ctx, StageValidate)
	return run
}

func (s *Service) resumeRun(saga Saga) *sagaRun {
	saga.Status = SagaRunning
	return &sagaRun{svc: s, saga: &saga}
}

func (r *sagaRun) id() string {
	if r == nil || r.saga == nil {
		return ""
	}
	return r.saga.ID
}

func (r *sagaRun) input() *SagaInput {
	return &r.saga.Input
}

func (r *sagaRun) committed(stage Stage) bool {
	step, ok := r.saga.Step(stage)
	return ok && (step.Status == StepCommitted || step.Status == StepSkipped)
}

// step runs fn unless stage already committed. Failures are journaled and
// returned as a StageError.
func (r *sagaRun) step(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if r.committed(stage) {
		return nil
	}
	return r.execute(ctx, stage, fn)
}

// check always runs fn, even on resume. Used for authorization.
func (r *sagaRun) check(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	return r.execute(ctx, stage, fn)
}

// precheck runs fn as a guard for stage without committing it. A failure is
// journaled against stage so the saga shows what blocked it.
func (r *sagaRun) precheck(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if r.committed(stage) {
		return nil
	}
	if err := fn(ctx); err != nil {
		r.mark(ctx, stage, StepFailed, "", err)
		return &StageError{SagaID: r.id(), Stage: stage, Err: err}
	}
	return nil
}

// fail journals err against stage without running it. A stage holding a
// broadcast transaction keeps its status so a resume polls the hash instead
// of sending again.
func (r *sagaRun) fail(ctx context.Context, stage Stage, err error) error {
	if r.txHash(stage) != "" {
		r.svc.logWarn(ctx, "stage blocked with a broadcast transaction outstanding", map[string]any{
			"saga_id": r.id(),
			"stage":   string(stage),
			"tx_hash": r.txHash(stage),
			"error":   err.Error(),
		})
		return &StageError{SagaID: r.id(), Stage: stage, Err: err}
	}
	r.mark(ctx, stage, StepFailed, "", err)
	return &StageError{SagaID: r.id(), Stage: stage, Err: err}
}

func (r *sagaRun) execute(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		status := StepFailed
		if IsConfirmationPending(err) {
			status = StepUnknown
		}
		r.mark(ctx, stage, status, TxHashFromError(err), err)
		return &StageError{SagaID: r.id(), Stage: stage, Err: err}
	}
	r.commit(ctx, stage)
	return nil
}

func (r *sagaRun) commit(ctx context.Context, stage Stage) {
	r.mark(ctx, stage, StepCommitted, "", nil)
}

func (r *sagaRun) skip(ctx context.Context, stage Stage) {
	if r.committed(stage) {
		return
	}
	r.mark(ctx, stage, StepSkipped, "", nil)
}

func (r *sagaRun) recordTx(ctx context.Context, stage Stage, txHash string) {
	r.mark(ctx, stage, StepPending, txHash, nil)
}

// txHash returns the hash recorded for a ledger stage that may still mine.
// Failed steps report none so a resume resubmits them.
func (r *sagaRun) txHash(stage Stage) string {
	step, ok := r.saga.Step(stage)
	if !ok || step.Status == StepFailed {
		return ""
	}
	return step.TxHash
}

func (r *sagaRun) mark(ctx context.Context, stage Stage, status StepStatus, txHash string, err error) {
	now := r.svc.now()
	r.saga.setStep(stage, status, txHash, err, now)
	r.saga.UpdatedAt = now
	switch {
	case status == StepUnknown:
		r.saga.Status = SagaPendingConfirmation
	case status == StepFailed:
		r.saga.Status = SagaFailed
	case r.saga.Done():
		r.saga.Status = SagaCompleted
	case r.saga.awaitingConfirmation():
		r.saga.Status = SagaPendingConfirmation
	default:
		r.saga.Status = SagaRunning
	}
	r.persist(ctx)
}

// persist writes the journal. A journal write failure does not abort the
// workflow but is logged so the saga can be reconstructed from logs.
func (r *sagaRun) persist(ctx context.Context) {
	if r.svc.sagaStore == nil {
		return
	}
	if err := r.svc.sagaStore.Save(ctx, r.saga.Clone()); err != nil {
		r.svc.recordCounter(ctx, MetricSagaJournalFailures, 1, map[string]string{
			"kind": string(r.saga.Kind),
		})
		r.svc.logError(ctx, "saga journal write failed", map[string]any{
			"saga_id":     r.saga.ID,
			"saga_kind":   string(r.saga.Kind),
			"saga_status": string(r.saga.Status),
			"error":       err.Error(),
		})
	}
}

func (r *sagaRun) snapshot() Saga {
	return r.saga.Clone()
}
