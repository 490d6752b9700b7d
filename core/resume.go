package core

import (
	"context"
	"strings"
	"time"
)

// SagaResumeJobID identifies resume jobs handed to a JobEnqueuer.
const SagaResumeJobID = "certledger.saga.resume"

func (s *Service) GetSaga(ctx context.Context, id string) (saga Saga, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Saga{}, s.mapError(NewValidationError("saga_id", "saga id is required"))
	}
	saga, err = s.sagaStore.Get(ctx, id)
	if err != nil {
		return Saga{}, s.mapError(err)
	}
	return saga, nil
}

// ListStalledSagas returns open sagas not updated since updatedBefore.
func (s *Service) ListStalledSagas(ctx context.Context, updatedBefore time.Time, limit int) ([]Saga, error) {
	if limit <= 0 {
		limit = s.config.Recovery.BatchSize
	}
	sagas, err := s.sagaStore.ListOpen(ctx, updatedBefore, limit)
	if err != nil {
		return nil, s.mapError(NewStoreError(err, "list_open_sagas"))
	}
	return sagas, nil
}

// ResumeSaga continues a stored saga from its first uncommitted stage.
// Authorization is checked again and broadcast transactions are re-polled.
func (s *Service) ResumeSaga(ctx context.Context, id string) (saga Saga, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"saga_id": strings.TrimSpace(id)}
	defer func() {
		s.observeOperation(ctx, startedAt, "resume_saga", err, fields)
	}()

	stored, err := s.GetSaga(ctx, id)
	if err != nil {
		return Saga{}, err
	}
	fields["saga_kind"] = string(stored.Kind)
	fields["owner"] = stored.Input.Owner
	if stored.Status == SagaCompleted || stored.Done() {
		return stored, nil
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(err)
		return stored, err
	}

	// Revoke sagas lock the token owner themselves once it is known.
	if owner := stored.Input.Owner; owner != "" && stored.Kind != SagaKindAdminRevoke {
		release, lockErr := s.lockOwner(ctx, owner)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return stored, err
		}
		defer release()
	}

	run := s.resumeRun(stored)
	if next, ok := stored.NextStage(); ok {
		fields["stage"] = string(next)
	}
	switch stored.Kind {
	case SagaKindIssue:
		_, err = s.runIssue(ctx, run)
	case SagaKindIssueVersion:
		_, err = s.runIssueVersion(ctx, run)
	case SagaKindAdminMintFree:
		_, err = s.runAdminMintFree(ctx, run)
	case SagaKindAdminRevoke:
		_, err = s.runAdminRevoke(ctx, run)
	case SagaKindAdminCall:
		_, err = s.runAdminCall(ctx, run)
	default:
		err = NewValidationError("saga_kind", "unsupported saga kind "+string(stored.Kind))
	}
	if err != nil {
		err = s.mapError(err)
		return run.snapshot(), err
	}
	return run.snapshot(), nil
}

// ScheduleResume enqueues a resume job for a worker to pick up.
func (s *Service) ScheduleResume(ctx context.Context, id string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"saga_id": strings.TrimSpace(id)}
	defer func() {
		s.observeOperation(ctx, startedAt, "schedule_resume", err, fields)
	}()

	id = strings.TrimSpace(id)
	if id == "" {
		err = s.mapError(NewValidationError("saga_id", "saga id is required"))
		return err
	}
	if s.jobEnqueuer == nil {
		err = s.mapError(newDependencyError("core: job enqueuer is not configured"))
		return err
	}
	err = s.jobEnqueuer.Enqueue(ctx, &JobExecutionMessage{
		JobID:          SagaResumeJobID,
		ScriptPath:     SagaResumeJobID,
		Parameters:     map[string]any{"saga_id": id},
		IdempotencyKey: "saga-resume:" + id,
		DedupPolicy:    "drop",
	})
	if err != nil {
		err = s.mapError(NewServiceUnavailableError(err, "core: resume job enqueue failed"))
		return err
	}
	return nil
}
