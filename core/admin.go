package core

import (
	"context"
	"time"
)

// AdminResult is the outcome of an engine-signed admin ledger operation.
type AdminResult struct {
	Receipt Receipt
	Owner   string
	CID     string
	URI     string
	TokenID string
	SagaID  string
}

// AdminMintFree mints a certificate token paid by the engine wallet. A stored
// record's CID is reused; otherwise Content is published and recorded first.
func (s *Service) AdminMintFree(ctx context.Context, req AdminMintFreeRequest) (result AdminResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller":    NormalizeAddress(req.Caller),
		"owner":     NormalizeAddress(req.Owner),
		"saga_kind": string(SagaKindAdminMintFree),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "admin_mint_free", err, fields)
	}()

	input, err := req.Validate()
	if err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}

	release, err := s.lockOwner(ctx, input.Owner)
	if err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}
	defer release()

	sagaInput := SagaInput{
		Caller:   input.Caller,
		Owner:    input.Owner,
		Referrer: input.Referrer,
		Free:     true,
	}
	if input.Content != nil {
		sagaInput.Content = input.Content.Clone()
	}
	run := s.startSaga(ctx, SagaKindAdminMintFree, sagaInput,
		StageValidate, StageAuthorize, StagePublish, StageRecord,
		StageLedgerMint, StageTokenBind, StageReferralUpdate,
	)
	fields["saga_id"] = run.id()

	result, err = s.runAdminMintFree(ctx, run)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["token_id"] = result.TokenID
	fields["tx_hash"] = result.Receipt.TxHash
	return result, nil
}

func (s *Service) runAdminMintFree(ctx context.Context, run *sagaRun) (AdminResult, error) {
	in := run.input()
	result := func(receipt Receipt) AdminResult {
		return AdminResult{Receipt: receipt, Owner: in.Owner, CID: in.CID, URI: in.URI, TokenID: in.TokenID, SagaID: run.id()}
	}
	if err := run.check(ctx, StageAuthorize, func(ctx context.Context) error {
		return s.guard.Authorize(ctx, in.Caller)
	}); err != nil {
		return result(Receipt{}), err
	}

	if !run.committed(StageLedgerMint) && run.txHash(StageLedgerMint) == "" {
		if err := run.precheck(ctx, StageLedgerMint, func(ctx context.Context) error {
			if err := s.requireLedger(); err != nil {
				return err
			}
			held, err := s.ledger.HasCertificate(ctx, in.Owner)
			if err != nil {
				return err
			}
			if held {
				return NewConflictError("core: owner already holds a certificate token", map[string]any{"owner": in.Owner})
			}
			return nil
		}); err != nil {
			return result(Receipt{}), err
		}
	}

	if !run.committed(StageRecord) {
		cert, found, err := s.certificateStore.FindByOwner(ctx, in.Owner)
		if err != nil {
			return result(Receipt{}), run.fail(ctx, StagePublish, NewStoreError(err, "find_by_owner"))
		}
		if found {
			in.CID = cert.CID
			in.URI = cert.MetadataURI
			in.Created = false
			run.skip(ctx, StagePublish)
			run.skip(ctx, StageRecord)
			s.logInfo(ctx, "reusing stored metadata for free mint", map[string]any{
				"saga_id": run.id(),
				"owner":   in.Owner,
				"cid":     in.CID,
			})
		} else if in.Content.StudentName == "" {
			return result(Receipt{}), run.fail(ctx, StagePublish,
				NewValidationError("content", "content is required when the owner has no certificate"))
		}
	}
	if err := s.publishStep(ctx, run); err != nil {
		return result(Receipt{}), err
	}
	if err := s.recordStep(ctx, run); err != nil {
		return result(Receipt{}), err
	}

	receipt, err := s.ledgerStep(ctx, run, StageLedgerMint, MintForCall(in.Owner, in.CID, in.Referrer))
	if err != nil {
		return result(receipt), err
	}
	if err := s.tokenBindStep(ctx, run); err != nil {
		return result(receipt), err
	}
	err = s.referralStep(ctx, run)
	return result(receipt), err
}

// AdminRevoke burns tokenID on the ledger and deletes the backing record.
func (s *Service) AdminRevoke(ctx context.Context, req AdminRevokeRequest) (result AdminResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller":    NormalizeAddress(req.Caller),
		"token_id":  req.TokenID,
		"saga_kind": string(SagaKindAdminRevoke),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "admin_revoke", err, fields)
	}()

	input, err := req.Validate()
	if err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}

	run := s.startSaga(ctx, SagaKindAdminRevoke, SagaInput{
		Caller:  input.Caller,
		TokenID: input.TokenID,
	}, StageValidate, StageAuthorize, StageLedgerRevoke, StageRecordDelete)
	fields["saga_id"] = run.id()

	result, err = s.runAdminRevoke(ctx, run)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["owner"] = result.Owner
	fields["tx_hash"] = result.Receipt.TxHash
	return result, nil
}

func (s *Service) runAdminRevoke(ctx context.Context, run *sagaRun) (AdminResult, error) {
	in := run.input()
	result := func(receipt Receipt) AdminResult {
		return AdminResult{Receipt: receipt, Owner: in.Owner, TokenID: in.TokenID, SagaID: run.id()}
	}
	if err := run.check(ctx, StageAuthorize, func(ctx context.Context) error {
		return s.guard.Authorize(ctx, in.Caller)
	}); err != nil {
		return result(Receipt{}), err
	}

	// The token owner must be read before the burn removes it.
	if in.Owner == "" && !run.committed(StageLedgerRevoke) && run.txHash(StageLedgerRevoke) == "" {
		if err := run.precheck(ctx, StageLedgerRevoke, func(ctx context.Context) error {
			if err := s.requireLedger(); err != nil {
				return err
			}
			owner, err := s.ledger.OwnerOf(ctx, in.TokenID)
			if err != nil {
				return err
			}
			in.Owner = NormalizeAddress(owner)
			return nil
		}); err != nil {
			return result(Receipt{}), err
		}
	}

	if in.Owner != "" {
		release, err := s.lockOwner(ctx, in.Owner)
		if err != nil {
			return result(Receipt{}), run.fail(ctx, StageLedgerRevoke, err)
		}
		defer release()
	}

	receipt, err := s.ledgerStep(ctx, run, StageLedgerRevoke, RevokeCall(in.TokenID))
	if err != nil {
		return result(receipt), err
	}

	err = run.step(ctx, StageRecordDelete, func(ctx context.Context) error {
		deleted, err := s.certificateStore.DeleteByToken(ctx, in.TokenID)
		if err != nil {
			return NewStoreError(err, "delete_by_token")
		}
		if !deleted && in.Owner != "" {
			deleted, err = s.certificateStore.DeleteByOwner(ctx, in.Owner)
			if err != nil {
				return NewStoreError(err, "delete_by_owner")
			}
		}
		if !deleted {
			s.logWarn(ctx, "no record found for revoked token", map[string]any{
				"saga_id":  run.id(),
				"token_id": in.TokenID,
				"owner":    in.Owner,
			})
		}
		return nil
	})
	return result(receipt), err
}

func (s *Service) AdminPause(ctx context.Context, req AdminRequest) (AdminResult, error) {
	return s.adminCall(ctx, "admin_pause", req, PauseCall())
}

func (s *Service) AdminUnpause(ctx context.Context, req AdminRequest) (AdminResult, error) {
	return s.adminCall(ctx, "admin_unpause", req, UnpauseCall())
}

func (s *Service) AdminTransferOwnership(ctx context.Context, req TransferOwnershipRequest) (AdminResult, error) {
	input, err := req.Validate()
	if err != nil {
		return AdminResult{}, s.mapError(failValidation(err))
	}
	return s.adminCall(ctx, "admin_transfer_ownership", AdminRequest{Caller: input.Caller}, input.Call)
}

func (s *Service) AdminSetBaseURI(ctx context.Context, req SetBaseURIRequest) (AdminResult, error) {
	input, err := req.Validate()
	if err != nil {
		return AdminResult{}, s.mapError(failValidation(err))
	}
	return s.adminCall(ctx, "admin_set_base_uri", AdminRequest{Caller: input.Caller}, input.Call)
}

func (s *Service) adminCall(ctx context.Context, operation string, req AdminRequest, call LedgerCall) (result AdminResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"caller":           NormalizeAddress(req.Caller),
		"ledger_operation": string(call.Operation),
		"saga_kind":        string(SagaKindAdminCall),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, operation, err, fields)
	}()

	input, err := req.validate(call)
	if err != nil {
		err = s.mapError(failValidation(err))
		return AdminResult{}, err
	}
	run := s.startSaga(ctx, SagaKindAdminCall, SagaInput{
		Caller: input.Caller,
		Call:   input.Call,
	}, StageValidate, StageAuthorize, StageLedgerCall)
	fields["saga_id"] = run.id()

	result, err = s.runAdminCall(ctx, run)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["tx_hash"] = result.Receipt.TxHash
	return result, nil
}

func (s *Service) runAdminCall(ctx context.Context, run *sagaRun) (AdminResult, error) {
	in := run.input()
	if err := run.check(ctx, StageAuthorize, func(ctx context.Context) error {
		return s.guard.Authorize(ctx, in.Caller)
	}); err != nil {
		return AdminResult{SagaID: run.id()}, err
	}
	receipt, err := s.ledgerStep(ctx, run, StageLedgerCall, in.Call)
	return AdminResult{Receipt: receipt, SagaID: run.id()}, err
}
