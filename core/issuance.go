package core

import (
	"context"
	"time"
)

// Issue publishes metadata for owner and records it. A repeated paid issue
// overwrites the stored content without appending a version; only
// IssueVersion grows the history. Free issues are minted by the engine wallet
// and require referral credit.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (result IssueResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"owner":     NormalizeAddress(req.Owner),
		"referrer":  NormalizeAddress(req.Referrer),
		"free":      req.Free,
		"saga_kind": string(SagaKindIssue),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue", err, fields)
	}()

	input, err := req.Validate()
	if err != nil {
		err = s.mapError(failValidation(err))
		return IssueResult{}, err
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(failValidation(err))
		return IssueResult{}, err
	}
	if input.Free {
		if err = s.requireLedger(); err != nil {
			err = s.mapError(failValidation(err))
			return IssueResult{}, err
		}
	}

	release, err := s.lockOwner(ctx, input.Owner)
	if err != nil {
		err = s.mapError(failValidation(err))
		return IssueResult{}, err
	}
	defer release()

	if input.Free {
		credit, creditErr := s.referralCredit(ctx, input.Owner)
		if creditErr != nil {
			err = s.mapError(failValidation(creditErr))
			return IssueResult{}, err
		}
		if !credit.Eligible {
			err = s.mapError(failValidation(NewReferralIneligibleError(input.Owner, credit)))
			return IssueResult{}, err
		}
	}

	stages := []Stage{StageValidate, StagePublish, StageRecord}
	if input.Free {
		stages = append(stages, StageLedgerMint, StageTokenBind)
	}
	stages = append(stages, StageReferralUpdate)
	run := s.startSaga(ctx, SagaKindIssue, SagaInput{
		Owner:    input.Owner,
		Referrer: input.Referrer,
		Content:  input.Content,
		Free:     input.Free,
	}, stages...)
	fields["saga_id"] = run.id()

	result, err = s.runIssue(ctx, run)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["cid"] = result.CID
	fields["created"] = result.Created
	return result, nil
}

func (s *Service) runIssue(ctx context.Context, run *sagaRun) (IssueResult, error) {
	in := run.input()
	result := func() IssueResult {
		return IssueResult{Owner: in.Owner, CID: in.CID, URI: in.URI, Created: in.Created, SagaID: run.id()}
	}
	if err := s.publishStep(ctx, run); err != nil {
		return result(), err
	}
	if err := s.recordStep(ctx, run); err != nil {
		return result(), err
	}
	var receipt *Receipt
	if in.Free {
		mined, err := s.ledgerStep(ctx, run, StageLedgerMint, MintForCall(in.Owner, in.CID, in.Referrer))
		if err != nil {
			out := result()
			out.Receipt = receiptOrNil(mined)
			return out, err
		}
		receipt = &mined
		if err := s.tokenBindStep(ctx, run); err != nil {
			out := result()
			out.Receipt = receipt
			return out, err
		}
	}
	err := s.referralStep(ctx, run)
	out := result()
	out.Receipt = receipt
	return out, err
}

// IssueVersion appends a new immutable snapshot to an existing certificate
// and makes it the current content.
func (s *Service) IssueVersion(ctx context.Context, req IssueVersionRequest) (result VersionResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"owner":     NormalizeAddress(req.Owner),
		"saga_kind": string(SagaKindIssueVersion),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "issue_version", err, fields)
	}()

	input, err := req.Validate()
	if err != nil {
		err = s.mapError(failValidation(err))
		return VersionResult{}, err
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(failValidation(err))
		return VersionResult{}, err
	}

	release, err := s.lockOwner(ctx, input.Owner)
	if err != nil {
		err = s.mapError(failValidation(err))
		return VersionResult{}, err
	}
	defer release()

	// The record must exist before publishing so no orphan is pinned.
	_, found, findErr := s.certificateStore.FindByOwner(ctx, input.Owner)
	if findErr != nil {
		err = s.mapError(failValidation(NewStoreError(findErr, "find_by_owner")))
		return VersionResult{}, err
	}
	if !found {
		err = s.mapError(failValidation(NewNotFoundError("core: no certificate for owner", map[string]any{"owner": input.Owner})))
		return VersionResult{}, err
	}

	run := s.startSaga(ctx, SagaKindIssueVersion, SagaInput{
		Owner:   input.Owner,
		Content: input.Content,
	}, StageValidate, StagePublish, StageVersionRecord, StageLedgerVersionMint)
	fields["saga_id"] = run.id()

	result, err = s.runIssueVersion(ctx, run)
	if err != nil {
		err = s.mapError(err)
		return result, err
	}
	fields["version_id"] = result.VersionID
	fields["cid"] = result.CID
	return result, nil
}

func (s *Service) runIssueVersion(ctx context.Context, run *sagaRun) (VersionResult, error) {
	in := run.input()
	result := func() VersionResult {
		return VersionResult{Owner: in.Owner, VersionID: in.VersionID, CID: in.CID, URI: in.URI, SagaID: run.id()}
	}
	if err := s.publishStep(ctx, run); err != nil {
		return result(), err
	}
	err := run.step(ctx, StageVersionRecord, func(ctx context.Context) error {
		version, err := s.certificateStore.AppendVersion(ctx, AppendVersionInput{
			Owner:   in.Owner,
			CID:     in.CID,
			URI:     in.URI,
			Content: in.Content,
		})
		if err != nil {
			s.logOrphan(ctx, run, err)
			return NewStoreError(err, "append_version")
		}
		in.VersionID = version.VersionID
		return nil
	})
	if err != nil {
		return result(), err
	}

	if !s.config.Issuance.SubmitVersionMint || s.ledger == nil {
		run.skip(ctx, StageLedgerVersionMint)
		return result(), nil
	}
	mined, err := s.ledgerStep(ctx, run, StageLedgerVersionMint, MintVersionCall(in.Owner, in.CID))
	out := result()
	out.Receipt = receiptOrNil(mined)
	return out, err
}

func (s *Service) GetByOwner(ctx context.Context, owner string) (cert Certificate, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"owner": NormalizeAddress(owner)}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_by_owner", err, fields)
	}()

	cert, err = s.findCertificate(ctx, owner)
	if err != nil {
		err = s.mapError(err)
		return Certificate{}, err
	}
	return cert, nil
}

// CheckAccess gates a reader on holding a certificate and returns the token
// binding together with the token URI.
func (s *Service) CheckAccess(ctx context.Context, owner string) (grant AccessGrant, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"owner": NormalizeAddress(owner)}
	defer func() {
		s.observeOperation(ctx, startedAt, "check_access", err, fields)
	}()

	cert, err := s.findCertificate(ctx, owner)
	if err != nil {
		err = s.mapError(err)
		return AccessGrant{}, err
	}
	return AccessGrant{
		Certificate: cert,
		TokenID:     cert.TokenID,
		TokenURI:    cert.MetadataURI,
	}, nil
}

func (s *Service) findCertificate(ctx context.Context, owner string) (Certificate, error) {
	normalized, err := validateAddress("owner", owner, true)
	if err != nil {
		return Certificate{}, err
	}
	if err := s.requireStore(); err != nil {
		return Certificate{}, err
	}
	cert, found, err := s.certificateStore.FindByOwner(ctx, normalized)
	if err != nil {
		return Certificate{}, NewStoreError(err, "find_by_owner")
	}
	if !found {
		return Certificate{}, NewNotFoundError("core: no certificate for owner", map[string]any{"owner": normalized})
	}
	return cert, nil
}

func receiptOrNil(receipt Receipt) *Receipt {
	if receipt.TxHash == "" {
		return nil
	}
	return &receipt
}
