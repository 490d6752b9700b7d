package core

import (
	"context"
	"strings"
)

// failValidation attributes a failure that happened before a saga existed.
func failValidation(err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: StageValidate, Err: err}
}

func (s *Service) publishStep(ctx context.Context, run *sagaRun) error {
	return run.step(ctx, StagePublish, func(ctx context.Context) error {
		if err := s.requirePublisher(); err != nil {
			return err
		}
		in := run.input()
		published, err := s.publisher.Publish(ctx, NewMetadataDocument(in.Owner, in.Content))
		if err != nil {
			return asUploadError(err, in.Owner)
		}
		in.CID = strings.TrimSpace(published.CID)
		in.URI = strings.TrimSpace(published.URI)
		s.logDebug(ctx, "metadata published", map[string]any{
			"saga_id": run.id(),
			"owner":   in.Owner,
			"cid":     in.CID,
		})
		return nil
	})
}

// recordStep writes the published content. Only a newly created record keeps
// a referrer, and only when that referrer already holds a certificate. The
// supplied referrer still goes to the contract on mint.
func (s *Service) recordStep(ctx context.Context, run *sagaRun) error {
	return run.step(ctx, StageRecord, func(ctx context.Context) error {
		in := run.input()
		referrer := in.Referrer
		if referrer != "" {
			_, found, err := s.certificateStore.FindByOwner(ctx, referrer)
			if err != nil {
				s.logOrphan(ctx, run, err)
				return NewStoreError(err, "find_referrer")
			}
			if !found {
				s.logDebug(ctx, "referrer has no certificate", map[string]any{
					"saga_id":  run.id(),
					"referrer": referrer,
				})
				referrer = ""
			}
		}
		var initial []string
		if referrer != "" {
			initial = []string{referrer}
		}
		_, created, err := s.certificateStore.UpsertContent(ctx, UpsertContentInput{
			Owner:            in.Owner,
			Content:          in.Content,
			CID:              in.CID,
			URI:              in.URI,
			InitialReferrals: initial,
		})
		if err != nil {
			s.logOrphan(ctx, run, err)
			return NewStoreError(err, "upsert_content")
		}
		in.Created = created
		in.ReferrerCredited = referrer != ""
		return nil
	})
}

func (s *Service) logOrphan(ctx context.Context, run *sagaRun, err error) {
	in := run.input()
	s.recordCounter(ctx, MetricMetadataOrphaned, 1, map[string]string{
		"saga_kind": string(run.saga.Kind),
	})
	s.logWarn(ctx, "published metadata left without a record", map[string]any{
		"saga_id": run.id(),
		"owner":   in.Owner,
		"cid":     in.CID,
		"uri":     in.URI,
		"error":   err.Error(),
	})
}

// ledgerStep submits call once and waits for it to mine. A hash recorded by a
// previous run is polled again instead of broadcasting a second transaction.
func (s *Service) ledgerStep(ctx context.Context, run *sagaRun, stage Stage, call LedgerCall) (Receipt, error) {
	if run.committed(stage) {
		return run.receipt(stage, call.Operation), nil
	}
	var receipt Receipt
	err := run.step(ctx, stage, func(ctx context.Context) error {
		if err := s.requireLedger(); err != nil {
			return err
		}
		txHash := run.txHash(stage)
		if txHash == "" {
			pending, err := s.ledger.Send(ctx, call)
			if err != nil {
				return err
			}
			txHash = pending.TxHash
			run.recordTx(ctx, stage, txHash)
		} else {
			s.logInfo(ctx, "polling previously broadcast transaction", map[string]any{
				"saga_id": run.id(),
				"stage":   string(stage),
				"tx_hash": txHash,
			})
		}
		mined, err := s.ledger.AwaitReceipt(ctx, txHash)
		if err != nil {
			return err
		}
		if mined.Operation == "" {
			mined.Operation = call.Operation
		}
		receipt = mined
		if mined.Status == ReceiptStatusReverted {
			return NewRevertedError(txHash)
		}
		if tokenID := strings.TrimSpace(mined.TokenID); tokenID != "" {
			run.input().TokenID = tokenID
		}
		return nil
	})
	return receipt, err
}

func (s *Service) tokenBindStep(ctx context.Context, run *sagaRun) error {
	in := run.input()
	if strings.TrimSpace(in.TokenID) == "" {
		s.logWarn(ctx, "minted token id not found in receipt", map[string]any{
			"saga_id": run.id(),
			"owner":   in.Owner,
		})
		run.skip(ctx, StageTokenBind)
		return nil
	}
	return run.step(ctx, StageTokenBind, func(ctx context.Context) error {
		if err := s.certificateStore.BindToken(ctx, in.Owner, in.TokenID); err != nil {
			return NewStoreError(err, "bind_token")
		}
		return nil
	})
}

// referralStep credits the referrer with a newly created owner. The referrer
// is not locked; the store serializes appends for it.
func (s *Service) referralStep(ctx context.Context, run *sagaRun) error {
	in := run.input()
	if !in.Created || !in.ReferrerCredited {
		run.skip(ctx, StageReferralUpdate)
		return nil
	}
	return run.step(ctx, StageReferralUpdate, func(ctx context.Context) error {
		appended, err := s.certificateStore.AppendReferral(ctx, in.Referrer, in.Owner)
		if err != nil {
			return NewStoreError(err, "append_referral")
		}
		if appended {
			s.recordCounter(ctx, MetricReferralAppended, 1, nil)
		}
		return nil
	})
}

func asUploadError(err error, owner string) error {
	if HasTextCode(err, ErrorUploadFailed) {
		return err
	}
	return NewUploadError(err, map[string]any{"owner": owner})
}
