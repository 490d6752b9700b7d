package core

import (
	"context"
	"time"
)

// GetReferralCredit derives free-mint eligibility from the stored referral
// list. An owner without a certificate has no credit.
func (s *Service) GetReferralCredit(ctx context.Context, owner string) (credit ReferralCredit, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"owner": NormalizeAddress(owner)}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_referral_credit", err, fields)
	}()

	normalized, err := validateAddress("owner", owner, true)
	if err != nil {
		err = s.mapError(err)
		return ReferralCredit{}, err
	}
	if err = s.requireStore(); err != nil {
		err = s.mapError(err)
		return ReferralCredit{}, err
	}
	credit, err = s.referralCredit(ctx, normalized)
	if err != nil {
		err = s.mapError(err)
		return ReferralCredit{}, err
	}
	fields["referral_count"] = credit.ReferralCount
	fields["eligible"] = credit.Eligible
	return credit, nil
}

func (s *Service) referralCredit(ctx context.Context, owner string) (ReferralCredit, error) {
	cert, found, err := s.certificateStore.FindByOwner(ctx, owner)
	if err != nil {
		return ReferralCredit{}, NewStoreError(err, "find_by_owner")
	}
	if !found {
		return ReferralCredit{Owner: owner}, nil
	}
	return ComputeReferralCredit(cert), nil
}
