package query

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	TypeGetCertificate    = "certledger.query.certificate.get"
	TypeGetReferralCredit = "certledger.query.referral_credit.get"
	TypeCheckAccess       = "certledger.query.access.check"
	TypeGetSaga           = "certledger.query.saga.get"
	TypeListStalledSagas  = "certledger.query.saga.list_stalled"
)

type GetCertificateMessage struct {
	Owner string
}

func (GetCertificateMessage) Type() string { return TypeGetCertificate }

func (m GetCertificateMessage) Validate() error {
	return validateOwner(m.Owner)
}

type GetReferralCreditMessage struct {
	Owner string
}

func (GetReferralCreditMessage) Type() string { return TypeGetReferralCredit }

func (m GetReferralCreditMessage) Validate() error {
	return validateOwner(m.Owner)
}

type CheckAccessMessage struct {
	Owner string
}

func (CheckAccessMessage) Type() string { return TypeCheckAccess }

func (m CheckAccessMessage) Validate() error {
	return validateOwner(m.Owner)
}

type GetSagaMessage struct {
	SagaID string
}

func (GetSagaMessage) Type() string { return TypeGetSaga }

func (m GetSagaMessage) Validate() error {
	if strings.TrimSpace(m.SagaID) == "" {
		return queryValidationError("saga_id", "saga id is required")
	}
	return nil
}

// ListStalledSagasMessage selects open sagas untouched for at least
// StalledFor. A zero StalledFor lists every open saga.
type ListStalledSagasMessage struct {
	StalledFor time.Duration
	Limit      int
}

func (ListStalledSagasMessage) Type() string { return TypeListStalledSagas }

func (m ListStalledSagasMessage) Validate() error {
	if m.StalledFor < 0 {
		return queryValidationError("stalled_for", "stalled duration must be >= 0")
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

func validateOwner(owner string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return queryValidationError("owner", "owner is required")
	}
	if !common.IsHexAddress(owner) {
		return queryValidationError("owner", "owner must be a hex address")
	}
	return nil
}
