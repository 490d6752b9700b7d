package query

import (
	"context"
	"time"

	"github.com/goliatone/go-certledger/core"
)

type CertificateReader interface {
	GetByOwner(ctx context.Context, owner string) (core.Certificate, error)
	GetReferralCredit(ctx context.Context, owner string) (core.ReferralCredit, error)
	CheckAccess(ctx context.Context, owner string) (core.AccessGrant, error)
}

type SagaReader interface {
	GetSaga(ctx context.Context, id string) (core.Saga, error)
}

type StalledSagaReader interface {
	ListStalledSagas(ctx context.Context, updatedBefore time.Time, limit int) ([]core.Saga, error)
}

type GetCertificateQuery struct {
	reader CertificateReader
}

func NewGetCertificateQuery(reader CertificateReader) *GetCertificateQuery {
	return &GetCertificateQuery{reader: reader}
}

func (q *GetCertificateQuery) Query(ctx context.Context, msg GetCertificateMessage) (core.Certificate, error) {
	if q == nil || q.reader == nil {
		return core.Certificate{}, queryDependencyError("query: certificate reader is required")
	}
	return q.reader.GetByOwner(ctx, msg.Owner)
}

type GetReferralCreditQuery struct {
	reader CertificateReader
}

func NewGetReferralCreditQuery(reader CertificateReader) *GetReferralCreditQuery {
	return &GetReferralCreditQuery{reader: reader}
}

func (q *GetReferralCreditQuery) Query(ctx context.Context, msg GetReferralCreditMessage) (core.ReferralCredit, error) {
	if q == nil || q.reader == nil {
		return core.ReferralCredit{}, queryDependencyError("query: certificate reader is required")
	}
	return q.reader.GetReferralCredit(ctx, msg.Owner)
}

type CheckAccessQuery struct {
	reader CertificateReader
}

func NewCheckAccessQuery(reader CertificateReader) *CheckAccessQuery {
	return &CheckAccessQuery{reader: reader}
}

func (q *CheckAccessQuery) Query(ctx context.Context, msg CheckAccessMessage) (core.AccessGrant, error) {
	if q == nil || q.reader == nil {
		return core.AccessGrant{}, queryDependencyError("query: certificate reader is required")
	}
	return q.reader.CheckAccess(ctx, msg.Owner)
}

type GetSagaQuery struct {
	reader SagaReader
}

func NewGetSagaQuery(reader SagaReader) *GetSagaQuery {
	return &GetSagaQuery{reader: reader}
}

func (q *GetSagaQuery) Query(ctx context.Context, msg GetSagaMessage) (core.Saga, error) {
	if q == nil || q.reader == nil {
		return core.Saga{}, queryDependencyError("query: saga reader is required")
	}
	return q.reader.GetSaga(ctx, msg.SagaID)
}

type ListStalledSagasQuery struct {
	reader StalledSagaReader
	now    func() time.Time
}

func NewListStalledSagasQuery(reader StalledSagaReader) *ListStalledSagasQuery {
	return &ListStalledSagasQuery{reader: reader, now: time.Now}
}

func (q *ListStalledSagasQuery) Query(ctx context.Context, msg ListStalledSagasMessage) ([]core.Saga, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: stalled saga reader is required")
	}
	var before time.Time
	if msg.StalledFor > 0 {
		before = q.now().UTC().Add(-msg.StalledFor)
	}
	return q.reader.ListStalledSagas(ctx, before, msg.Limit)
}
