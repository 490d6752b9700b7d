package query

import (
	"github.com/goliatone/go-certledger/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetCertificateMessage, core.Certificate]       = (*GetCertificateQuery)(nil)
	_ gocmd.Querier[GetReferralCreditMessage, core.ReferralCredit] = (*GetReferralCreditQuery)(nil)
	_ gocmd.Querier[CheckAccessMessage, core.AccessGrant]          = (*CheckAccessQuery)(nil)
	_ gocmd.Querier[GetSagaMessage, core.Saga]                     = (*GetSagaQuery)(nil)
	_ gocmd.Querier[ListStalledSagasMessage, []core.Saga]          = (*ListStalledSagasQuery)(nil)

	_ CertificateReader = (core.CertificateService)(nil)
	_ SagaReader        = (core.CertificateService)(nil)
	_ StalledSagaReader = (*core.Service)(nil)
)
