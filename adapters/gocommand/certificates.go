package gocommand

import (
	"fmt"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

// CertificateService is everything the certificate handlers dispatch to.
type CertificateService interface {
	certcommand.MutatingService
	certquery.CertificateReader
	certquery.SagaReader
}

// Subscriptions groups dispatcher subscriptions so they can be torn down
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterCertificateHandlers registers and subscribes every certificate
// command and query. The stalled saga query is only wired when svc can list
// stalled sagas. On error nothing stays subscribed.
func RegisterCertificateHandlers(adapter *RegistryAdapter, svc CertificateService) (Subscriptions, error) {
	if svc == nil {
		return nil, fmt.Errorf("gocommand: certificate service is required")
	}
	subs := Subscriptions{}
	add := func(sub commanddispatcher.Subscription, err error) error {
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		return nil
	}

	steps := []func() error{
		func() error {
			return add(RegisterAndSubscribe[certcommand.IssueMessage](adapter, certcommand.NewIssueCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.IssueVersionMessage](adapter, certcommand.NewIssueVersionCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminMintFreeMessage](adapter, certcommand.NewAdminMintFreeCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminRevokeMessage](adapter, certcommand.NewAdminRevokeCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminPauseMessage](adapter, certcommand.NewAdminPauseCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminUnpauseMessage](adapter, certcommand.NewAdminUnpauseCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminTransferOwnershipMessage](adapter, certcommand.NewAdminTransferOwnershipCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.AdminSetBaseURIMessage](adapter, certcommand.NewAdminSetBaseURICommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.ResumeSagaMessage](adapter, certcommand.NewResumeSagaCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribe[certcommand.ScheduleSagaResumeMessage](adapter, certcommand.NewScheduleSagaResumeCommand(svc)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery[certquery.GetCertificateMessage, core.Certificate](adapter, certquery.NewGetCertificateQuery(svc)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery[certquery.GetReferralCreditMessage, core.ReferralCredit](adapter, certquery.NewGetReferralCreditQuery(svc)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery[certquery.CheckAccessMessage, core.AccessGrant](adapter, certquery.NewCheckAccessQuery(svc)))
		},
		func() error {
			return add(RegisterAndSubscribeQuery[certquery.GetSagaMessage, core.Saga](adapter, certquery.NewGetSagaQuery(svc)))
		},
	}
	if stalled, ok := svc.(certquery.StalledSagaReader); ok {
		steps = append(steps, func() error {
			return add(RegisterAndSubscribeQuery[certquery.ListStalledSagasMessage, []core.Saga](adapter, certquery.NewListStalledSagasQuery(stalled)))
		})
	}

	for _, step := range steps {
		if err := step(); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	return subs, nil
}
