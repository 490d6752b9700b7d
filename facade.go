package certledger

import (
	"fmt"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
)

type CommandQueryService interface {
	certcommand.MutatingService
	certquery.CertificateReader
	certquery.SagaReader
}

type Commands struct {
	Issue                  *certcommand.IssueCommand
	IssueVersion           *certcommand.IssueVersionCommand
	AdminMintFree          *certcommand.AdminMintFreeCommand
	AdminRevoke            *certcommand.AdminRevokeCommand
	AdminPause             *certcommand.AdminPauseCommand
	AdminUnpause           *certcommand.AdminUnpauseCommand
	AdminTransferOwnership *certcommand.AdminTransferOwnershipCommand
	AdminSetBaseURI        *certcommand.AdminSetBaseURICommand
	ResumeSaga             *certcommand.ResumeSagaCommand
	ScheduleSagaResume     *certcommand.ScheduleSagaResumeCommand
}

type Queries struct {
	GetCertificate    *certquery.GetCertificateQuery
	GetReferralCredit *certquery.GetReferralCreditQuery
	CheckAccess       *certquery.CheckAccessQuery
	GetSaga           *certquery.GetSagaQuery
	ListStalledSagas  *certquery.ListStalledSagasQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	stalledReader certquery.StalledSagaReader
}

// WithStalledSagaReader overrides the reader behind ListStalledSagas. By
// default the service itself is used when it can list stalled sagas.
func WithStalledSagaReader(reader certquery.StalledSagaReader) FacadeOption {
	return func(options *facadeOptions) {
		options.stalledReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("certledger: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.stalledReader
	if reader == nil {
		reader, _ = service.(certquery.StalledSagaReader)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Issue:                  certcommand.NewIssueCommand(service),
		IssueVersion:           certcommand.NewIssueVersionCommand(service),
		AdminMintFree:          certcommand.NewAdminMintFreeCommand(service),
		AdminRevoke:            certcommand.NewAdminRevokeCommand(service),
		AdminPause:             certcommand.NewAdminPauseCommand(service),
		AdminUnpause:           certcommand.NewAdminUnpauseCommand(service),
		AdminTransferOwnership: certcommand.NewAdminTransferOwnershipCommand(service),
		AdminSetBaseURI:        certcommand.NewAdminSetBaseURICommand(service),
		ResumeSaga:             certcommand.NewResumeSagaCommand(service),
		ScheduleSagaResume:     certcommand.NewScheduleSagaResumeCommand(service),
	}
	facade.queries = Queries{
		GetCertificate:    certquery.NewGetCertificateQuery(service),
		GetReferralCredit: certquery.NewGetReferralCreditQuery(service),
		CheckAccess:       certquery.NewCheckAccessQuery(service),
		GetSaga:           certquery.NewGetSagaQuery(service),
	}
	if reader != nil {
		facade.queries.ListStalledSagas = certquery.NewListStalledSagasQuery(reader)
	}

	return facade, nil
}

// NewServiceFacade builds the facade over a core service.
func NewServiceFacade(service *core.Service, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("certledger: service is required")
	}
	return NewFacade(service, opts...)
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
