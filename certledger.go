package certledger

import "github.com/goliatone/go-certledger/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Publisher = core.Publisher
type Ledger = core.Ledger
type CertificateStore = core.CertificateStore
type SagaStore = core.SagaStore
type OwnerLocker = core.OwnerLocker
type JobEnqueuer = core.JobEnqueuer
type MetricsRecorder = core.MetricsRecorder

type IssueRequest = core.IssueRequest
type IssueVersionRequest = core.IssueVersionRequest
type ContentRequest = core.ContentRequest

type AdminRequest = core.AdminRequest
type AdminMintFreeRequest = core.AdminMintFreeRequest
type AdminRevokeRequest = core.AdminRevokeRequest
type TransferOwnershipRequest = core.TransferOwnershipRequest
type SetBaseURIRequest = core.SetBaseURIRequest

type Certificate = core.Certificate
type ReferralCredit = core.ReferralCredit
type AccessGrant = core.AccessGrant
type Saga = core.Saga

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithPublisher         = core.WithPublisher
	WithLedger            = core.WithLedger
	WithCertificateStore  = core.WithCertificateStore
	WithSagaStore         = core.WithSagaStore
	WithOwnerLocker       = core.WithOwnerLocker
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
