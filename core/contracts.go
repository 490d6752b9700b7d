package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// Publisher uploads a metadata document to a content-addressed network. Calls
// are not idempotent; a retry may pin the same document under a new CID.
type Publisher interface {
	Publish(ctx context.Context, doc MetadataDocument) (PublishResult, error)
}

// OwnerReader exposes the contract's live owner.
type OwnerReader interface {
	ReadOwner(ctx context.Context) (string, error)
}

// Ledger is the certificate contract client. Send simulates, estimates and
// broadcasts; AwaitReceipt blocks until the transaction is mined or the
// client's bounded wait elapses, and may be called again for the same hash.
type Ledger interface {
	OwnerReader
	Send(ctx context.Context, call LedgerCall) (PendingTx, error)
	AwaitReceipt(ctx context.Context, txHash string) (Receipt, error)
	HasCertificate(ctx context.Context, owner string) (bool, error)
	OwnerOf(ctx context.Context, tokenID string) (string, error)
}

type CertificateReader interface {
	FindByOwner(ctx context.Context, owner string) (Certificate, bool, error)
	FindByToken(ctx context.Context, tokenID string) (Certificate, bool, error)
}

// CertificateStore is the durable record store keyed by normalized owner.
// AppendVersion and AppendReferral must serialize per owner.
type CertificateStore interface {
	CertificateReader
	UpsertContent(ctx context.Context, in UpsertContentInput) (Certificate, bool, error)
	AppendVersion(ctx context.Context, in AppendVersionInput) (Version, error)
	AppendReferral(ctx context.Context, owner string, referee string) (bool, error)
	BindToken(ctx context.Context, owner string, tokenID string) error
	DeleteByToken(ctx context.Context, tokenID string) (bool, error)
	DeleteByOwner(ctx context.Context, owner string) (bool, error)
}

type SagaStore interface {
	Save(ctx context.Context, saga Saga) error
	Get(ctx context.Context, id string) (Saga, error)
	ListOpen(ctx context.Context, updatedBefore time.Time, limit int) ([]Saga, error)
}

type StoreProvider interface {
	CertificateStore() CertificateStore
	SagaStore() SagaStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// OwnerLocker provides per-owner critical sections. Acquire blocks until the
// lock is free or ctx is done.
type OwnerLocker interface {
	Acquire(ctx context.Context, owner string) (LockHandle, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// CertificateService is the inbound surface consumed by commands, queries and
// the facade.
type CertificateService interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
	IssueVersion(ctx context.Context, req IssueVersionRequest) (VersionResult, error)
	GetByOwner(ctx context.Context, owner string) (Certificate, error)
	GetReferralCredit(ctx context.Context, owner string) (ReferralCredit, error)
	CheckAccess(ctx context.Context, owner string) (AccessGrant, error)
	AdminMintFree(ctx context.Context, req AdminMintFreeRequest) (AdminResult, error)
	AdminRevoke(ctx context.Context, req AdminRevokeRequest) (AdminResult, error)
	AdminPause(ctx context.Context, req AdminRequest) (AdminResult, error)
	AdminUnpause(ctx context.Context, req AdminRequest) (AdminResult, error)
	AdminTransferOwnership(ctx context.Context, req TransferOwnershipRequest) (AdminResult, error)
	AdminSetBaseURI(ctx context.Context, req SetBaseURIRequest) (AdminResult, error)
	GetSaga(ctx context.Context, id string) (Saga, error)
	ResumeSaga(ctx context.Context, id string) (Saga, error)
	ScheduleResume(ctx context.Context, id string) error
}
