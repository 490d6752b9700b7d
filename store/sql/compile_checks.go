package sqlstore

import "github.com/goliatone/go-certledger/core"

var (
	_ core.CertificateStore       = (*CertificateStore)(nil)
	_ core.CertificateStore       = (*CachedCertificateStore)(nil)
	_ core.SagaStore              = (*SagaStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
