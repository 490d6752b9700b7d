package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CertificateService = (*Service)(nil)
	_ CertificateStore   = (*MemoryCertificateStore)(nil)
	_ SagaStore          = (*MemorySagaStore)(nil)
	_ OwnerLocker        = (*MemoryOwnerLocker)(nil)
	_ ConfigProvider     = (*CfgxConfigProvider)(nil)
	_ OptionsResolver    = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
