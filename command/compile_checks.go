package command

import (
	"github.com/goliatone/go-certledger/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Commander[IssueMessage]                  = (*IssueCommand)(nil)
	_ gocmd.Commander[IssueVersionMessage]           = (*IssueVersionCommand)(nil)
	_ gocmd.Commander[AdminMintFreeMessage]          = (*AdminMintFreeCommand)(nil)
	_ gocmd.Commander[AdminRevokeMessage]            = (*AdminRevokeCommand)(nil)
	_ gocmd.Commander[AdminPauseMessage]             = (*AdminPauseCommand)(nil)
	_ gocmd.Commander[AdminUnpauseMessage]           = (*AdminUnpauseCommand)(nil)
	_ gocmd.Commander[AdminTransferOwnershipMessage] = (*AdminTransferOwnershipCommand)(nil)
	_ gocmd.Commander[AdminSetBaseURIMessage]        = (*AdminSetBaseURICommand)(nil)
	_ gocmd.Commander[ResumeSagaMessage]             = (*ResumeSagaCommand)(nil)
	_ gocmd.Commander[ScheduleSagaResumeMessage]     = (*ScheduleSagaResumeCommand)(nil)

	_ MutatingService = (core.CertificateService)(nil)
)
