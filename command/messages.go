package command

import (
	"strings"

	"github.com/goliatone/go-certledger/core"
)

const (
	TypeIssue                  = "certledger.command.certificate.issue"
	TypeIssueVersion           = "certledger.command.certificate.issue_version"
	TypeAdminMintFree          = "certledger.command.admin.mint_free"
	TypeAdminRevoke            = "certledger.command.admin.revoke"
	TypeAdminPause             = "certledger.command.admin.pause"
	TypeAdminUnpause           = "certledger.command.admin.unpause"
	TypeAdminTransferOwnership = "certledger.command.admin.transfer_ownership"
	TypeAdminSetBaseURI        = "certledger.command.admin.set_base_uri"
	TypeResumeSaga             = "certledger.command.saga.resume"
	TypeScheduleSagaResume     = "certledger.command.saga.schedule_resume"
)

type IssueMessage struct {
	Request core.IssueRequest
}

func (IssueMessage) Type() string { return TypeIssue }

func (m IssueMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type IssueVersionMessage struct {
	Request core.IssueVersionRequest
}

func (IssueVersionMessage) Type() string { return TypeIssueVersion }

func (m IssueVersionMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type AdminMintFreeMessage struct {
	Request core.AdminMintFreeRequest
}

func (AdminMintFreeMessage) Type() string { return TypeAdminMintFree }

func (m AdminMintFreeMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type AdminRevokeMessage struct {
	Request core.AdminRevokeRequest
}

func (AdminRevokeMessage) Type() string { return TypeAdminRevoke }

func (m AdminRevokeMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type AdminPauseMessage struct {
	Request core.AdminRequest
}

func (AdminPauseMessage) Type() string { return TypeAdminPause }

func (m AdminPauseMessage) Validate() error {
	return validateCaller(m.Request.Caller)
}

type AdminUnpauseMessage struct {
	Request core.AdminRequest
}

func (AdminUnpauseMessage) Type() string { return TypeAdminUnpause }

func (m AdminUnpauseMessage) Validate() error {
	return validateCaller(m.Request.Caller)
}

type AdminTransferOwnershipMessage struct {
	Request core.TransferOwnershipRequest
}

func (AdminTransferOwnershipMessage) Type() string { return TypeAdminTransferOwnership }

func (m AdminTransferOwnershipMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type AdminSetBaseURIMessage struct {
	Request core.SetBaseURIRequest
}

func (AdminSetBaseURIMessage) Type() string { return TypeAdminSetBaseURI }

func (m AdminSetBaseURIMessage) Validate() error {
	_, err := m.Request.Validate()
	return err
}

type ResumeSagaMessage struct {
	SagaID string
}

func (ResumeSagaMessage) Type() string { return TypeResumeSaga }

func (m ResumeSagaMessage) Validate() error {
	if strings.TrimSpace(m.SagaID) == "" {
		return commandValidationError("saga_id", "saga id is required")
	}
	return nil
}

// ScheduleSagaResumeMessage hands a saga to the background resume worker
// instead of resuming it inline.
type ScheduleSagaResumeMessage struct {
	SagaID string
}

func (ScheduleSagaResumeMessage) Type() string { return TypeScheduleSagaResume }

func (m ScheduleSagaResumeMessage) Validate() error {
	if strings.TrimSpace(m.SagaID) == "" {
		return commandValidationError("saga_id", "saga id is required")
	}
	return nil
}

func validateCaller(caller string) error {
	if strings.TrimSpace(caller) == "" {
		return commandValidationError("caller", "caller is required")
	}
	return nil
}
