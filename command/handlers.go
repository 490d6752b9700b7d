package command

import (
	"context"

	"github.com/goliatone/go-certledger/core"
	gocmd "github.com/goliatone/go-command"
)

type IssuanceService interface {
	Issue(ctx context.Context, req core.IssueRequest) (core.IssueResult, error)
	IssueVersion(ctx context.Context, req core.IssueVersionRequest) (core.VersionResult, error)
}

type AdminService interface {
	AdminMintFree(ctx context.Context, req core.AdminMintFreeRequest) (core.AdminResult, error)
	AdminRevoke(ctx context.Context, req core.AdminRevokeRequest) (core.AdminResult, error)
	AdminPause(ctx context.Context, req core.AdminRequest) (core.AdminResult, error)
	AdminUnpause(ctx context.Context, req core.AdminRequest) (core.AdminResult, error)
	AdminTransferOwnership(ctx context.Context, req core.TransferOwnershipRequest) (core.AdminResult, error)
	AdminSetBaseURI(ctx context.Context, req core.SetBaseURIRequest) (core.AdminResult, error)
}

type SagaService interface {
	ResumeSaga(ctx context.Context, id string) (core.Saga, error)
	ScheduleResume(ctx context.Context, id string) error
}

type MutatingService interface {
	IssuanceService
	AdminService
	SagaService
}

type IssueCommand struct {
	service IssuanceService
}

func NewIssueCommand(service IssuanceService) *IssueCommand {
	return &IssueCommand{service: service}
}

func (c *IssueCommand) Execute(ctx context.Context, msg IssueMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: issuance service is required")
	}
	out, err := c.service.Issue(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IssueVersionCommand struct {
	service IssuanceService
}

func NewIssueVersionCommand(service IssuanceService) *IssueVersionCommand {
	return &IssueVersionCommand{service: service}
}

func (c *IssueVersionCommand) Execute(ctx context.Context, msg IssueVersionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: issuance service is required")
	}
	out, err := c.service.IssueVersion(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminMintFreeCommand struct {
	service AdminService
}

func NewAdminMintFreeCommand(service AdminService) *AdminMintFreeCommand {
	return &AdminMintFreeCommand{service: service}
}

func (c *AdminMintFreeCommand) Execute(ctx context.Context, msg AdminMintFreeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminMintFree(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminRevokeCommand struct {
	service AdminService
}

func NewAdminRevokeCommand(service AdminService) *AdminRevokeCommand {
	return &AdminRevokeCommand{service: service}
}

func (c *AdminRevokeCommand) Execute(ctx context.Context, msg AdminRevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminRevoke(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminPauseCommand struct {
	service AdminService
}

func NewAdminPauseCommand(service AdminService) *AdminPauseCommand {
	return &AdminPauseCommand{service: service}
}

func (c *AdminPauseCommand) Execute(ctx context.Context, msg AdminPauseMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminPause(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminUnpauseCommand struct {
	service AdminService
}

func NewAdminUnpauseCommand(service AdminService) *AdminUnpauseCommand {
	return &AdminUnpauseCommand{service: service}
}

func (c *AdminUnpauseCommand) Execute(ctx context.Context, msg AdminUnpauseMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminUnpause(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminTransferOwnershipCommand struct {
	service AdminService
}

func NewAdminTransferOwnershipCommand(service AdminService) *AdminTransferOwnershipCommand {
	return &AdminTransferOwnershipCommand{service: service}
}

func (c *AdminTransferOwnershipCommand) Execute(ctx context.Context, msg AdminTransferOwnershipMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminTransferOwnership(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type AdminSetBaseURICommand struct {
	service AdminService
}

func NewAdminSetBaseURICommand(service AdminService) *AdminSetBaseURICommand {
	return &AdminSetBaseURICommand{service: service}
}

func (c *AdminSetBaseURICommand) Execute(ctx context.Context, msg AdminSetBaseURIMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: admin service is required")
	}
	out, err := c.service.AdminSetBaseURI(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ResumeSagaCommand struct {
	service SagaService
}

func NewResumeSagaCommand(service SagaService) *ResumeSagaCommand {
	return &ResumeSagaCommand{service: service}
}

func (c *ResumeSagaCommand) Execute(ctx context.Context, msg ResumeSagaMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: saga service is required")
	}
	out, err := c.service.ResumeSaga(ctx, msg.SagaID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ScheduleSagaResumeCommand struct {
	service SagaService
}

func NewScheduleSagaResumeCommand(service SagaService) *ScheduleSagaResumeCommand {
	return &ScheduleSagaResumeCommand{service: service}
}

func (c *ScheduleSagaResumeCommand) Execute(ctx context.Context, msg ScheduleSagaResumeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: saga service is required")
	}
	return c.service.ScheduleResume(ctx, msg.SagaID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
