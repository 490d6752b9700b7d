package main

import (
	"context"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	"github.com/spf13/cobra"
)

func adminCommand() *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Contract administration; the caller must be the contract owner",
	}
	cmd.PersistentFlags().StringVar(&caller, "caller", "", "address of the requesting administrator")

	cmd.AddCommand(adminMintFreeCommand(&caller))
	cmd.AddCommand(adminRevokeCommand(&caller))
	cmd.AddCommand(adminPauseCommand(&caller, true))
	cmd.AddCommand(adminPauseCommand(&caller, false))
	cmd.AddCommand(adminTransferOwnershipCommand(&caller))
	cmd.AddCommand(adminSetBaseURICommand(&caller))
	return cmd
}

func adminMintFreeCommand(caller *string) *cobra.Command {
	var (
		content  contentFlags
		owner    string
		referrer string
	)
	cmd := &cobra.Command{
		Use:   "mint-free",
		Short: "Mint a fee-waived certificate for an owner without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true, publisher: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.AdminResult, certcommand.AdminMintFreeMessage](ctx, rt.facade.Commands().AdminMintFree, certcommand.AdminMintFreeMessage{
					Request: core.AdminMintFreeRequest{
						Caller:   *caller,
						Owner:    owner,
						Referrer: referrer,
						Content:  content.request(),
					},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "certificate owner address")
	cmd.Flags().StringVar(&referrer, "referrer", "", "optional referrer address")
	content.bind(cmd)
	return cmd
}

func adminRevokeCommand(caller *string) *cobra.Command {
	var tokenID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token and delete its certificate record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.AdminResult, certcommand.AdminRevokeMessage](ctx, rt.facade.Commands().AdminRevoke, certcommand.AdminRevokeMessage{
					Request: core.AdminRevokeRequest{Caller: *caller, TokenID: tokenID},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&tokenID, "token", "", "token id to revoke")
	return cmd
}

func adminPauseCommand(caller *string, pause bool) *cobra.Command {
	use, short := "unpause", "Resume minting on the contract"
	if pause {
		use, short = "pause", "Pause minting on the contract"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true}, func(ctx context.Context, rt *runtime) error {
				req := core.AdminRequest{Caller: *caller}
				var (
					result core.AdminResult
					err    error
				)
				if pause {
					result, err = execute[core.AdminResult, certcommand.AdminPauseMessage](ctx, rt.facade.Commands().AdminPause, certcommand.AdminPauseMessage{Request: req})
				} else {
					result, err = execute[core.AdminResult, certcommand.AdminUnpauseMessage](ctx, rt.facade.Commands().AdminUnpause, certcommand.AdminUnpauseMessage{Request: req})
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func adminTransferOwnershipCommand(caller *string) *cobra.Command {
	var newOwner string
	cmd := &cobra.Command{
		Use:   "transfer-ownership",
		Short: "Transfer contract ownership",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.AdminResult, certcommand.AdminTransferOwnershipMessage](ctx, rt.facade.Commands().AdminTransferOwnership, certcommand.AdminTransferOwnershipMessage{
					Request: core.TransferOwnershipRequest{Caller: *caller, NewOwner: newOwner},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&newOwner, "new-owner", "", "address of the new contract owner")
	return cmd
}

func adminSetBaseURICommand(caller *string) *cobra.Command {
	var uri string
	cmd := &cobra.Command{
		Use:   "set-base-uri",
		Short: "Set the contract base token URI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.AdminResult, certcommand.AdminSetBaseURIMessage](ctx, rt.facade.Commands().AdminSetBaseURI, certcommand.AdminSetBaseURIMessage{
					Request: core.SetBaseURIRequest{Caller: *caller, URI: uri},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&uri, "uri", "", "new base URI")
	return cmd
}
