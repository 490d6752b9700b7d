package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"
)

type contentFlags struct {
	studentName string
	degree      string
	institution string
	issueDate   string
	imageURL    string
}

func (f *contentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.studentName, "student", "", "student name")
	cmd.Flags().StringVar(&f.degree, "degree", "", "degree title")
	cmd.Flags().StringVar(&f.institution, "institution", "", "issuing institution")
	cmd.Flags().StringVar(&f.issueDate, "date", "", "issue date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.imageURL, "image", "", "optional image URL")
}

func (f *contentFlags) request() core.ContentRequest {
	return core.ContentRequest{
		StudentName: f.studentName,
		Degree:      f.degree,
		Institution: f.institution,
		IssueDate:   f.issueDate,
		ImageURL:    f.imageURL,
	}
}

// withRuntime builds the runtime for one command invocation and closes it
// afterwards.
func withRuntime(cmd *cobra.Command, req requirements, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	cfg := FromContext(ctx)
	if cfg == nil {
		return fmt.Errorf("no config found in context")
	}
	provider := newLoggerProvider(cmd.ErrOrStderr(), globalFlags.debug)
	rt, err := buildRuntime(ctx, cfg, provider, req)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// execute runs a command handler and returns the result it stored.
func execute[R any, T any](ctx context.Context, handler gocmd.Commander[T], msg T) (R, error) {
	collector := gocmd.NewResult[R]()
	ctx = gocmd.ContextWithResult(ctx, collector)
	if err := handler.Execute(ctx, msg); err != nil {
		var zero R
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := FromContext(cmd.Context())
			if cfg == nil {
				return fmt.Errorf("no config found in context")
			}
			if err := migrateDatabase(cmd.Context(), cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func issueCommand() *cobra.Command {
	var (
		content  contentFlags
		owner    string
		referrer string
		free     bool
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Publish metadata, record and mint a certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true, publisher: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.IssueResult, certcommand.IssueMessage](ctx, rt.facade.Commands().Issue, certcommand.IssueMessage{
					Request: core.IssueRequest{
						Owner:    owner,
						Content:  content.request(),
						Referrer: referrer,
						Free:     free,
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
	cmd.Flags().BoolVar(&free, "free", false, "mint with the engine wallet using referral credit")
	content.bind(cmd)
	return cmd
}

func issueVersionCommand() *cobra.Command {
	var (
		content contentFlags
		owner   string
	)
	cmd := &cobra.Command{
		Use:   "issue-version",
		Short: "Append a new metadata version to an existing certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true, publisher: true}, func(ctx context.Context, rt *runtime) error {
				result, err := execute[core.VersionResult, certcommand.IssueVersionMessage](ctx, rt.facade.Commands().IssueVersion, certcommand.IssueVersionMessage{
					Request: core.IssueVersionRequest{Owner: owner, Content: content.request()},
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "certificate owner address")
	content.bind(cmd)
	return cmd
}

func showCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored certificate for an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{}, func(ctx context.Context, rt *runtime) error {
				cert, err := rt.facade.Queries().GetCertificate.Query(ctx, certquery.GetCertificateMessage{Owner: owner})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cert)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "certificate owner address")
	return cmd
}

func accessCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Check whether an owner holds a certificate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{}, func(ctx context.Context, rt *runtime) error {
				grant, err := rt.facade.Queries().CheckAccess.Query(ctx, certquery.CheckAccessMessage{Owner: owner})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), grant)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "certificate owner address")
	return cmd
}

func creditCommand() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Show the referral credit of an owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{}, func(ctx context.Context, rt *runtime) error {
				credit, err := rt.facade.Queries().GetReferralCredit.Query(ctx, certquery.GetReferralCreditMessage{Owner: owner})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), credit)
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "certificate owner address")
	return cmd
}
