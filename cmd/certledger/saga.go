package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	certcommand "github.com/goliatone/go-certledger/command"
	"github.com/goliatone/go-certledger/core"
	certquery "github.com/goliatone/go-certledger/query"
	"github.com/goliatone/go-certledger/recovery"
	"github.com/spf13/cobra"
)

func sagaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saga",
		Short: "Inspect and recover issuance sagas",
	}
	cmd.AddCommand(sagaShowCommand())
	cmd.AddCommand(sagaListCommand())
	cmd.AddCommand(sagaResumeCommand())
	cmd.AddCommand(sagaSweepCommand())
	return cmd
}

func sagaShowCommand() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a saga journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{}, func(ctx context.Context, rt *runtime) error {
				saga, err := rt.facade.Queries().GetSaga.Query(ctx, certquery.GetSagaMessage{SagaID: id})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saga)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "saga id")
	return cmd
}

func sagaListCommand() *cobra.Command {
	var (
		stalledFor time.Duration
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open sagas not updated recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{}, func(ctx context.Context, rt *runtime) error {
				query := rt.facade.Queries().ListStalledSagas
				if query == nil {
					return fmt.Errorf("stalled saga listing is not available")
				}
				sagas, err := query.Query(ctx, certquery.ListStalledSagasMessage{StalledFor: stalledFor, Limit: limit})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sagas)
			})
		},
	}
	cmd.Flags().DurationVar(&stalledFor, "stalled-for", 0, "only sagas idle for at least this long")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum sagas to list (0 uses the configured batch size)")
	return cmd
}

func sagaResumeCommand() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a saga from its first uncommitted step",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true, publisher: true}, func(ctx context.Context, rt *runtime) error {
				saga, err := execute[core.Saga, certcommand.ResumeSagaMessage](ctx, rt.facade.Commands().ResumeSaga, certcommand.ResumeSagaMessage{SagaID: id})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saga)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "saga id")
	return cmd
}

func sagaSweepCommand() *cobra.Command {
	var (
		interval   time.Duration
		staleAfter time.Duration
		batchSize  int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resume stalled sagas once, or every interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, requirements{ledger: true, publisher: true}, func(ctx context.Context, rt *runtime) error {
				recoveryCfg := rt.service.Config().Recovery
				if staleAfter > 0 {
					recoveryCfg.StaleAfter = staleAfter
				}
				if batchSize > 0 {
					recoveryCfg.BatchSize = batchSize
				}
				sweeper := recovery.NewSweeper(rt.service, recoveryCfg, recovery.ModeInline)
				sweeper.Logger = rt.provider.GetLogger("recovery")

				if interval <= 0 {
					report, err := sweeper.SweepOnce(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), sweepSummary(report))
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				rt.serveMetrics(ctx)
				if err := sweeper.Run(ctx, interval); err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "keep sweeping at this interval until interrupted")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "override recovery.stale_after")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override recovery.batch_size")
	return cmd
}

type sweepReport struct {
	Found     int               `json:"found"`
	Scheduled int               `json:"scheduled"`
	Resumed   int               `json:"resumed"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func sweepSummary(report recovery.Report) sweepReport {
	out := sweepReport{Found: report.Found, Scheduled: report.Scheduled, Resumed: report.Resumed, Failed: report.Failed}
	if len(report.Errors) > 0 {
		out.Errors = make(map[string]string, len(report.Errors))
		for id, err := range report.Errors {
			out.Errors[id] = err.Error()
		}
	}
	return out
}
