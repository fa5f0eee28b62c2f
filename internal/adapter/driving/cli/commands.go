package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/httpapi"
	"github.com/diillson/leasing-bi-pipeline/internal/adapter/driving/scheduler"
	"github.com/diillson/leasing-bi-pipeline/internal/domain/entity"
	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("source", "s", nil, "Workbook export files to ingest (CSV, YAML or JSON)")
	cmd.Flags().String("as-of", "", "Reporting period YYYY-MM; overrides detection from the file")
}

func addTransformFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("confirm-empty-period", nil, "Accept an empty lease roster for these periods (YYYY-MM)")
	cmd.Flags().Bool("rebuild", false, "Rebuild staging and the suite history from every cleared batch")
}

func addExportFlags(cmd *cobra.Command, defaults []string) {
	cmd.Flags().StringSliceP("export", "y", defaults, "Export formats: csv, json, parquet, pdf")
	cmd.Flags().StringP("report-name", "n", "", "Base name for JSON and PDF exports (without extension)")
	cmd.Flags().StringP("dir", "d", "", "Directory for exported files (default: gold.dir)")
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "First period YYYY-MM (inclusive)")
	cmd.Flags().String("to", "", "Last period YYYY-MM (inclusive)")
}

func requireSources(env *Env) error {
	if len(env.Args.Sources) == 0 {
		return errors.New("at least one --source file is required")
	}
	return nil
}

func (app *CLIApp) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest, validate, transform and export in one locked run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				if err := requireSources(env); err != nil {
					return err
				}
				summary, err := rt.Pipeline.Run(ctx, types.RunOptions{
					Sources:      env.Args.Sources,
					AsOf:         env.Args.AsOf,
					ConfirmEmpty: env.Args.ConfirmEmpty,
					Rebuild:      env.Args.Rebuild,
					ExportTypes:  exportFormats(env),
					ReportName:   env.Args.ReportName,
					Dir:          env.Args.Dir,
					Publish:      env.Args.Publish,
				})
				if err == nil {
					env.Console.LogSuccess("Run %s finished: %d batches ingested, %d periods in gold, %d files exported",
						summary.RunID, len(summary.Ingested), len(summary.Gold.PeriodKPIs), len(summary.Exported))
				}
				return err
			})
		},
	}
	addSourceFlags(cmd)
	addTransformFlags(cmd)
	addExportFlags(cmd, []string{"csv"})
	cmd.Flags().Bool("publish", false, "Upload exports to the configured S3 bucket")
	return cmd
}

func (app *CLIApp) ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract sources and append new batches to bronze",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				if err := requireSources(env); err != nil {
					return err
				}
				return rt.Pipeline.Execute(ctx, "ingest", func(ctx context.Context, _ string) error {
					_, err := rt.Pipeline.Ingest(ctx, env.Args.Sources, env.Args.AsOf)
					return err
				})
			})
		},
	}
	addSourceFlags(cmd)
	return cmd
}

func (app *CLIApp) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the quality gate over pending bronze batches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				return rt.Pipeline.Execute(ctx, "validate", func(ctx context.Context, _ string) error {
					_, err := rt.Pipeline.Validate(ctx, env.Args.ValidateAll)
					return err
				})
			})
		},
	}
	cmd.Flags().Bool("all", false, "Re-check every batch, not only pending ones")
	return cmd
}

func (app *CLIApp) transformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Bring staging, the suite history and gold up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				return rt.Pipeline.Execute(ctx, "transform", func(ctx context.Context, _ string) error {
					_, err := rt.Pipeline.Transform(ctx, env.Args.ConfirmEmpty, env.Args.Rebuild)
					return err
				})
			})
		},
	}
	addTransformFlags(cmd)
	return cmd
}

func (app *CLIApp) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the gold tables to files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				_, err := rt.Pipeline.Export(ctx, exportFormats(env), env.Args.ReportName, env.Args.Dir)
				return err
			})
		},
	}
	addExportFlags(cmd, []string{"csv", "json", "parquet", "pdf"})
	return cmd
}

func (app *CLIApp) publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the export directory to the configured S3 bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				_, err := rt.Pipeline.Publish(ctx, env.Args.Dir)
				return err
			})
		},
	}
	cmd.Flags().StringP("dir", "d", "", "Directory to upload (default: gold.dir)")
	return cmd
}

func (app *CLIApp) overrideCmd() *cobra.Command {
	var req types.OverrideRequest
	var kind, period string

	cmd := &cobra.Command{
		Use:   "override",
		Short: "Let a rejected bronze batch through the quality gate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if req.Kind, err = entity.ParseRecordKind(kind); err != nil {
				return err
			}
			if req.Period, err = entity.ParsePeriod(period); err != nil {
				return err
			}
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				return rt.Pipeline.Execute(ctx, "override", func(ctx context.Context, _ string) error {
					return rt.Pipeline.Override(ctx, req)
				})
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Record kind: monthly_metric, lease or expense")
	cmd.Flags().StringVar(&period, "period", "", "Batch period YYYY-MM")
	cmd.Flags().StringVar(&req.Fingerprint, "fingerprint", "", "Batch fingerprint")
	cmd.Flags().StringVar(&req.Reason, "reason", "", "Why the violations are acceptable")
	for _, f := range []string{"kind", "period", "fingerprint", "reason"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (app *CLIApp) reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show gold KPIs on the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				rng := entity.PeriodRange{From: env.Args.From, To: env.Args.To}
				if env.Args.Window > 0 {
					return rt.Reports.ShowWindows(ctx, env.Args.Window, rng)
				}
				if err := rt.Reports.ShowKPIs(ctx, rng, env.Args.Building); err != nil {
					return err
				}
				if env.Args.Trend {
					return rt.Reports.ShowTrend(ctx, rng)
				}
				return nil
			})
		},
	}
	addRangeFlags(cmd)
	cmd.Flags().String("building", "", "Also show per-building KPIs for this building")
	cmd.Flags().Int("window", 0, "Show rolling windows of this size instead of monthly KPIs")
	cmd.Flags().Bool("trend", false, "Display occupancy and collection trend bars")
	return cmd
}

func (app *CLIApp) suitesCmd() *cobra.Command {
	var history string
	cmd := &cobra.Command{
		Use:   "suites",
		Short: "List suites from the change history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				if history != "" {
					return rt.Reports.ShowSuiteHistory(ctx, history)
				}
				return rt.Reports.ShowSuites(ctx, env.Args.AsOf)
			})
		},
	}
	cmd.Flags().String("as-of", "", "Show suites as they were in this period (YYYY-MM)")
	cmd.Flags().StringVar(&history, "history", "", "Show every version of this suite")
	return cmd
}

func (app *CLIApp) auditCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show bronze rows per partition and fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := entity.ParseRecordKind(kind)
			if err != nil {
				return err
			}
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				return rt.Reports.ShowAudit(ctx, k)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(entity.KindLease), "Record kind: monthly_metric, lease or expense")
	return cmd
}

func (app *CLIApp) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				return rt.Reports.ShowRuns(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func (app *CLIApp) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gold tables over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.env(cmd)
			if err != nil {
				return err
			}
			defer env.Logger.Sync()
			if addr == "" {
				addr = env.Config.Serve.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			env.Console.LogInfo("Serving the read API on %s", addr)
			return httpapi.NewServer(app.wiring.OpenReader(env), env.Logger).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: serve.addr)")
	return cmd
}

func (app *CLIApp) scheduleCmd() *cobra.Command {
	var spec, inbox string
	var once bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron expression over an inbox directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := app.env(cmd)
			if err != nil {
				return err
			}
			defer env.Logger.Sync()
			if spec == "" {
				spec = env.Config.Schedule.Cron
			}
			if inbox == "" {
				inbox = env.Config.Schedule.Inbox
			}

			// Cada disparo abre e fecha os armazéns, liberando o arquivo
			// DuckDB para leitores entre execuções.
			job := func(ctx context.Context, sources []string) error {
				rt, err := app.wiring.OpenRuntime(ctx, env)
				if err != nil {
					return err
				}
				if rt.Close != nil {
					defer rt.Close()
				}
				_, err = rt.Pipeline.Run(ctx, types.RunOptions{
					Sources:     sources,
					ExportTypes: exportFormats(env),
					ReportName:  env.Args.ReportName,
					Dir:         env.Args.Dir,
					Publish:     env.Args.Publish,
				})
				return err
			}
			sched := scheduler.NewScheduler(spec, inbox, job, env.Logger)

			if once {
				sources, err := sched.RunOnce(cmd.Context())
				if err == nil && len(sources) == 0 {
					env.Console.LogInfo("Inbox %s is empty", inbox)
				}
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := sched.Start(ctx); err != nil {
				return err
			}
			env.Console.LogInfo("Watching %s on %q; press Ctrl+C to stop", inbox, spec)
			<-ctx.Done()
			sched.Stop()
			env.Logger.Info("schedule stopped", zap.String("inbox", inbox))
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (default: schedule.cron)")
	cmd.Flags().StringVar(&inbox, "inbox", "", "Directory scanned for workbook exports (default: schedule.inbox)")
	cmd.Flags().BoolVar(&once, "once", false, "Process the inbox once and exit")
	cmd.Flags().Bool("publish", false, "Upload exports after each run")
	addExportFlags(cmd, []string{"csv"})
	return cmd
}

func (app *CLIApp) unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Clear lock files left behind by a crashed run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withRuntime(cmd, func(ctx context.Context, env *Env, rt *Runtime) error {
				if err := rt.Pipeline.Unlock(); err != nil {
					return err
				}
				env.Console.LogSuccess("Run lock removed")
				return nil
			})
		},
	}
}
