package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexanderramin/complytrack/internal/importer"
	"github.com/alexanderramin/complytrack/internal/jobs"
	"github.com/alexanderramin/complytrack/internal/service"
	"github.com/spf13/cobra"
)

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run the periodic maintenance jobs",
	}

	cmd.AddCommand(newJobsRunCmd(app))

	return cmd
}

func newJobsRunCmd(app *App) *cobra.Command {
	var once bool
	var metricsAddr, watchPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep expired certificates and scan overdue tasks on a schedule",
		Long: "Runs until interrupted. Schedules come from the jobs section of the\n" +
			"configuration. With --watch the training matrix file is re-imported\n" +
			"whenever it changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = cfg.Metrics.Addr
			}
			if !cmd.Flags().Changed("watch") {
				watchPath = cfg.Matrix.WatchPath
			}

			var metrics *jobs.Metrics
			if app.Registry != nil {
				m, err := jobs.NewMetrics(app.Registry)
				if err != nil {
					return err
				}
				metrics = m
			}

			runner := jobs.NewRunner(app.Certificates, app.Tasks, jobs.RunnerConfig{
				Metrics: metrics,
				Logger:  app.Logger,
				Clock:   app.Clock,
			})

			if once {
				expired, err := runner.SweepExpiredCertificates(cmd.Context())
				if err != nil {
					return err
				}
				overdue, err := runner.ScanOverdueTasks(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Expired %d certificate(s); %d task(s) overdue\n", expired, len(overdue))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runJobs(ctx, cmd, app, runner, metrics, metricsAddr, watchPath)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run every job once and exit")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on this address")
	cmd.Flags().StringVar(&watchPath, "watch", "", "Training matrix file to re-import on change")

	return cmd
}

func runJobs(ctx context.Context, cmd *cobra.Command, app *App, runner *jobs.Runner, metrics *jobs.Metrics, metricsAddr, watchPath string) error {
	cfg := app.Config
	if err := runner.Schedule(jobs.Schedules{
		CertificateExpiry: cfg.Jobs.CertificateExpiry,
		OverdueScan:       cfg.Jobs.OverdueScan,
	}); err != nil {
		return err
	}

	if watchPath != "" {
		watcher, err := jobs.NewMatrixWatcher(watchPath, matrixReloader(app), jobs.WatcherConfig{
			Debounce: cfg.Matrix.Debounce,
			Logger:   app.Logger,
			Metrics:  metrics,
		})
		if err != nil {
			return err
		}
		if _, err := watcher.Sync(ctx); err != nil {
			return fmt.Errorf("initial matrix import: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	if metricsAddr != "" && app.Registry != nil {
		go func() { errCh <- jobs.ServeMetrics(ctx, metricsAddr, app.Registry, app.Logger) }()
	}

	runner.Start(ctx)
	defer runner.Stop()

	out := cmd.OutOrStdout()
	for job, next := range runner.Scheduled() {
		fmt.Fprintf(out, "%-20s next run %s\n", job, next.Local().Format(time.DateTime))
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func matrixReloader(app *App) jobs.ReloadFunc {
	return func(ctx context.Context, f *importer.MatrixFile) error {
		_, err := app.Trainings.ImportMatrix(ctx, app.Actor(), f, service.ImportOptions{Replace: true})
		return err
	}
}
