package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/watch"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var noInitialRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run again whenever the identifier list changes",
		Long: `Watch keeps running and starts an incremental run each time the
identifier list is saved. Bursts of edits are coalesced into one run.

While watching, metrics are served on telemetry.metrics.listen_address.`,
		Example: `  # Watch the default list
  intfdf watch

  # Watch without an initial run
  intfdf watch --no-initial-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, config.Overrides{})
			if err != nil {
				return err
			}
			defer func() { a.Close(err) }()

			if err := a.tel.StartMetricsServer(a.ctx); err != nil {
				return err
			}

			w := watch.New(a.cfg.IdentifiersPath(), a.cfg.Watch.Debounce,
				a.logger.With().Str("component", "watch").Logger())

			runOnStart := a.cfg.Watch.RunOnStart && !noInitialRun
			return w.Run(a.ctx, runOnStart, func(ctx context.Context) error {
				report, err := a.pipeline.Run(ctx)
				if perr := a.printReport(report); perr != nil && err == nil {
					err = perr
				}
				if ferr := a.tel.Metrics.WriteTextfile(); ferr != nil {
					a.logger.Warn().Err(ferr).Msg("Failed to write metrics textfile")
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&noInitialRun, "no-initial-run", false, "wait for the first change before running")

	return cmd
}
