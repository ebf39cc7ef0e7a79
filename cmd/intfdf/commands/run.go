package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var noCleanup bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process new identifiers and build the archive",
		Long: `Run one incremental pass over the identifier list.

A run:
  - Writes a trigger file for every identifier without a dataframe
  - Fetches the shared transformer script when work is pending
  - Runs the transformer for each trigger, in parallel up to --jobs
  - Archives every dataframe in list order once all are present
  - Removes the script and intermediate lists unless --no-cleanup
  - Publishes the archive when a publisher is configured

Identifiers that already have a dataframe are never processed again. A
failed identifier keeps its trigger and is retried by the next run.`,
		Example: `  # Process the default list in the current directory
  intfdf run

  # Process a list elsewhere with eight parallel jobs
  intfdf run --workdir /data/pisa --jobs 8

  # Keep the script and intermediate lists for inspection
  intfdf run --no-cleanup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			var overrides config.Overrides
			if noCleanup {
				overrides.NoCleanup = &noCleanup
			}

			a, err := newApp(cmd, opts, overrides)
			if err != nil {
				return err
			}
			defer func() { a.Close(err) }()

			report, err := a.pipeline.Run(a.ctx)
			if perr := a.printReport(report); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "keep the shared script and intermediate lists after archiving")

	return cmd
}

// printReport writes the outcome of a run. A built archive is always
// followed by the download reminder.
func (a *app) printReport(report *engine.RunReport) error {
	if a.json {
		return a.printJSON(report)
	}

	a.printf("Run %s %s in %s\n", report.RunID, report.Status, report.Duration.Round(time.Millisecond))
	if report.Plan != nil {
		a.printf("  identifiers: %d (satisfied %d, pending %d, new triggers %d)\n",
			report.Identifiers,
			len(report.Plan.Satisfied),
			len(report.Plan.Pending),
			len(report.Plan.Created()))
		for _, rej := range report.Plan.Rejected {
			a.printf("  rejected:    %s\n", rej)
		}
	}
	if len(report.Duplicates) > 0 {
		a.printf("  duplicates:  %v\n", report.Duplicates)
	}
	if len(report.Executions) > 0 {
		a.printf("  executed:    %d (failed %d)\n", len(report.Executions), report.Failed())
		for _, e := range report.Executions {
			if e.Status == engine.ExecutionSucceeded {
				continue
			}
			a.printf("    %-8s %s: %v\n", e.Status, e.ID, e.Error)
		}
	}
	if report.Err != nil {
		a.printf("  error:       %v\n", report.Err)
	}
	if report.Archive == nil {
		return nil
	}

	a.printf("  archive:     %s (%d members, %d bytes)\n",
		report.Archive.Name, len(report.Archive.Members), report.Archive.Size)
	if report.PublishedTo != "" {
		a.printf("  published:   %s\n", report.PublishedTo)
	}
	a.printf("BE SURE TO DOWNLOAD %s.\n", report.Archive.Name)
	return nil
}
