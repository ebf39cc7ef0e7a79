package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/stores"
)

func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit      int
		runID      string
		identifier string
		prune      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `History lists past runs from the SQLite run history, newest first.

With --run it lists the executions of one run, with --id the executions of
one identifier across runs. --prune deletes runs older than the given age.`,
		Example: `  # Last ten runs
  intfdf history --limit 10

  # What happened to 6kix
  intfdf history --id 6kix

  # Forget runs older than 30 days
  intfdf history --prune 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, config.Overrides{})
			if err != nil {
				return err
			}
			defer func() { a.Close(err) }()

			if a.store == nil {
				return errHistoryDisabled
			}

			switch {
			case prune > 0:
				n, err := a.store.DeleteRunsBefore(a.ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				if a.json {
					return a.printJSON(map[string]int64{"deleted": n})
				}
				a.printf("Deleted %d run(s) older than %s\n", n, prune)
				return nil

			case runID != "":
				run, err := a.store.GetRun(a.ctx, runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				execs, err := a.store.ListExecutionsByRun(a.ctx, runID)
				if err != nil {
					return err
				}
				if a.json {
					return a.printJSON(struct {
						Run        *stores.Run         `json:"run"`
						Executions []*stores.Execution `json:"executions"`
					}{run, execs})
				}
				a.printRuns([]*stores.Run{run})
				a.printExecutions(execs)
				return nil

			case identifier != "":
				execs, err := a.store.ListExecutionsByIdentifier(a.ctx, identifier, limit)
				if err != nil {
					return err
				}
				if a.json {
					return a.printJSON(execs)
				}
				a.printExecutions(execs)
				return nil
			}

			runs, err := a.store.ListRuns(a.ctx, limit, 0)
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(runs)
			}
			a.printRuns(runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().StringVar(&runID, "run", "", "show the executions of one run")
	cmd.Flags().StringVar(&identifier, "id", "", "show the executions of one identifier")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this age")
	cmd.MarkFlagsMutuallyExclusive("run", "id", "prune")

	return cmd
}

func (a *app) printRuns(runs []*stores.Run) {
	if len(runs) == 0 {
		a.printf("No runs recorded\n")
		return
	}
	for _, r := range runs {
		a.printf("%s  %s  %-9s  %3d ids  %3d new  %3d ok  %3d failed  %s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			r.Identifiers,
			r.Created,
			r.Succeeded,
			r.Failed,
			deref(r.Archive, "-"))
		if r.PublishedTo != nil {
			a.printf("    published: %s\n", *r.PublishedTo)
		}
		if r.Error != nil {
			a.printf("    error: %s\n", *r.Error)
		}
	}
}

func (a *app) printExecutions(execs []*stores.Execution) {
	if len(execs) == 0 {
		a.printf("No executions recorded\n")
		return
	}
	for _, e := range execs {
		a.printf("  %s  %-12s  %-9s  %8s  %s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Identifier,
			e.Status,
			e.Duration.Round(time.Millisecond),
			deref(e.Output, deref(e.Error, "-")))
	}
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
