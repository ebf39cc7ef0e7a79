package commands

import (
	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

func newPlanCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Write trigger files without running the transformer",
		Long: `Plan writes a trigger file for every identifier that has no dataframe
and no trigger yet, then stops. Existing triggers are left untouched.

Running plan twice in a row writes nothing the second time.`,
		Example: `  # Materialize triggers for newly appended codes
  intfdf plan`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, config.Overrides{})
			if err != nil {
				return err
			}
			defer func() { a.Close(err) }()

			plan, err := a.pipeline.Plan(a.ctx)
			if err != nil {
				return err
			}
			return a.printPlan(plan, true)
		},
	}

	return cmd
}

// printPlan lists the classification of every identifier.
func (a *app) printPlan(plan *engine.Plan, wrote bool) error {
	if a.json {
		return a.printJSON(plan)
	}

	a.printf("Satisfied: %d\n", len(plan.Satisfied))
	for _, o := range plan.Satisfied {
		a.printf("  ✓ %-12s %s\n", o.ID, o.Name)
	}

	a.printf("Pending: %d\n", len(plan.Pending))
	for _, t := range plan.Pending {
		mark := " "
		if wrote && t.Created {
			mark = "+"
		}
		a.printf("  %s %-12s %s\n", mark, t.ID, t.Name)
	}

	if len(plan.Stale) > 0 {
		a.printf("Stale triggers: %d\n", len(plan.Stale))
		for _, t := range plan.Stale {
			a.printf("  ! %-12s %s\n", t.ID, t.Name)
		}
	}
	if len(plan.Rejected) > 0 {
		a.printf("Rejected: %d\n", len(plan.Rejected))
		for _, e := range plan.Rejected {
			a.printf("  x %s\n", e)
		}
	}
	return nil
}
