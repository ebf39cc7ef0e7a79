package commands

import (
	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
)

func newStatusCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which identifiers are done and which are pending",
		Long: `Status classifies every identifier in the list without changing the
work directory:

  ✓  satisfied: the dataframe exists
     pending:   no dataframe yet, a run would process it
  !  stale:     a trigger remains next to an existing dataframe
  x  rejected:  the identifier cannot be turned into a file name`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd, opts, config.Overrides{})
			if err != nil {
				return err
			}
			defer func() { a.Close(err) }()

			plan, err := a.pipeline.Status(a.ctx)
			if err != nil {
				return err
			}
			return a.printPlan(plan, false)
		},
	}

	return cmd
}
