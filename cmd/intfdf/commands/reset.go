package commands

import (
	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

func newCleanCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove triggers, dataframes and archives",
		Long: `Clean removes every trigger file, dataframe and archive from the work
directory so the next run starts over. The identifier list, configuration
and run history are never removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, opts, engine.ScopeGenerated)
		},
	}
}

func newDevResetCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dev-reset",
		Short: "Remove every generated file, including the shared script",
		Long: `Dev-reset does what clean does and additionally removes the shared
transformer script, intermediate interface lists and leftover partial
downloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, opts, engine.ScopeAll)
		},
	}
}

type resetResult struct {
	Scope   engine.ResetScope `json:"scope"`
	Removed []string          `json:"removed"`
}

func runReset(cmd *cobra.Command, opts *globalOptions, scope engine.ResetScope) (err error) {
	a, err := newApp(cmd, opts, config.Overrides{}, withoutHistory())
	if err != nil {
		return err
	}
	defer func() { a.Close(err) }()

	removed, err := a.pipeline.Reset(a.ctx, scope)
	if err != nil {
		return err
	}

	if a.json {
		return a.printJSON(resetResult{Scope: scope, Removed: removed})
	}
	for _, name := range removed {
		a.printf("✓ Removed %s\n", name)
	}
	a.printf("Removed %d file(s) from %s\n", len(removed), a.cfg.WorkDir)
	return nil
}
