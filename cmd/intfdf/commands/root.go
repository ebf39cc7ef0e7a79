package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	workDir     string
	identifiers string
	jobs        int
	logLevel    string
	jsonOutput  bool

	version string
}

// Execute runs the root command
func Execute(ctx context.Context, version string) error {
	rootCmd := newRootCommand(version)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	opts := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "intfdf",
		Short: "Incremental builder of PDBePISA interface dataframes",
		Long: `intfdf turns a list of PDB codes into pickled PDBePISA interface
dataframes and bundles them into one timestamped archive.

Runs are incremental: an identifier whose dataframe already exists in the
work directory is never processed again. Append codes to the list and run
again to process only the new ones.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file path (default <workdir>/"+config.DefaultFileName+")")
	flags.StringVarP(&opts.workDir, "workdir", "w", "", "work directory")
	flags.StringVarP(&opts.identifiers, "identifiers", "i", "", "identifier list file")
	flags.IntVarP(&opts.jobs, "jobs", "j", config.DefaultJobs, "maximum concurrent transformer processes")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newPlanCommand(opts))
	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newCleanCommand(opts))
	rootCmd.AddCommand(newDevResetCommand(opts))
	rootCmd.AddCommand(newHistoryCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))
	rootCmd.AddCommand(newInitCommand(opts))

	return rootCmd
}

// resolvedConfigPath returns the --config value, or the default file name
// inside the work directory.
func (o *globalOptions) resolvedConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	dir := o.workDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, config.DefaultFileName)
}

// loadConfig reads the configuration file and applies the flags that were
// set on the command line. LOG_LEVEL applies when --log-level is not given.
func (o *globalOptions) loadConfig(cmd *cobra.Command, extra config.Overrides) (*config.Config, string, error) {
	path := o.resolvedConfigPath()

	cfg, err := config.Load(path, o.configPath == "")
	if err != nil {
		return nil, "", err
	}

	overrides := extra
	flags := cmd.Flags()
	if o.workDir != "" {
		overrides.WorkDir = &o.workDir
	}
	if flags.Changed("identifiers") {
		overrides.Identifiers = &o.identifiers
	}
	if flags.Changed("jobs") {
		overrides.Jobs = &o.jobs
	}
	if flags.Changed("log-level") {
		overrides.LogLevel = &o.logLevel
	} else if level := os.Getenv("LOG_LEVEL"); level != "" {
		overrides.LogLevel = &level
	}
	if o.jsonOutput {
		overrides.JSON = &o.jsonOutput
	}

	if err := overrides.Apply(cfg); err != nil {
		return nil, "", err
	}
	if cfg.Telemetry.ServiceVersion == "dev" && o.version != "" {
		cfg.Telemetry.ServiceVersion = o.version
	}
	return cfg, path, nil
}
