package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/stores"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a work directory",
		Long: `Initialize a work directory with a commented configuration file, an
empty identifier list and the run history database.

Existing files are kept; pass --force to overwrite the configuration.`,
		Example: `  # Initialize the current directory
  intfdf init

  # Initialize another directory
  intfdf init --workdir /data/pisa`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg := config.Default()
			if opts.workDir != "" {
				cfg.WorkDir = opts.workDir
			}
			if cmd.Flags().Changed("identifiers") {
				cfg.Identifiers = opts.identifiers
			}
			if cmd.Flags().Changed("jobs") {
				cfg.Jobs = opts.jobs
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			configPath := opts.resolvedConfigPath()
			log.Info().
				Str("work_dir", cfg.WorkDir).
				Str("config", configPath).
				Msg("Initializing work directory")

			if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", cfg.WorkDir, err)
			}
			fmt.Fprintf(out, "✓ Work directory: %s\n", cfg.WorkDir)

			// The file keeps work_dir relative so the directory can move.
			fileCfg := *cfg
			fileCfg.WorkDir = "."
			data, err := config.Template(&fileCfg)
			if err != nil {
				return err
			}
			wrote, err := writeFile(configPath, data, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Configuration: %s\n", mark(wrote), configPath)

			listPath := cfg.IdentifiersPath()
			wrote, err = writeFile(listPath, nil, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Identifier list: %s\n", mark(wrote), listPath)

			if cfg.History.Enabled {
				store, err := stores.Open(cmd.Context(), cfg.HistoryPath())
				if err != nil {
					return fmt.Errorf("failed to initialize run history: %w", err)
				}
				if err := store.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Run history: %s\n", cfg.HistoryPath())
			}

			fmt.Fprintf(out, "\nAdd PDB codes to %s, one per line, then run:\n  intfdf run\n", filepath.Base(listPath))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing configuration file")

	return cmd
}

// writeFile creates path with data. An existing file is kept unless
// overwrite is set; the result reports whether the file was written.
func writeFile(path string, data []byte, overwrite bool) (bool, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, f.Close()
}

func mark(wrote bool) string {
	if wrote {
		return "✓"
	}
	return "-"
}
