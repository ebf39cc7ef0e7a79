package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
	"github.com/fomightez/pdbepisa-binder/pkg/identifiers"
	"github.com/fomightez/pdbepisa-binder/pkg/publish"
	"github.com/fomightez/pdbepisa-binder/pkg/telemetry"
)

// DefaultFileName is the configuration file looked up in the working
// directory when --config is not given.
const DefaultFileName = "intfdf.yaml"

// Defaults of the PDBePISA interface workflow.
const (
	DefaultIdentifiers  = "interface_data_2_df_codes.txt"
	DefaultResourceName = "pisa_interface_list_to_df.py"
	DefaultResourceURL  = "https://raw.githubusercontent.com/fomightez/structurework/master/pdbepisa-utilities/pisa_interface_list_to_df.py"
	DefaultHistoryPath  = ".intfdf/history.db"
	DefaultJobs         = 4
)

// Config is the full intfdf configuration.
type Config struct {
	// WorkDir holds the identifier list and every generated artifact.
	WorkDir string `yaml:"work_dir" validate:"required"`

	// Identifiers is the identifier list, relative to WorkDir unless absolute.
	Identifiers string `yaml:"identifiers" validate:"required"`

	// Jobs bounds the number of concurrent transformer processes.
	Jobs int `yaml:"jobs" validate:"gte=1,lte=256"`

	// Duplicates is the policy for repeated identifiers (collapse, reject).
	Duplicates identifiers.DuplicatePolicy `yaml:"duplicates" validate:"oneof=collapse reject"`

	// Cleanup removes the shared resource and intermediates after archiving.
	Cleanup bool `yaml:"cleanup"`

	// Protect lists extra file names that reset never removes.
	Protect []string `yaml:"protect" validate:"dive,required"`

	// Naming holds the artifact naming conventions.
	Naming artifacts.Naming `yaml:"naming"`

	// Resource is the shared transformer script.
	Resource ResourceConfig `yaml:"resource"`

	// Transformer is the per-identifier command.
	Transformer TransformerConfig `yaml:"transformer"`

	// History configures the run history database.
	History HistoryConfig `yaml:"history"`

	// Publish configures archive publishing.
	Publish publish.Config `yaml:"publish"`

	// Watch configures the watch command.
	Watch WatchConfig `yaml:"watch"`

	// Telemetry configures logging, tracing and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ResourceConfig locates the shared resource.
type ResourceConfig struct {
	// Name is the file name of the resource in WorkDir. Empty disables
	// provisioning.
	Name string `yaml:"name" validate:"omitempty,excludesall=/\\"`

	// URL is the http(s):// or file:// source of the resource.
	URL string `yaml:"url" validate:"required_with=Name,omitempty,url"`
}

// TransformerConfig describes the external program run per identifier.
type TransformerConfig struct {
	// Command is the program to run.
	Command string `yaml:"command" validate:"required"`

	// Args support the {id}, {resource} and {workdir} placeholders.
	Args []string `yaml:"args"`

	// Env adds variables to the inherited environment.
	Env map[string]string `yaml:"env"`
}

// HistoryConfig configures the run history database.
type HistoryConfig struct {
	// Enabled records every run in SQLite.
	Enabled bool `yaml:"enabled"`

	// Path is the database file, relative to WorkDir unless absolute.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	// Debounce coalesces bursts of list edits into one run.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	// RunOnStart runs once before waiting for changes.
	RunOnStart bool `yaml:"run_on_start"`
}

// Default returns the configuration of the original workflow.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		WorkDir:     ".",
		Identifiers: DefaultIdentifiers,
		Jobs:        DefaultJobs,
		Duplicates:  identifiers.DuplicatesCollapse,
		Cleanup:     true,
		Naming:      artifacts.DefaultNaming(),
		Resource: ResourceConfig{
			Name: DefaultResourceName,
			URL:  DefaultResourceURL,
		},
		Transformer: TransformerConfig{
			Command: "python",
			Args:    []string{"{resource}", "{id}"},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Publish: publish.DefaultConfig(),
		Watch: WatchConfig{
			Debounce:   2 * time.Second,
			RunOnStart: true,
		},
		Telemetry: *tel,
	}
}

// Validate checks struct tags and the cross-field rules of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := artifacts.NewNamer(c.Naming); err != nil {
		return fmt.Errorf("invalid naming: %w", err)
	}
	if err := c.Publish.Validate(); err != nil {
		return fmt.Errorf("invalid publish: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry: %w", err)
	}
	return nil
}

// Path resolves p against WorkDir.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// IdentifiersPath is the resolved identifier list path.
func (c *Config) IdentifiersPath() string {
	return c.Path(c.Identifiers)
}

// HistoryPath is the resolved history database path.
func (c *Config) HistoryPath() string {
	return c.Path(c.History.Path)
}

// ProtectedNames returns the file names in WorkDir that reset must keep:
// the identifier list, the history database, the configuration file and
// any configured extras.
func (c *Config) ProtectedNames(configPath string) []string {
	names := append([]string{}, c.Protect...)
	for _, p := range []string{c.IdentifiersPath(), c.HistoryPath(), configPath} {
		if p == "" {
			continue
		}
		names = append(names, filepath.Base(p))
	}
	return names
}

func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
