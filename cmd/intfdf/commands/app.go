package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
	"github.com/fomightez/pdbepisa-binder/pkg/config"
	"github.com/fomightez/pdbepisa-binder/pkg/engine"
	"github.com/fomightez/pdbepisa-binder/pkg/identifiers"
	"github.com/fomightez/pdbepisa-binder/pkg/publish"
	"github.com/fomightez/pdbepisa-binder/pkg/stores"
	"github.com/fomightez/pdbepisa-binder/pkg/telemetry"
	"github.com/fomightez/pdbepisa-binder/pkg/transformer"
)

// errHistoryDisabled is returned by commands that need the run history.
var errHistoryDisabled = errors.New("run history is disabled (history.enabled: false)")

// shutdownTimeout bounds telemetry flushing on exit.
const shutdownTimeout = 10 * time.Second

// app holds everything a command needs, built from the loaded configuration.
type app struct {
	cfg        *config.Config
	configPath string

	tel      *telemetry.Telemetry
	logger   zerolog.Logger
	store    *stores.SQLiteStore
	pipeline *engine.Pipeline

	ctx  context.Context
	span trace.Span
	out  io.Writer
	json bool
}

// appOption adjusts how newApp wires a command.
type appOption func(*appSettings)

type appSettings struct {
	history bool
}

// withoutHistory leaves the run history closed. Commands that must not
// create files in the work directory use it.
func withoutHistory() appOption {
	return func(s *appSettings) { s.history = false }
}

// newApp loads the configuration and wires the pipeline for cmd.
func newApp(cmd *cobra.Command, opts *globalOptions, extra config.Overrides, appOpts ...appOption) (*app, error) {
	settings := appSettings{history: true}
	for _, o := range appOpts {
		o(&settings)
	}

	cfg, configPath, err := opts.loadConfig(cmd, extra)
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.Metrics.TextfilePath = cfg.Path(cfg.Telemetry.Metrics.TextfilePath)

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Telemetry.Logging.Level))

	a := &app{
		cfg:        cfg,
		configPath: configPath,
		tel:        tel,
		logger:     tel.Logger.Zerolog(),
		out:        cmd.OutOrStdout(),
		json:       opts.jsonOutput,
	}
	a.ctx, a.span = tel.Tracer.StartCommandSpan(cmd.Context(), cmd.Name())
	if traceID := telemetry.TraceID(a.ctx); traceID != "" {
		a.logger = a.logger.With().Str("trace_id", traceID).Logger()
	}

	if cfg.History.Enabled && settings.history {
		store, err := stores.Open(a.ctx, cfg.HistoryPath())
		if err != nil {
			a.Close(err)
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		a.store = store
	}

	pipeline, err := a.newPipeline()
	if err != nil {
		a.Close(err)
		return nil, err
	}
	a.pipeline = pipeline

	a.logger.Debug().
		Str("config", configPath).
		Str("work_dir", cfg.WorkDir).
		Int("jobs", cfg.Jobs).
		Msg("Configuration loaded")

	return a, nil
}

func (a *app) newPipeline() (*engine.Pipeline, error) {
	cfg := a.cfg

	namer, err := artifacts.NewNamer(cfg.Naming)
	if err != nil {
		return nil, err
	}

	publisher, err := publish.New(cfg.Publish, a.logger)
	if err != nil {
		return nil, err
	}

	var recorder engine.RunRecorder
	if a.store != nil {
		recorder = stores.NewRecorder(a.store, cfg.WorkDir)
	}

	return engine.NewPipeline(engine.Config{
		WorkDir: cfg.WorkDir,
		Source:  identifiers.NewFileSource(cfg.IdentifiersPath()),
		Namer:   namer,
		Transformer: &transformer.Exec{
			Command:  cfg.Transformer.Command,
			Args:     cfg.Transformer.Args,
			WorkDir:  cfg.WorkDir,
			Resource: cfg.Resource.Name,
			Env:      cfg.Transformer.Env,
			Logger:   a.logger.With().Str("component", "transformer").Logger(),
		},
		ResourceName:    cfg.Resource.Name,
		ResourceURL:     cfg.Resource.URL,
		Jobs:            cfg.Jobs,
		NoCleanup:       !cfg.Cleanup,
		DuplicatePolicy: cfg.Duplicates,
		Protect:         cfg.ProtectedNames(a.configPath),
		Publisher:       publisher,
		Recorder:        recorder,
		Metrics:         a.tel.Metrics,
		Logger:          a.logger,
	})
}

// Close ends the command span and releases the store and telemetry.
func (a *app) Close(err error) {
	telemetry.RecordError(a.span, err)
	if err == nil {
		telemetry.RecordSuccess(a.span)
	}
	a.span.End()

	if a.store != nil {
		if cerr := a.store.Close(); cerr != nil {
			a.logger.Warn().Err(cerr).Msg("Failed to close run history")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.tel.Shutdown(ctx); serr != nil {
		a.logger.Warn().Err(serr).Msg("Failed to shut down telemetry")
	}
}

// printf writes human-readable output.
func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// printJSON writes v as indented JSON.
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
