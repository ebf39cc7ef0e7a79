package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
	"github.com/fomightez/pdbepisa-binder/pkg/identifiers"
)

// DefaultJobs is the default bound on concurrent executions.
const DefaultJobs = 4

// Config wires a Pipeline.
type Config struct {
	// WorkDir holds every artifact.
	WorkDir string

	// Source supplies the identifier list.
	Source IdentifierSource

	// Namer derives artifact names.
	Namer *artifacts.Namer

	// Transformer produces one output per identifier.
	Transformer Transformer

	// ResourceName is the shared resource file name. Empty disables
	// provisioning.
	ResourceName string

	// ResourceURL is where the shared resource is fetched from.
	ResourceURL string

	// Jobs bounds concurrent executions. Zero means DefaultJobs.
	Jobs int

	// NoCleanup keeps the shared resource and intermediates after archiving.
	NoCleanup bool

	// DuplicatePolicy decides how repeated identifiers are handled.
	DuplicatePolicy identifiers.DuplicatePolicy

	// Protect lists file names reset must never remove.
	Protect []string

	// Publisher optionally ships the archive.
	Publisher Publisher

	// Recorder optionally persists run history.
	Recorder RunRecorder

	// Metrics optionally receives measurements.
	Metrics Metrics

	// Logger is the base logger.
	Logger zerolog.Logger

	// HTTPClient overrides the resource download client.
	HTTPClient *http.Client

	// Now overrides the clock used for archive names.
	Now func() time.Time
}

// Pipeline orders the stages of a run: plan, provision, execute with bounded
// fan-out, aggregate, publish. Planning finishes before any execution starts
// and aggregation starts only after every execution has returned.
type Pipeline struct {
	source  IdentifierSource
	namer   *artifacts.Namer
	policy  identifiers.DuplicatePolicy
	maxJobs int

	planner     *Planner
	provisioner *Provisioner
	executor    *Executor
	aggregator  *Aggregator
	resetter    *Resetter

	publisher Publisher
	recorder  RunRecorder
	metrics   Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewPipeline validates cfg and builds a Pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.WorkDir == "" {
		return nil, NewInvalidError("work directory is required", nil)
	}
	if cfg.Source == nil {
		return nil, NewInvalidError("identifier source is required", nil)
	}
	if cfg.Namer == nil {
		return nil, NewInvalidError("namer is required", nil)
	}
	if cfg.Transformer == nil {
		return nil, NewInvalidError("transformer is required", nil)
	}
	if cfg.ResourceName != "" && cfg.ResourceURL == "" {
		return nil, NewInvalidError("resource URL is required when a resource name is set", nil)
	}
	if cfg.Jobs < 0 {
		return nil, NewInvalidError(fmt.Sprintf("jobs must be positive, got %d", cfg.Jobs), nil)
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = DefaultJobs
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = identifiers.DuplicatesCollapse
	}
	if err := cfg.DuplicatePolicy.Validate(); err != nil {
		return nil, NewInvalidError("invalid duplicate policy", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	metrics := metricsOrNop(cfg.Metrics)

	var provisioner *Provisioner
	var ensurer ResourceEnsurer
	if cfg.ResourceName != "" {
		var opts []ProvisionerOption
		if cfg.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(cfg.HTTPClient))
		}
		provisioner = NewProvisioner(cfg.WorkDir, cfg.ResourceName, cfg.ResourceURL, cfg.Logger, metrics, opts...)
		ensurer = provisioner
	}

	return &Pipeline{
		source:      cfg.Source,
		namer:       cfg.Namer,
		policy:      cfg.DuplicatePolicy,
		maxJobs:     cfg.Jobs,
		planner:     NewPlanner(cfg.WorkDir, cfg.Logger, metrics),
		provisioner: provisioner,
		executor:    NewExecutor(cfg.WorkDir, cfg.Namer, cfg.Transformer, ensurer, cfg.Logger, metrics),
		aggregator: NewAggregator(cfg.WorkDir, cfg.Namer, provisioner, cfg.Logger, metrics,
			WithCleanup(!cfg.NoCleanup), WithClock(cfg.Now)),
		resetter:  NewResetter(cfg.WorkDir, cfg.Namer, cfg.ResourceName, cfg.Protect, cfg.Logger, metrics),
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		metrics:   metrics,
		logger:    cfg.Logger.With().Str("component", "pipeline").Logger(),
		now:       cfg.Now,
	}, nil
}

// Manifest reads the identifier list, applies the duplicate policy and builds
// the run's manifest. It also returns the collapsed duplicates.
func (p *Pipeline) Manifest(ctx context.Context) (*artifacts.Manifest, []string, error) {
	raw, err := p.source.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, NewNotFoundError("identifier list not found", err)
		}
		return nil, nil, NewInternalError("failed to read identifier list", err)
	}

	ids, dups, err := identifiers.Dedupe(raw, p.policy)
	if err != nil {
		return nil, dups, NewInvalidError("duplicate identifiers rejected", err).WithCode(ErrCodeDuplicate)
	}
	if len(dups) > 0 {
		p.logger.Warn().Strs("duplicates", dups).Msg("Duplicate identifiers collapsed to first occurrence")
	}

	m, err := artifacts.NewManifest(p.namer, ids)
	if err != nil {
		return nil, dups, NewInvalidError("failed to build manifest", err)
	}
	return m, dups, nil
}

// Plan materializes triggers for every unsatisfied identifier without
// executing anything.
func (p *Pipeline) Plan(ctx context.Context) (*Plan, error) {
	m, _, err := p.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return p.planner.Plan(ctx, m)
}

// Status classifies every identifier without touching the work directory.
func (p *Pipeline) Status(ctx context.Context) (*Plan, error) {
	m, _, err := p.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return p.planner.Inspect(ctx, m)
}

// Reset deletes artifacts in scope.
func (p *Pipeline) Reset(ctx context.Context, scope ResetScope) ([]string, error) {
	return p.resetter.Reset(ctx, scope)
}

// Run performs one full incremental run. The report is always returned. The
// error is non-nil only for fatal failures; per-item failures that still let
// the archive be built leave the run partial and are in report.ItemErrors.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		Status:    RunStatusRunning,
		StartedAt: p.now(),
	}

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", report.RunID)))
	defer span.End()

	log := p.logger.With().Str("run_id", report.RunID).Logger()
	log.Info().Msg("Run started")
	p.record(ctx, log, func(r RunRecorder) error { return r.RecordRunStart(ctx, report) })

	err := p.run(ctx, log, report)

	report.CompletedAt = p.now()
	report.Duration = report.CompletedAt.Sub(report.StartedAt)
	switch {
	case err != nil:
		report.Status = RunStatusFailed
		report.Err = err
	case report.ItemErrors != nil:
		report.Status = RunStatusPartial
	default:
		report.Status = RunStatusSucceeded
	}

	span.SetAttributes(attribute.String("run.status", string(report.Status)))
	recordSpanError(span, err)
	p.metrics.RecordRun(report.Status, report.Duration)
	p.record(ctx, log, func(r RunRecorder) error { return r.RecordRunEnd(context.WithoutCancel(ctx), report) })

	event := log.Info()
	if err != nil {
		event = log.Error().Err(err)
	}
	event.Str("status", string(report.Status)).
		Int("executed", len(report.Executions)).
		Int("failed", report.Failed()).
		Dur("duration", report.Duration).
		Msg("Run finished")

	return report, err
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, report *RunReport) error {
	m, dups, err := p.Manifest(ctx)
	report.Duplicates = dups
	if err != nil {
		return err
	}
	report.Identifiers = m.Len()

	plan, err := p.planner.Plan(ctx, m)
	if err != nil {
		return err
	}
	report.Plan = plan

	var itemErrs *multierror.Error
	for _, rejected := range plan.Rejected {
		itemErrs = multierror.Append(itemErrs, rejected)
	}

	if !plan.IsEmpty() && p.provisioner != nil {
		if err := p.provisioner.Ensure(ctx); err != nil {
			return err
		}
	}

	report.Executions = p.executeAll(ctx, log, report.RunID, plan.Pending)
	for _, res := range report.Executions {
		if res.Error != nil {
			itemErrs = multierror.Append(itemErrs, res.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		return NewInternalError("run cancelled", err).WithCode(ErrCodeCancelled)
	}

	archive, err := p.aggregator.Aggregate(ctx, m)
	if err != nil {
		if itemErrs != nil {
			return multierror.Append(err, itemErrs.Errors...)
		}
		return err
	}
	report.Archive = archive

	if p.publisher != nil {
		location, err := p.publish(ctx, archive)
		if err != nil {
			return err
		}
		report.PublishedTo = location
	}

	report.ItemErrors = itemErrs.ErrorOrNil()
	return nil
}

// executeAll runs every pending trigger with at most maxJobs in flight. A
// failed execution never cancels its siblings.
func (p *Pipeline) executeAll(ctx context.Context, log zerolog.Logger, runID string, pending []Trigger) []ExecutionResult {
	results := make([]ExecutionResult, len(pending))
	if len(pending) == 0 {
		return results
	}

	log.Info().Int("pending", len(pending)).Int("jobs", p.maxJobs).Msg("Executing pending triggers")

	var g errgroup.Group
	g.SetLimit(p.maxJobs)
	for i, t := range pending {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = ExecutionResult{
					ID:      t.ID,
					Trigger: t.Name,
					Status:  ExecutionFailed,
					Error:   NewExecutionError(t.ID, "not started", err).WithCode(ErrCodeCancelled),
				}
				return nil
			}
			results[i] = p.executor.run(ctx, t)
			p.record(ctx, log, func(r RunRecorder) error {
				return r.RecordExecution(context.WithoutCancel(ctx), runID, results[i])
			})
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) publish(ctx context.Context, archive *Archive) (string, error) {
	ctx, span := tracer.Start(ctx, "pipeline.publish",
		trace.WithAttributes(attribute.String("archive.name", archive.Name)))
	defer span.End()

	location, err := p.publisher.Publish(ctx, archive.Path)
	if err != nil {
		perr := NewPublishError("failed to publish archive", err)
		recordSpanError(span, perr)
		return "", perr
	}
	p.logger.Info().Str("archive", archive.Name).Str("location", location).Msg("Archive published")
	return location, nil
}

func (p *Pipeline) record(ctx context.Context, log zerolog.Logger, fn func(RunRecorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		log.Warn().Err(err).Msg("Failed to record run history")
	}
}
