package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
)

// Executor runs the transformer for one trigger. Executors for distinct
// identifiers share nothing but the work directory, whose names are
// partitioned by identifier, so they need no locking of their own.
type Executor struct {
	workDir     string
	namer       *artifacts.Namer
	transformer Transformer
	resource    ResourceEnsurer

	logger  zerolog.Logger
	metrics Metrics
}

// NewExecutor creates an executor. resource may be nil when the transformer
// needs no shared resource.
func NewExecutor(
	workDir string,
	namer *artifacts.Namer,
	transformer Transformer,
	resource ResourceEnsurer,
	logger zerolog.Logger,
	metrics Metrics,
) *Executor {
	return &Executor{
		workDir:     workDir,
		namer:       namer,
		transformer: transformer,
		resource:    resource,
		logger:      logger.With().Str("component", "executor").Logger(),
		metrics:     metricsOrNop(metrics),
	}
}

// Execute transforms the identifier stored in t and retires t once the
// predicted output exists. The identifier comes from the trigger's content,
// not its name. On failure the trigger is left in place so the next run
// retries exactly this identifier.
//
// A non-nil Output with a non-nil error means the output was produced but
// the trigger could not be deleted.
func (e *Executor) Execute(ctx context.Context, t Trigger) (*Output, error) {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return nil, NewExecutionError(t.ID, "failed to read trigger", err).
			WithCode(ErrCodeTriggerUnreadable)
	}
	id := strings.TrimRight(string(data), "\r\n")

	if err := validateIdentifier(id); err != nil {
		return nil, NewExecutionError(id, "invalid identifier", err).
			WithCode(ErrCodeInvalidIdentifier)
	}

	ctx, span := tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("identifier", id)))
	defer span.End()

	log := e.logger.With().Str("identifier", id).Logger()

	if e.resource != nil {
		if err := e.resource.Ensure(ctx); err != nil {
			recordSpanError(span, err)
			return nil, err
		}
	}

	name := e.namer.OutputName(id)
	out := &Output{ID: id, Name: name, Path: filepath.Join(e.workDir, name)}

	log.Debug().Msg("Transform started")
	if err := e.transformer.Transform(ctx, id); err != nil {
		// A partial output would satisfy the next plan.
		if removed, rerr := artifacts.RemoveIfExists(out.Path); rerr != nil {
			log.Error().Err(rerr).Str("output", name).Msg("Failed to remove output of failed transform")
		} else if removed {
			log.Warn().Str("output", name).Msg("Removed output of failed transform")
		}
		recordSpanError(span, err)
		return nil, NewExecutionError(id, "transformer failed", err)
	}

	ok, err := artifacts.Exists(out.Path)
	if err != nil || !ok {
		xerr := NewExecutionError(id, "transformer produced no output "+name, err).
			WithCode(ErrCodeOutputMissing)
		recordSpanError(span, xerr)
		return nil, xerr
	}

	if _, err := artifacts.RemoveIfExists(t.Path); err != nil {
		xerr := NewExecutionError(id, "failed to retire trigger", err).
			WithCode(ErrCodeTriggerRetire)
		recordSpanError(span, xerr)
		return out, xerr
	}

	log.Debug().Str("output", name).Msg("Transform complete")
	return out, nil
}

// run executes t and wraps the outcome in an ExecutionResult.
func (e *Executor) run(ctx context.Context, t Trigger) ExecutionResult {
	res := ExecutionResult{
		ID:        t.ID,
		Trigger:   t.Name,
		StartedAt: time.Now(),
	}

	out, err := e.Execute(ctx, t)
	res.CompletedAt = time.Now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)
	res.Output = out
	res.Error = err

	switch {
	case err == nil:
		res.Status = ExecutionSucceeded
	case out != nil:
		res.Status = ExecutionDegraded
	default:
		res.Status = ExecutionFailed
	}

	e.metrics.RecordExecution(res.Status, res.Duration)
	if err != nil {
		e.logger.Error().Err(err).Str("identifier", t.ID).Str("status", string(res.Status)).Msg("Execution failed")
	} else {
		e.logger.Info().Str("identifier", t.ID).Dur("duration", res.Duration).Msg("Execution succeeded")
	}
	return res
}
