package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fomightez/pdbepisa-binder/pkg/artifacts"
)

// Planner is the memoization gate. It decides per identifier whether work is
// needed by checking only for the presence of the output artifact, and
// materializes a trigger file for every identifier that still needs one.
type Planner struct {
	// workDir is the directory holding all artifacts
	workDir string

	logger  zerolog.Logger
	metrics Metrics
}

// NewPlanner creates a planner for workDir.
func NewPlanner(workDir string, logger zerolog.Logger, metrics Metrics) *Planner {
	return &Planner{
		workDir: workDir,
		logger:  logger.With().Str("component", "planner").Logger(),
		metrics: metricsOrNop(metrics),
	}
}

// Plan classifies every manifest entry and writes missing triggers. An entry
// whose output exists is left completely untouched. Planning twice with no new
// outputs returns the same pending set and writes nothing the second time.
func (p *Planner) Plan(ctx context.Context, m *artifacts.Manifest) (*Plan, error) {
	ctx, span := tracer.Start(ctx, "pipeline.plan",
		trace.WithAttributes(attribute.Int("manifest.size", m.Len())))
	defer span.End()

	plan, err := p.walk(ctx, m, true)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	created := len(plan.Created())
	p.metrics.RecordPlan(len(plan.Satisfied), len(plan.Pending), created)
	span.SetAttributes(
		attribute.Int("plan.satisfied", len(plan.Satisfied)),
		attribute.Int("plan.pending", len(plan.Pending)),
		attribute.Int("plan.created", created),
	)
	p.logger.Info().
		Int("satisfied", len(plan.Satisfied)).
		Int("pending", len(plan.Pending)).
		Int("created", created).
		Int("stale", len(plan.Stale)).
		Msg("Planning complete")

	return plan, nil
}

// Inspect classifies every manifest entry without writing anything.
func (p *Planner) Inspect(ctx context.Context, m *artifacts.Manifest) (*Plan, error) {
	return p.walk(ctx, m, false)
}

func (p *Planner) walk(ctx context.Context, m *artifacts.Manifest, write bool) (*Plan, error) {
	plan := &Plan{
		Satisfied: make([]Output, 0),
		Pending:   make([]Trigger, 0),
	}

	for _, e := range m.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, NewInternalError("planning cancelled", err).WithCode(ErrCodeCancelled)
		}

		if hasSeparator(e.ID) {
			plan.Rejected = append(plan.Rejected,
				NewExecutionError(e.ID, "identifier contains a path separator", nil).
					WithCode(ErrCodeInvalidIdentifier))
			continue
		}

		outPath := filepath.Join(p.workDir, e.Output)
		trigPath := filepath.Join(p.workDir, e.Trigger)

		done, err := artifacts.Exists(outPath)
		if err != nil {
			return nil, NewInternalError("failed to check output", err).WithIdentifier(e.ID)
		}
		pending, err := artifacts.Exists(trigPath)
		if err != nil {
			return nil, NewInternalError("failed to check trigger", err).WithIdentifier(e.ID)
		}

		if done {
			plan.Satisfied = append(plan.Satisfied, Output{ID: e.ID, Name: e.Output, Path: outPath})
			if pending {
				plan.Stale = append(plan.Stale, Trigger{ID: e.ID, Name: e.Trigger, Path: trigPath})
			}
			continue
		}

		t := Trigger{ID: e.ID, Name: e.Trigger, Path: trigPath}
		if !pending && write {
			if err := artifacts.WriteFileAtomic(trigPath, []byte(e.ID), 0644); err != nil {
				return nil, NewInternalError("failed to write trigger", err).WithIdentifier(e.ID)
			}
			t.Created = true
			p.logger.Debug().Str("identifier", e.ID).Str("trigger", e.Trigger).Msg("Trigger created")
		}
		plan.Pending = append(plan.Pending, t)
	}

	return plan, nil
}

// validateIdentifier rejects identifiers that cannot name a file in the
// flat work directory.
func validateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier is empty")
	}
	if hasSeparator(id) {
		return fmt.Errorf("identifier %q contains a path separator", id)
	}
	return nil
}

func hasSeparator(id string) bool {
	return strings.ContainsAny(id, `/\`)
}
