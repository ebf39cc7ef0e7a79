package engine

import (
	"context"
	"time"
)

// IdentifierSource supplies the raw identifier list for a run.
type IdentifierSource interface {
	// Read returns identifiers in list order. A missing list must return an
	// error wrapping fs.ErrNotExist.
	Read() ([]string, error)
}

// Transformer is the external program that turns one identifier into its
// output artifact inside the work directory.
type Transformer interface {
	// Transform produces the output for id. It must honor ctx cancellation.
	Transform(ctx context.Context, id string) error
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, id string) error

// Transform calls f(ctx, id).
func (f TransformerFunc) Transform(ctx context.Context, id string) error {
	return f(ctx, id)
}

// ResourceEnsurer makes the shared resource available before a transform.
type ResourceEnsurer interface {
	Ensure(ctx context.Context) error
}

// Publisher ships a finished archive to a consumer.
type Publisher interface {
	// Publish uploads the archive at path and returns its remote location.
	Publish(ctx context.Context, path string) (string, error)
}

// RunRecorder persists run history. Recording failures are logged and never
// fail the run.
type RunRecorder interface {
	// RecordRunStart records a newly started run.
	RecordRunStart(ctx context.Context, report *RunReport) error

	// RecordExecution records one per-item execution.
	RecordExecution(ctx context.Context, runID string, result ExecutionResult) error

	// RecordRunEnd records the final state of a run.
	RecordRunEnd(ctx context.Context, report *RunReport) error
}

// Metrics receives pipeline measurements.
type Metrics interface {
	RecordRun(status RunStatus, duration time.Duration)
	RecordPlan(satisfied, pending, created int)
	RecordExecution(status ExecutionStatus, duration time.Duration)
	RecordFetch(success bool, bytes int64, duration time.Duration)
	RecordArchive(members int, bytes int64)
	RecordReset(scope ResetScope, removed int)
}

type nopMetrics struct{}

func (nopMetrics) RecordRun(RunStatus, time.Duration)             {}
func (nopMetrics) RecordPlan(int, int, int)                       {}
func (nopMetrics) RecordExecution(ExecutionStatus, time.Duration) {}
func (nopMetrics) RecordFetch(bool, int64, time.Duration)         {}
func (nopMetrics) RecordArchive(int, int64)                       {}
func (nopMetrics) RecordReset(ResetScope, int)                    {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
