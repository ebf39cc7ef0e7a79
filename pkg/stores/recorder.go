package stores

import (
	"context"
	"time"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

// Recorder adapts a Store to engine.RunRecorder.
type Recorder struct {
	store   Store
	workDir string
}

// NewRecorder creates a recorder that tags runs with workDir.
func NewRecorder(store Store, workDir string) *Recorder {
	return &Recorder{store: store, workDir: workDir}
}

// RecordRunStart records a newly started run.
func (r *Recorder) RecordRunStart(ctx context.Context, report *engine.RunReport) error {
	return r.store.CreateRun(ctx, &Run{
		ID:        report.RunID,
		WorkDir:   r.workDir,
		Status:    engine.RunStatusRunning,
		StartedAt: report.StartedAt,
	})
}

// RecordExecution records one per-item execution.
func (r *Recorder) RecordExecution(ctx context.Context, runID string, result engine.ExecutionResult) error {
	exec := &Execution{
		RunID:       runID,
		Identifier:  result.ID,
		Trigger:     result.Trigger,
		Status:      result.Status,
		StartedAt:   result.StartedAt,
		CompletedAt: result.CompletedAt,
		Duration:    result.Duration,
		Error:       errorString(result.Error),
	}
	if result.Output != nil {
		exec.Output = &result.Output.Name
	}
	return r.store.CreateExecution(ctx, exec)
}

// RecordRunEnd records the final state of a run.
func (r *Recorder) RecordRunEnd(ctx context.Context, report *engine.RunReport) error {
	completedAt := report.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	run := &Run{
		ID:          report.RunID,
		WorkDir:     r.workDir,
		Status:      report.Status,
		StartedAt:   report.StartedAt,
		CompletedAt: &completedAt,
		Duration:    report.Duration,
		Identifiers: report.Identifiers,
		Duplicates:  len(report.Duplicates),
		Succeeded:   report.Succeeded(),
		Failed:      report.Failed(),
		Error:       errorString(report.Err),
	}
	if report.Plan != nil {
		run.Satisfied = len(report.Plan.Satisfied)
		run.Pending = len(report.Plan.Pending)
		run.Created = len(report.Plan.Created())
	}
	if report.Archive != nil {
		run.Archive = &report.Archive.Name
	}
	if report.PublishedTo != "" {
		run.PublishedTo = &report.PublishedTo
	}
	return r.store.FinishRun(ctx, run)
}

func errorString(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}

var _ engine.RunRecorder = (*Recorder)(nil)
