package engine

import (
	"time"
)

// Trigger is a pending unit of work: a file in the work directory whose
// content is the identifier to transform.
type Trigger struct {
	// ID is the identifier the trigger was planned for.
	ID string `json:"id"`

	// Name is the trigger's file name.
	Name string `json:"name"`

	// Path is the trigger's location on disk.
	Path string `json:"path"`

	// Created is true when the trigger was written by the current planning pass.
	Created bool `json:"created"`
}

// Output is a produced per-item artifact.
type Output struct {
	// ID is the identifier the output belongs to.
	ID string `json:"id"`

	// Name is the output's file name.
	Name string `json:"name"`

	// Path is the output's location on disk.
	Path string `json:"path"`
}

// Plan is the result of one planning pass over a manifest.
type Plan struct {
	// Satisfied lists identifiers whose output already exists.
	Satisfied []Output `json:"satisfied"`

	// Pending lists every trigger awaiting execution, in manifest order.
	Pending []Trigger `json:"pending"`

	// Stale lists triggers left behind for identifiers that already have an
	// output. They are never executed or deleted by planning.
	Stale []Trigger `json:"stale,omitempty"`

	// Rejected lists identifiers that cannot be materialized as a trigger.
	Rejected []*PipelineError `json:"rejected,omitempty"`
}

// Created returns the triggers written by this planning pass.
func (p *Plan) Created() []Trigger {
	var created []Trigger
	for _, t := range p.Pending {
		if t.Created {
			created = append(created, t)
		}
	}
	return created
}

// IsEmpty returns true when nothing is pending.
func (p *Plan) IsEmpty() bool {
	return len(p.Pending) == 0
}

// ExecutionResult captures the outcome of executing one trigger.
type ExecutionResult struct {
	// ID is the identifier that was executed.
	ID string `json:"id"`

	// Trigger is the trigger file name.
	Trigger string `json:"trigger"`

	// Status is the execution outcome.
	Status ExecutionStatus `json:"status"`

	// Output is the produced artifact, if any.
	Output *Output `json:"output,omitempty"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when execution finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the execution time.
	Duration time.Duration `json:"duration"`

	// Error contains failure details.
	Error error `json:"-"`
}

// Archive describes a built bundle of outputs.
type Archive struct {
	// Name is the archive file name.
	Name string `json:"name"`

	// Path is the archive's location on disk.
	Path string `json:"path"`

	// Members are the output names stored in the archive, in manifest order.
	Members []string `json:"members"`

	// Size is the archive size in bytes.
	Size int64 `json:"size"`

	// CreatedAt is the timestamp embedded in the archive name.
	CreatedAt time.Time `json:"created_at"`

	// Cleaned lists the files removed after archiving.
	Cleaned []string `json:"cleaned,omitempty"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// Status is the final run status.
	Status RunStatus `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished.
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total run time.
	Duration time.Duration `json:"duration"`

	// Identifiers is the number of distinct identifiers in the manifest.
	Identifiers int `json:"identifiers"`

	// Duplicates lists identifiers collapsed by the duplicate policy.
	Duplicates []string `json:"duplicates,omitempty"`

	// Plan is the planning result.
	Plan *Plan `json:"plan,omitempty"`

	// Executions holds one result per pending trigger.
	Executions []ExecutionResult `json:"executions,omitempty"`

	// Archive is the built archive, if aggregation succeeded.
	Archive *Archive `json:"archive,omitempty"`

	// PublishedTo is the archive's remote location, if published.
	PublishedTo string `json:"published_to,omitempty"`

	// ItemErrors aggregates per-item failures.
	ItemErrors error `json:"-"`

	// Err is the fatal error that ended the run, if any.
	Err error `json:"-"`
}

// Succeeded returns the number of executions that produced an output.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, e := range r.Executions {
		if e.Status != ExecutionFailed {
			n++
		}
	}
	return n
}

// Failed returns the number of executions that failed.
func (r *RunReport) Failed() int {
	n := 0
	for _, e := range r.Executions {
		if e.Status == ExecutionFailed {
			n++
		}
	}
	return n
}
