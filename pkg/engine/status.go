package engine

import (
	"fmt"
)

// RunStatus represents the overall status of a pipeline run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is currently executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the archive was built and no item failed.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusPartial indicates the archive was built but at least one item
	// reported an error, such as a trigger that could not be retired.
	RunStatusPartial RunStatus = "partial"

	// RunStatusFailed indicates the run ended with a fatal error.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusPartial || s == RunStatusFailed
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// ExecutionStatus represents the outcome of one per-item execution.
type ExecutionStatus string

const (
	// ExecutionSucceeded indicates the output was produced and the trigger retired.
	ExecutionSucceeded ExecutionStatus = "succeeded"

	// ExecutionFailed indicates the transformer failed or produced no output.
	// The trigger stays in place for the next run.
	ExecutionFailed ExecutionStatus = "failed"

	// ExecutionDegraded indicates the output exists but the trigger could not
	// be deleted.
	ExecutionDegraded ExecutionStatus = "degraded"
)

// Validate checks if the execution status is valid.
func (s ExecutionStatus) Validate() error {
	switch s {
	case ExecutionSucceeded, ExecutionFailed, ExecutionDegraded:
		return nil
	default:
		return fmt.Errorf("invalid execution status: %s", s)
	}
}

// ResetScope selects which artifacts a reset removes.
type ResetScope string

const (
	// ScopeGenerated removes triggers, outputs and archives.
	ScopeGenerated ResetScope = "generated"

	// ScopeAll additionally removes the shared resource, intermediates and
	// leftover partial files.
	ScopeAll ResetScope = "all"
)

// Validate checks if the scope is valid.
func (s ResetScope) Validate() error {
	switch s {
	case ScopeGenerated, ScopeAll:
		return nil
	default:
		return fmt.Errorf("invalid reset scope: %s", s)
	}
}
