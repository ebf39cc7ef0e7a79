package stores

import (
	"context"
	"errors"
	"time"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Run is one recorded pipeline run.
type Run struct {
	ID          string           `json:"id"`
	WorkDir     string           `json:"work_dir"`
	Status      engine.RunStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Identifiers int              `json:"identifiers"`
	Duplicates  int              `json:"duplicates"`
	Satisfied   int              `json:"satisfied"`
	Pending     int              `json:"pending"`
	Created     int              `json:"created"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	Archive     *string          `json:"archive,omitempty"`
	PublishedTo *string          `json:"published_to,omitempty"`
	Error       *string          `json:"error,omitempty"`
}

// Execution is one recorded per-identifier execution.
type Execution struct {
	ID          int64                  `json:"id"`
	RunID       string                 `json:"run_id"`
	Identifier  string                 `json:"identifier"`
	Trigger     string                 `json:"trigger"`
	Status      engine.ExecutionStatus `json:"status"`
	Output      *string                `json:"output,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Duration    time.Duration          `json:"duration"`
	Error       *string                `json:"error,omitempty"`
}

// Store defines the interface for the run history layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)

	// Execution operations
	CreateExecution(ctx context.Context, exec *Execution) error
	ListExecutionsByRun(ctx context.Context, runID string) ([]*Execution, error)
	ListExecutionsByIdentifier(ctx context.Context, identifier string, limit int) ([]*Execution, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
