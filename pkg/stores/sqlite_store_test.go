package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fomightez/pdbepisa-binder/pkg/engine"
)

// setupTestStore creates a migrated store in a temporary directory
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err == nil {
		t.Error("expected error migrating an uninitialized store")
	}
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected error checking an uninitialized store")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests that migrations create the schema and are idempotent
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "executions"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration should be a no-op, got %v", err)
	}
}

// TestRunLifecycle tests creating, finishing and reading back a run
func TestRunLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 5, 14, 7, 0, 0, time.UTC)
	run := &Run{
		ID:        "run-001",
		WorkDir:   "/data",
		Status:    engine.RunStatusRunning,
		StartedAt: started,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != engine.RunStatusRunning || got.CompletedAt != nil || !got.StartedAt.Equal(started) {
		t.Errorf("unexpected run after create: %+v", got)
	}

	completed := started.Add(90 * time.Second)
	run.Status = engine.RunStatusSucceeded
	run.CompletedAt = &completed
	run.Duration = 90 * time.Second
	run.Identifiers = 3
	run.Satisfied = 2
	run.Pending = 1
	run.Created = 1
	run.Succeeded = 1
	run.Archive = strPtr("collection_of_interface_dfsMar0520241408.tar.gz")
	if err := store.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}

	got, err = store.GetRun(ctx, "run-001")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != engine.RunStatusSucceeded {
		t.Errorf("status = %s", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(completed) {
		t.Errorf("completed_at = %v", got.CompletedAt)
	}
	if got.Duration != 90*time.Second || got.Identifiers != 3 || got.Satisfied != 2 || got.Succeeded != 1 {
		t.Errorf("counts not stored: %+v", got)
	}
	if got.Archive == nil || *got.Archive != "collection_of_interface_dfsMar0520241408.tar.gz" {
		t.Errorf("archive = %v", got.Archive)
	}
	if got.Error != nil || got.PublishedTo != nil {
		t.Errorf("expected null error and published_to, got %v %v", got.Error, got.PublishedTo)
	}
}

// TestRunNotFound tests lookups and updates of unknown runs
func TestRunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun() expected ErrNotFound, got %v", err)
	}
	if err := store.FinishRun(ctx, &Run{ID: "missing", Status: engine.RunStatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FinishRun() expected ErrNotFound, got %v", err)
	}
}

// TestListRuns tests ordering and pagination
func TestListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		err := store.CreateRun(ctx, &Run{
			ID:        id,
			WorkDir:   "/data",
			Status:    engine.RunStatusSucceeded,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("first page = %v", runIDs(runs))
	}

	runs, err = store.ListRuns(ctx, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "run-a" {
		t.Errorf("second page = %v", runIDs(runs))
	}
}

// TestExecutions tests execution records and cascading deletes
func TestExecutions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for id, started := range map[string]time.Time{"run-old": old, "run-new": recent} {
		if err := store.CreateRun(ctx, &Run{ID: id, WorkDir: "/data", Status: engine.RunStatusRunning, StartedAt: started}); err != nil {
			t.Fatal(err)
		}
	}

	execs := []*Execution{
		{RunID: "run-old", Identifier: "6kix", Trigger: "pdb_6kix_intf_2_df.txt", Status: engine.ExecutionFailed, StartedAt: old, CompletedAt: old.Add(time.Second), Duration: time.Second, Error: strPtr("exit status 1")},
		{RunID: "run-new", Identifier: "6kiv", Trigger: "pdb_6kiv_intf_2_df.txt", Status: engine.ExecutionSucceeded, Output: strPtr("6kiv_PISAinterface_summary_pickled_df.pkl"), StartedAt: recent, CompletedAt: recent.Add(2 * time.Second), Duration: 2 * time.Second},
		{RunID: "run-new", Identifier: "6kix", Trigger: "pdb_6kix_intf_2_df.txt", Status: engine.ExecutionSucceeded, StartedAt: recent, CompletedAt: recent.Add(3 * time.Second), Duration: 3 * time.Second},
	}
	for _, e := range execs {
		if err := store.CreateExecution(ctx, e); err != nil {
			t.Fatalf("CreateExecution() error = %v", err)
		}
		if e.ID == 0 {
			t.Error("expected execution id to be assigned")
		}
	}

	byRun, err := store.ListExecutionsByRun(ctx, "run-new")
	if err != nil {
		t.Fatal(err)
	}
	if len(byRun) != 2 || byRun[0].Identifier != "6kiv" || byRun[1].Identifier != "6kix" {
		t.Fatalf("ListExecutionsByRun() = %+v", byRun)
	}
	if byRun[0].Output == nil || byRun[0].Duration != 2*time.Second {
		t.Errorf("execution fields not stored: %+v", byRun[0])
	}

	byID, err := store.ListExecutionsByIdentifier(ctx, "6kix", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 2 || byID[0].RunID != "run-new" || byID[1].Status != engine.ExecutionFailed {
		t.Errorf("ListExecutionsByIdentifier() = %+v", byID)
	}

	pruned, err := store.DeleteRunsBefore(ctx, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DeleteRunsBefore() error = %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	byID, err = store.ListExecutionsByIdentifier(ctx, "6kix", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 1 {
		t.Errorf("expected cascade delete of old executions, got %d", len(byID))
	}
}

// TestExecutionRequiresRun tests the foreign key on executions
func TestExecutionRequiresRun(t *testing.T) {
	store := setupTestStore(t)
	now := time.Now()
	err := store.CreateExecution(context.Background(), &Execution{
		RunID: "ghost", Identifier: "6kiv", Trigger: "t", Status: engine.ExecutionSucceeded,
		StartedAt: now, CompletedAt: now,
	})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
