package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const testDebounce = 50 * time.Millisecond

func startWatcher(t *testing.T, path string, runOnStart bool, fn RunFunc) (*Watcher, context.CancelFunc, <-chan error) {
	t.Helper()
	w := New(path, testDebounce, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, runOnStart, fn) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watcher time to register before the test writes.
	time.Sleep(100 * time.Millisecond)
	return w, cancel, done
}

func signalRuns(calls chan<- struct{}) RunFunc {
	return func(context.Context) error {
		calls <- struct{}{}
		return nil
	}
}

func waitCall(t *testing.T, calls <-chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}

func expectNoCall(t *testing.T, calls <-chan struct{}, wait time.Duration) {
	t.Helper()
	select {
	case <-calls:
		t.Fatal("unexpected run")
	case <-time.After(wait):
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "interface_data_2_df_codes.txt")
	appendLine(t, list, "6kiv")

	calls := make(chan struct{}, 10)
	w, _, _ := startWatcher(t, list, false, signalRuns(calls))

	appendLine(t, list, "6kix")
	appendLine(t, list, "6kiz")
	appendLine(t, list, "1abc")

	waitCall(t, calls)
	expectNoCall(t, calls, 300*time.Millisecond)

	if w.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", w.Runs())
	}
}

func TestWatcher_RunOnStart(t *testing.T) {
	list := filepath.Join(t.TempDir(), "codes.txt")
	appendLine(t, list, "6kiv")

	calls := make(chan struct{}, 10)
	startWatcher(t, list, true, signalRuns(calls))
	waitCall(t, calls)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "codes.txt")
	appendLine(t, list, "6kiv")

	calls := make(chan struct{}, 10)
	startWatcher(t, list, false, signalRuns(calls))

	// Outputs and triggers appear next to the list during a run.
	appendLine(t, filepath.Join(dir, "pdb_6kiv_intf_2_df.txt"), "6kiv")
	expectNoCall(t, calls, 300*time.Millisecond)
}

func TestWatcher_SeesReplacedFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "codes.txt")
	appendLine(t, list, "6kiv")

	calls := make(chan struct{}, 10)
	startWatcher(t, list, false, signalRuns(calls))

	tmp := filepath.Join(dir, ".codes.txt.swp")
	if err := os.WriteFile(tmp, []byte("6kiv\n6kix\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, list); err != nil {
		t.Fatal(err)
	}
	waitCall(t, calls)
}

func TestWatcher_ErrorsDoNotStop(t *testing.T) {
	list := filepath.Join(t.TempDir(), "codes.txt")
	appendLine(t, list, "6kiv")

	calls := make(chan struct{}, 10)
	fn := func(context.Context) error {
		calls <- struct{}{}
		return errors.New("transformer missing")
	}
	w, _, _ := startWatcher(t, list, true, fn)
	waitCall(t, calls)

	appendLine(t, list, "6kix")
	waitCall(t, calls)

	if w.Runs() != 2 {
		t.Errorf("Runs() = %d, want 2", w.Runs())
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	list := filepath.Join(t.TempDir(), "codes.txt")
	appendLine(t, list, "6kiv")

	w := New(list, testDebounce, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, false, func(context.Context) error { return nil }) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope", "codes.txt"), testDebounce, zerolog.Nop())
	if err := w.Run(context.Background(), false, nil); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	w := New("codes.txt", 0, zerolog.Nop())
	if w.debounce != DefaultDebounce {
		t.Errorf("debounce = %v", w.debounce)
	}
}
