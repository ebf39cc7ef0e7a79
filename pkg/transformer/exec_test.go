package transformer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestExec_CommandLine(t *testing.T) {
	x := &Exec{
		Command:  "python",
		Args:     []string{"{resource}", "{id}", "--out={workdir}/{id}.pkl"},
		WorkDir:  "/data",
		Resource: "pisa_interface_list_to_df.py",
	}

	name, args := x.CommandLine("6kiv")
	if name != "python" {
		t.Errorf("command = %q", name)
	}
	want := []string{"pisa_interface_list_to_df.py", "6kiv", "--out=/data/6kiv.pkl"}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestExec_Transform_Success(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()

	x := &Exec{
		Command: "/bin/sh",
		Args:    []string{"-c", `printf '%s' "$1" > "$1_out.txt"`, "sh", "{id}"},
		WorkDir: dir,
		Logger:  zerolog.Nop(),
	}
	if err := x.Transform(context.Background(), "6kiv"); err != nil {
		t.Fatalf("Transform() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "6kiv_out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "6kiv" {
		t.Errorf("output = %q", data)
	}
}

func TestExec_Transform_NonZeroExit(t *testing.T) {
	skipWithoutShell(t)

	x := &Exec{
		Command: "/bin/sh",
		Args:    []string{"-c", "echo 'no interfaces for $0' >&2; exit 3", "{id}"},
		WorkDir: t.TempDir(),
		Logger:  zerolog.Nop(),
	}
	err := x.Transform(context.Background(), "6kix")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.ExitCode != 3 || exitErr.ID != "6kix" {
		t.Errorf("unexpected exit error: %+v", exitErr)
	}
	if !strings.Contains(exitErr.Stderr, "no interfaces") {
		t.Errorf("stderr not captured: %q", exitErr.Stderr)
	}
}

func TestExec_Transform_Env(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()

	x := &Exec{
		Command: "/bin/sh",
		Args:    []string{"-c", `printf '%s' "$PISA_MODE" > mode.txt`},
		WorkDir: dir,
		Env:     map[string]string{"PISA_MODE": "summary"},
		Logger:  zerolog.Nop(),
	}
	if err := x.Transform(context.Background(), "6kiv"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "mode.txt"))
	if string(data) != "summary" {
		t.Errorf("env not passed, got %q", data)
	}
}

func TestExec_Transform_Cancelled(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	x := &Exec{
		Command: "/bin/sh",
		Args:    []string{"-c", "exec sleep 5"},
		WorkDir: t.TempDir(),
		Logger:  zerolog.Nop(),
	}
	err := x.Transform(ctx, "6kiv")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestExec_Transform_MissingCommand(t *testing.T) {
	x := &Exec{Command: "definitely-not-a-real-binary-xyz", WorkDir: t.TempDir(), Logger: zerolog.Nop()}
	if err := x.Transform(context.Background(), "6kiv"); err == nil {
		t.Error("expected error for missing binary")
	}

	empty := &Exec{}
	if err := empty.Transform(context.Background(), "6kiv"); err == nil {
		t.Error("expected error for empty command")
	}
}
