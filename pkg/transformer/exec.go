// Package transformer runs the external program that converts one identifier
// into its output artifact.
package transformer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Placeholders expanded in the command and its arguments.
const (
	PlaceholderID       = "{id}"
	PlaceholderResource = "{resource}"
	PlaceholderWorkDir  = "{workdir}"
)

// waitDelay bounds how long output pipes are drained after the process is
// killed on cancellation.
const waitDelay = 5 * time.Second

// stderrTailBytes bounds how much stderr is carried in an error.
const stderrTailBytes = 2048

// Exec runs a command per identifier in the work directory.
type Exec struct {
	// Command is the program to run.
	Command string

	// Args are passed to Command after placeholder expansion.
	Args []string

	// WorkDir is the working directory of the process.
	WorkDir string

	// Resource is the shared resource path substituted for {resource}.
	Resource string

	// Env adds variables to the inherited environment.
	Env map[string]string

	// Logger receives the program's output at debug level.
	Logger zerolog.Logger
}

// ExitError reports a non-zero exit of the transformer.
type ExitError struct {
	ID       string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("transformer exited with code %d for %s", e.ExitCode, e.ID)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Expand substitutes the placeholders in s.
func (x *Exec) Expand(s, id string) string {
	return strings.NewReplacer(
		PlaceholderID, id,
		PlaceholderResource, x.Resource,
		PlaceholderWorkDir, x.WorkDir,
	).Replace(s)
}

// CommandLine returns the expanded command and arguments for id.
func (x *Exec) CommandLine(id string) (string, []string) {
	args := make([]string, len(x.Args))
	for i, a := range x.Args {
		args[i] = x.Expand(a, id)
	}
	return x.Expand(x.Command, id), args
}

// Transform runs the command for id. Cancelling ctx kills the process.
func (x *Exec) Transform(ctx context.Context, id string) error {
	if x.Command == "" {
		return fmt.Errorf("command is required")
	}

	name, args := x.CommandLine(id)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = x.WorkDir
	cmd.WaitDelay = waitDelay

	if len(x.Env) > 0 {
		keys := make([]string, 0, len(x.Env))
		for k := range x.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		env := os.Environ()
		for _, k := range keys {
			env = append(env, fmt.Sprintf("%s=%s", k, x.Env[k]))
		}
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	x.Logger.Debug().
		Str("identifier", id).
		Str("command", name).
		Strs("args", args).
		Dur("duration", duration).
		Str("stdout", tail(stdout.String(), stderrTailBytes)).
		Msg("Transformer finished")

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("transformer for %s interrupted: %w", id, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{
				ID:       id,
				ExitCode: exitErr.ExitCode(),
				Stderr:   strings.TrimSpace(tail(stderr.String(), stderrTailBytes)),
			}
		}
		return fmt.Errorf("failed to execute transformer: %w", err)
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
