package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestPipelineError_Is(t *testing.T) {
	err := NewExecutionError("6kiv", "transformer failed", errors.New("exit status 1"))

	if !errors.Is(err, ErrExecution) {
		t.Error("expected match against kind sentinel")
	}
	if !errors.Is(err, &PipelineError{Kind: KindExecution, Code: ErrCodeTransformFailed}) {
		t.Error("expected match on kind and code")
	}
	if errors.Is(err, &PipelineError{Kind: KindExecution, Code: ErrCodeOutputMissing}) {
		t.Error("unexpected match on different code")
	}
	if errors.Is(err, ErrFetch) {
		t.Error("unexpected match on different kind")
	}

	wrapped := fmt.Errorf("run: %w", err)
	if !IsExecution(wrapped) || KindOf(wrapped) != KindExecution {
		t.Error("classification lost through wrapping")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain error classified")
	}
}

func TestPipelineError_Error(t *testing.T) {
	err := NewIncompleteError([]string{"6kix", "1abc"})
	msg := err.Error()
	for _, want := range []string{"[incomplete]", "missing=6kix,1abc"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q lacks %q", msg, want)
		}
	}

	exec := NewExecutionError("6kiv", "transformer failed", errors.New("exit status 2"))
	if got := exec.Error(); got != "[execution] transformer failed (identifier=6kiv): exit status 2" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorKind_IsFatal(t *testing.T) {
	for _, k := range []ErrorKind{KindNotFound, KindInvalid, KindFetch, KindIncomplete, KindPublish, KindInternal} {
		if !k.IsFatal() {
			t.Errorf("%s should be fatal", k)
		}
	}
	if KindExecution.IsFatal() {
		t.Error("execution errors are per item")
	}
}
