package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrLLM, "upstream failed").
		WithCause(root).
		WithStage("generate").
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrLLM {
		t.Fatalf("expected code %s, got %s", ErrLLM, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[LLM] upstream failed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := Errorf(ErrTranscription, "status=%d", 502)
	wrapped := fmt.Errorf("turn failed: %w", inner)

	if !IsCode(wrapped, ErrTranscription) {
		t.Fatalf("expected wrapped error to carry %s", ErrTranscription)
	}
	e, ok := AsError(wrapped)
	if !ok || e.Message != "status=502" {
		t.Fatalf("AsError returned %v, %v", e, ok)
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
}
