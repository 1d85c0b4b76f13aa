package memerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := Validation("embedding", "dimension %d, want %d", 3, 4)
	want := "validation error on field embedding: dimension 3, want 4"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	wrapped := fmt.Errorf("insert: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) || ve.Field != "embedding" {
		t.Errorf("errors.As() field = %v, want embedding", ve)
	}
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{
			name: "with status",
			err:  &TransportError{Op: "embed", Endpoint: "http://x/v1/embeddings", StatusCode: 503, Attempts: 3, Err: cause},
			want: "embed http://x/v1/embeddings: status 503 after 3 attempt(s): connection refused",
		},
		{
			name: "without status",
			err:  &TransportError{Op: "generate", Endpoint: "http://x", Attempts: 1, Err: cause},
			want: "generate http://x: failed after 1 attempt(s): connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("TransportError should unwrap to its cause")
			}
			if !IsTransport(fmt.Errorf("outer: %w", tt.err)) {
				t.Error("IsTransport() = false, want true")
			}
		})
	}
}

func TestParseError(t *testing.T) {
	cause := errors.New("bad timestamp")
	if got := (&ParseError{Source: "memory.json", Index: 2, Err: cause}).Error(); got != "parse memory.json[2]: bad timestamp" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ParseError{Source: "memory.json", Index: -1, Err: cause}).Error(); got != "parse memory.json: bad timestamp" {
		t.Errorf("Error() = %q", got)
	}
}

func TestInvariantViolation(t *testing.T) {
	err := fmt.Errorf("prune: %w", &InvariantViolation{Op: "PruneDates", Detail: "no summary for 2024-01-02"})
	if !IsInvariant(err) {
		t.Error("IsInvariant() = false, want true")
	}
	if IsInvariant(errors.New("other")) {
		t.Error("IsInvariant() = true for unrelated error")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "context") != nil {
		t.Error("WrapError(nil) should be nil")
	}
	orig := errors.New("original error")
	got := WrapError(orig, "context")
	if got.Error() != "context: original error" {
		t.Errorf("WrapError() = %q", got.Error())
	}
	if !errors.Is(got, orig) {
		t.Error("WrapError() should wrap original error")
	}
}
