package contextutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	fallback := slog.New(slog.NewJSONHandler(io.Discard, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		fallback *slog.Logger
		want     *slog.Logger
	}{
		{"logger in context", WithLogger(context.Background(), custom), fallback, custom},
		{"fallback used", context.Background(), fallback, fallback},
		{"nil fallback gives default", context.Background(), nil, slog.Default()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoggerFromContext(tt.ctx, tt.fallback); got != tt.want {
				t.Errorf("LoggerFromContext() = %p, want %p", got, tt.want)
			}
		})
	}
}

func TestWithRequestID(t *testing.T) {
	ctx, id := WithRequestID(context.Background(), "")
	if id == "" {
		t.Fatal("WithRequestID() generated empty id")
	}
	if got := RequestID(ctx); got != id {
		t.Errorf("RequestID() = %q, want %q", got, id)
	}

	ctx, id = WithRequestID(context.Background(), "abc")
	if id != "abc" || RequestID(ctx) != "abc" {
		t.Errorf("RequestID() = %q, want abc", RequestID(ctx))
	}

	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID() on empty context = %q, want empty", got)
	}
}
