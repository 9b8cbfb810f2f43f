package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"pasti/internal/core"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentStorage, Output: &buf})

	l.Info("hello", "k", "v")
	l.WithComponent(ComponentHTTP).Info("again")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "component=http") {
		t.Fatalf("missing component in output: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug record must be filtered at info level: %s", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Fatalf("component duplicated: %s", out)
	}
}

func TestStructuredLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))
	ctx := context.Background()

	sl.LogMealLogged(ctx, "milena", core.NewMealEntry("2024-01-01", "Almoço", "Maçã", 150, 52))
	sl.LogError(ctx, "Register failed", core.ErrDuplicateFood, ComponentTracker, OpCreate, nil)

	out := buf.String()
	for _, want := range []string{"Meal logged", "user=milena", "calories=78", "error_type=conflict_error", "component=tracker"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output: %s", want, out)
		}
	}
}

func TestErrorType(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", core.ErrDuplicateFood), ErrorTypeConflict},
		{core.ErrUnknownUser, ErrorTypeNotFound},
		{core.ErrInvalidQuantity, ErrorTypeValidation},
		{&core.ParseError{Source: "x", Record: 1, Reason: "bad"}, ErrorTypeParse},
		{&core.StorageError{Op: "read", Err: errors.New("boom")}, ErrorTypeStorage},
		{errors.New("other"), ErrorTypeInternal},
	}
	for _, tc := range cases {
		if got := ErrorType(tc.err); got != tc.want {
			t.Fatalf("ErrorType(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
