package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresGlobalLogger(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	if err := Init("debug"); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	if !Logger().Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected logger to enable debug level")
	}
}

func TestInitFallsBackToInfoOnUnknownLevel(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	if err := InitWithOptions(Options{Level: "loud", Format: "console"}); err != nil {
		t.Fatalf("InitWithOptions returned error: %v", err)
	}

	l := Logger()
	if l.Core().Enabled(zap.DebugLevel) {
		t.Fatal("unknown level should not enable debug")
	}
	if !l.Core().Enabled(zap.InfoLevel) {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestLoggingHelpersEmitEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	Info("info message", zap.String("k", "v"))
	Error("error message")
	Warn("warn message")
	Debug("debug message")

	if recorded.Len() != 4 {
		t.Fatalf("expected 4 log entries, got %d", recorded.Len())
	}

	messages := recorded.All()
	want := []string{"info message", "error message", "warn message", "debug message"}
	for i, entry := range messages {
		if entry.Message != want[i] {
			t.Fatalf("entry %d message = %q, want %q", i, entry.Message, want[i])
		}
	}
	if field := messages[0].ContextMap()["k"]; field != "v" {
		t.Fatalf("expected field \"k\" to equal \"v\", got %v", field)
	}
}

func TestWithModuleAttachesModuleField(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("booking").Info("module test")

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if module := entries[0].ContextMap()["module"]; module != "booking" {
		t.Fatalf("expected module field to be \"booking\", got %v", module)
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithFields(context.Background(), zap.String("request_id", "req-1"))
	ctx = ContextWithFields(ctx, zap.String("actor_id", "organizer-9"))
	WithContext(ctx, base).Info("invite dispatched")
	WithContext(context.Background(), base).Info("no correlation")

	entries := recorded.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["actor_id"] != "organizer-9" {
		t.Fatalf("missing correlation fields: %v", fields)
	}
	if len(entries[1].Context) != 0 {
		t.Fatalf("expected no fields, got %v", entries[1].ContextMap())
	}
}
