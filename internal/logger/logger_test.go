package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		l, err := NewLogger(env)
		if err != nil {
			t.Fatalf("env %q: unexpected error: %v", env, err)
		}
		if l == nil {
			t.Fatalf("env %q: nil logger", env)
		}
	}
}

func TestNewLogger_UnknownEnv(t *testing.T) {
	if _, err := NewLogger("staging"); err == nil {
		t.Fatal("expected error for unknown env")
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithCity_AddsField(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	FromContext(WithCity(ctx, "valencia")).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["city_slug"]; got != "valencia" {
		t.Errorf("city_slug: got %v, want valencia", got)
	}
}

func TestWithCity_EmptySlugKeepsContext(t *testing.T) {
	ctx := context.Background()
	if WithCity(ctx, "") != ctx {
		t.Error("expected the same context for empty slug")
	}
}
