package services_test

import (
	"context"
	"testing"

	"shelver/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPassID(ctx, "pass-1")
	ctx = services.WithTrigger(ctx, "startup")
	ctx = services.WithFile(ctx, "a.jpg")

	if id, ok := services.PassIDFromContext(ctx); !ok || id != "pass-1" {
		t.Fatalf("unexpected pass id: %v %v", id, ok)
	}
	if trigger, ok := services.TriggerFromContext(ctx); !ok || trigger != "startup" {
		t.Fatalf("unexpected trigger: %v %v", trigger, ok)
	}
	if name, ok := services.FileFromContext(ctx); !ok || name != "a.jpg" {
		t.Fatalf("unexpected file: %v %v", name, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPassID(ctx, "")
	ctx = services.WithFile(ctx, "")
	if _, ok := services.PassIDFromContext(ctx); ok {
		t.Fatal("expected no pass id")
	}
	if _, ok := services.FileFromContext(ctx); ok {
		t.Fatal("expected no file")
	}
}
