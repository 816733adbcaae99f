package observability

import (
	"context"
	"testing"
)

func TestContextAccumulation(t *testing.T) {
	ctx := context.Background()
	ctx = WithTask(ctx, "markdown-to-html")
	ctx = WithRound(ctx, 2)
	ctx = WithNonce(ctx, "ab12")

	lc := GetContext(ctx)
	if lc.Task != "markdown-to-html" {
		t.Fatalf("expected task preserved, got %q", lc.Task)
	}
	if lc.Round != 2 {
		t.Fatalf("expected round 2, got %d", lc.Round)
	}
	if lc.Nonce != "ab12" {
		t.Fatalf("expected nonce preserved, got %q", lc.Nonce)
	}
}

func TestContextOverwriteIsScoped(t *testing.T) {
	base := WithStage(context.Background(), "generate")
	child := WithStage(base, "publish")

	if GetContext(base).Stage != "generate" {
		t.Fatalf("parent context mutated")
	}
	if GetContext(child).Stage != "publish" {
		t.Fatalf("child context not updated")
	}
}

func TestEmptyContext(t *testing.T) {
	lc := GetContext(context.Background())
	if lc.Task != "" || lc.Round != 0 || lc.BuildID != "" {
		t.Fatalf("expected zero LogContext, got %+v", lc)
	}
}
