package httpmiddleware

import (
	"context"
	"testing"
)

func TestSimpleTokenBucket(t *testing.T) {
	t.Run("allows up to capacity then refuses", func(t *testing.T) {
		l := NewSimpleTokenBucket(2, 2)
		ctx := context.Background()

		if !l.Allow(ctx, "1.2.3.4") || !l.Allow(ctx, "1.2.3.4") {
			t.Fatal("first requests within capacity must pass")
		}
		if l.Allow(ctx, "1.2.3.4") {
			t.Fatal("request beyond capacity must be refused")
		}
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		l := NewSimpleTokenBucket(1, 1)
		ctx := context.Background()

		if !l.Allow(ctx, "1.2.3.4") {
			t.Fatal("first client must pass")
		}
		if !l.Allow(ctx, "5.6.7.8") {
			t.Fatal("second client has its own bucket")
		}
	})

	t.Run("zero capacity falls back to the per-minute rate", func(t *testing.T) {
		l := NewSimpleTokenBucket(0, 3)
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			if !l.Allow(ctx, "a") {
				t.Fatalf("request %d within rate must pass", i+1)
			}
		}
		if l.Allow(ctx, "a") {
			t.Fatal("request beyond rate must be refused")
		}
	})
}
