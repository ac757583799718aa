package domain

import (
	"context"
	"sync"
	"testing"
)

func TestEmbeddingUsage_ConcurrentRecord(t *testing.T) {
	ctx, usage := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != usage {
		t.Fatal("expected the same collector from context")
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			UsageFromContext(ctx).Record(2, i%10 == 0)
		}(i)
	}
	wg.Wait()

	calls, failures, tokens := usage.Snapshot()
	if calls != 50 {
		t.Errorf("calls: got %d, want 50", calls)
	}
	if failures != 5 {
		t.Errorf("failures: got %d, want 5", failures)
	}
	if tokens != 100 {
		t.Errorf("tokens: got %d, want 100", tokens)
	}
}

func TestEmbeddingUsage_NilSafe(t *testing.T) {
	var u *EmbeddingUsage
	u.Record(10, false)
	if c, f, tok := u.Snapshot(); c != 0 || f != 0 || tok != 0 {
		t.Errorf("nil snapshot: got %d/%d/%d", c, f, tok)
	}
	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil collector on bare context")
	}
}
