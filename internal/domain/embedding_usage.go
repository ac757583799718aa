package domain

import (
	"context"
	"sync"
)

type embeddingUsageKey struct{}

// EmbeddingUsage collects embedding activity for a single request.
// The transport puts a pointer into the context before calling the service;
// services record after each embed call (possibly from worker goroutines);
// the transport reads the totals for response headers.
type EmbeddingUsage struct {
	mu          sync.Mutex
	calls       int
	failures    int
	totalTokens int
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// Record registers one embed call. Safe on a nil receiver.
func (u *EmbeddingUsage) Record(tokens int, failed bool) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	u.totalTokens += tokens
	if failed {
		u.failures++
	}
}

// Snapshot returns calls, failures and tokens recorded so far.
func (u *EmbeddingUsage) Snapshot() (calls, failures, tokens int) {
	if u == nil {
		return 0, 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, u.failures, u.totalTokens
}
