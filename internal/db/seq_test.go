package db

import (
	"sync"
	"testing"
	"time"
)

func TestSequencer_StrictlyIncreasingAtSameInstant(t *testing.T) {
	var s Sequencer
	now := time.UnixMicro(1_700_000_000_000_000)

	first := s.Next(now)
	if first != now.UnixMicro() {
		t.Errorf("expected first value %d, got %d", now.UnixMicro(), first)
	}
	for i := range 5 {
		if got := s.Next(now); got != first+int64(i)+1 {
			t.Fatalf("step %d: expected %d, got %d", i, first+int64(i)+1, got)
		}
	}
}

func TestSequencer_ClockGoingBackwards(t *testing.T) {
	var s Sequencer
	now := time.UnixMicro(2_000)

	a := s.Next(now)
	b := s.Next(now.Add(-time.Second))
	if b <= a {
		t.Errorf("expected %d > %d", b, a)
	}
}

func TestSequencer_ConcurrentUnique(t *testing.T) {
	var s Sequencer
	now := time.UnixMicro(1_000)

	const n = 200
	out := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out[i] = s.Next(now)
		}()
	}
	wg.Wait()

	seen := make(map[int64]struct{}, n)
	for _, v := range out {
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate sequence %d", v)
		}
		seen[v] = struct{}{}
	}
}
