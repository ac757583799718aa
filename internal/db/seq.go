package db

import (
	"sync/atomic"
	"time"
)

// SeqField is the numeric field stores order and page Stream results by.
const SeqField = "seq"

// Sequencer hands out strictly increasing sequence numbers seeded from the
// wall clock in microseconds, so values stay exact as float64 index scores.
type Sequencer struct {
	last atomic.Int64
}

// Next returns a value greater than every value returned before and no lower than t.
func (s *Sequencer) Next(t time.Time) int64 {
	for {
		prev := s.last.Load()
		next := max(prev+1, t.UnixMicro())
		if s.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
