package batch

import "errors"

// ChunkStatus is the commit outcome of a single chunk.
type ChunkStatus string

// Chunk status values.
const (
	StatusOK    ChunkStatus = "ok"
	StatusError ChunkStatus = "error"
)

// Chunk is the outcome of committing one slice of a batched write.
// Chunks commit independently: a failed chunk does not roll back earlier ones.
type Chunk struct {
	index  int
	size   int
	status ChunkStatus
	err    error
}

// NewOK creates a committed chunk outcome.
func NewOK(index, size int) Chunk { return Chunk{index: index, size: size, status: StatusOK} }

// NewError creates a failed chunk outcome.
func NewError(index, size int, err error) Chunk {
	return Chunk{index: index, size: size, status: StatusError, err: err}
}

// Index returns the position of the chunk in the batch.
func (c Chunk) Index() int { return c.index }

// Size returns the number of operations in the chunk.
func (c Chunk) Size() int { return c.size }

// Status returns the commit outcome.
func (c Chunk) Status() ChunkStatus { return c.status }

// Err returns the error, if any.
func (c Chunk) Err() error { return c.err }

// Report aggregates chunk outcomes of one batched write.
type Report struct {
	Chunks []Chunk
}

// Committed returns the number of operations in committed chunks.
func (r Report) Committed() int {
	n := 0
	for _, c := range r.Chunks {
		if c.status == StatusOK {
			n += c.size
		}
	}
	return n
}

// CommittedChunks returns the number of chunks that committed.
func (r Report) CommittedChunks() int {
	n := 0
	for _, c := range r.Chunks {
		if c.status == StatusOK {
			n++
		}
	}
	return n
}

// Err joins the errors of failed chunks; nil when every chunk committed.
func (r Report) Err() error {
	var errs []error
	for _, c := range r.Chunks {
		if c.err != nil {
			errs = append(errs, c.err)
		}
	}
	return errors.Join(errs...)
}

// Bounds splits n operations into [start, end) ranges of at most limit each.
func Bounds(n, limit int) [][2]int {
	if n <= 0 {
		return nil
	}
	if limit <= 0 {
		limit = n
	}
	out := make([][2]int, 0, (n+limit-1)/limit)
	for start := 0; start < n; start += limit {
		out = append(out, [2]int{start, min(start+limit, n)})
	}
	return out
}
