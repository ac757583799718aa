package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexExists   = errors.New("db: index already exists")
	ErrBatchTooLarge = errors.New("db: batch exceeds operation ceiling")
	// ErrStopStream is returned by a Stream callback to end iteration early.
	ErrStopStream = errors.New("db: stop stream")
)

// Op constants name the backend command for error context.
const (
	OpCreateIndex   = "FT.CREATE"
	OpCreateIndexes = "CREATEINDEXES"
	OpSearch        = "FT.SEARCH"
	OpJSONGet       = "JSON.GET"
	OpCommit        = "COMMIT"
	OpGet           = "GET"
	OpSet           = "SET"
	OpFind          = "FIND"
	OpBulkWrite     = "BULKWRITE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
