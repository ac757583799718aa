package db

import "github.com/kailas-cloud/cityrag/internal/domain/search/filter"

// Query selects documents of one collection by equality filters.
type Query struct {
	Collection string
	Filter     filter.Expression
	Limit      int // 0 = no limit
}

// Entry is a single stored document: its id and JSON body.
type Entry struct {
	ID   string
	Data []byte
}

// OpKind is the kind of a batched write.
type OpKind int

const (
	// OpPut creates or replaces a document.
	OpPut OpKind = iota
	// OpDelete removes a document.
	OpDelete
)

// WriteOp is one operation of a batched write. Data is ignored for OpDelete.
type WriteOp struct {
	Kind OpKind
	ID   string
	Data []byte
}
