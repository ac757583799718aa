package result

import domdoc "github.com/kailas-cloud/cityrag/internal/domain/document"

// Result is a single ranked search hit.
type Result struct {
	doc   domdoc.Document
	score float64
}

// New creates a search result.
func New(doc domdoc.Document, score float64) Result {
	return Result{doc: doc, score: score}
}

// Document returns the matched document.
func (r *Result) Document() domdoc.Document { return r.doc }

// Score returns the relevance score: keyword points or cosine similarity.
func (r *Result) Score() float64 { return r.score }
