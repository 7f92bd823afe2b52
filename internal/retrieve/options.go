// Package retrieve implements lexical, semantic, and fused hybrid search
// plus RQL execution over a store.
package retrieve

import (
	"github.com/recall-db/recall/internal/embed"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/rql"
	"github.com/recall-db/recall/internal/store"
)

// AnnBackend selects the approximate-nearest-neighbor strategy used by
// semantic search. Unknown names behave as LSH with a linear fallback.
type AnnBackend string

const (
	AnnBackendLSH    AnnBackend = "lsh"
	AnnBackendHNSW   AnnBackend = "hnsw"
	AnnBackendLinear AnnBackend = "linear"
)

// Options configures one search call: the weighting, backend selection,
// and limits shared across lexical, semantic, and RQL-driven retrieval.
type Options struct {
	Store        *store.Store
	Embedder     embed.Embedder
	BM25Weight   float32
	VectorWeight float32
	AnnBackend   AnnBackend
	AnnBits      uint8
	AnnSeed      uint64
	MaxLimit     int
	LexicalMode  string // "fts5" (default) or "literal"
}

// Inputs is the set of query channels a single search call may use.
type Inputs struct {
	Lexical     string
	HasLexical  bool
	Semantic    string
	HasSemantic bool
	Filter      *rql.FilterExpr
	Table       model.Table
	K           int
	Fields      []model.SelectField
}
