// Package model holds the row and result shapes shared by the store,
// retrieval, context, and transfer packages.
package model

// DocRow is a projection of the doc table used throughout retrieval.
type DocRow struct {
	ID     string
	Path   string
	MTime  string
	Size   int64
	Hash   string
	Tag    string
	Source string
	HasTag bool
	HasSrc bool
}

// ChunkRow is a projection of the chunk table, without its embedding.
type ChunkRow struct {
	ID     string
	DocID  string
	Offset int64
	Tokens int64
	Text   string
}

// ScoredItem is one ranked result: a document, optionally paired with one
// of its chunks, plus the score components that produced its rank.
type ScoredItem struct {
	Score    float32
	Lexical  *float32
	Semantic *float32
	Doc      DocRow
	Chunk    *ChunkRow
}

// TimingBreakdown reports per-stage milliseconds for a search.
type TimingBreakdown struct {
	FilterMS   *int64
	LexicalMS  *int64
	SemanticMS *int64
	CombineMS  *int64
	OrderMS    *int64
	AssembleMS *int64
}

// CorpusStats reports corpus-wide totals, used by corpus_stats().
type CorpusStats struct {
	Docs   int64
	Chunks int64
	Tokens int64
	Bytes  uint64
}

// Stats is the stats envelope attached to most command responses.
type Stats struct {
	TookMS      int64
	TotalHits   int64
	DocCount    *int64
	ChunkCount  *int64
	DBSizeBytes *uint64
	Snapshot    string
	Timings     *TimingBreakdown
	Corpus      *CorpusStats
}

// SearchResult is the outcome of a hybrid search, RQL query, or structured
// scan: a ranked/ordered item list plus the metadata needed to render it.
type SearchResult struct {
	Items            []ScoredItem
	Stats            Stats
	Filter           string
	HasFilter        bool
	ExplainWarnings  []string
	SelectedFields   []SelectField
	HasSelectedFields bool
	IncludeExplain   bool
	Limit            int
	Offset           int
}

// FilterString returns the raw filter expression, if one was supplied.
func (r *SearchResult) FilterString() string {
	if !r.HasFilter {
		return ""
	}
	return r.Filter
}

// Table names the two queryable tables.
type Table int

const (
	TableDoc Table = iota
	TableChunk
)

func (t Table) String() string {
	if t == TableChunk {
		return "chunk"
	}
	return "doc"
}

// FieldRef is a possibly-qualified field reference (doc.path, chunk.text, score, ...).
type FieldRef struct {
	Table    Table
	HasTable bool
	Name     string
}

// ParseFieldRef splits "table.name" into a FieldRef; an unqualified input
// leaves HasTable false.
func ParseFieldRef(input string) FieldRef {
	for i := 0; i < len(input); i++ {
		if input[i] == '.' {
			prefix, name := input[:i], input[i+1:]
			switch lower(prefix) {
			case "doc":
				return FieldRef{Table: TableDoc, HasTable: true, Name: name}
			case "chunk":
				return FieldRef{Table: TableChunk, HasTable: true, Name: name}
			default:
				return FieldRef{Name: name}
			}
		}
	}
	return FieldRef{Name: input}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// SelectFieldKind distinguishes the three forms a select list entry can take.
type SelectFieldKind int

const (
	SelectAll SelectFieldKind = iota
	SelectScore
	SelectFieldRef
)

// SelectField is one entry of a SELECT field list.
type SelectField struct {
	Kind  SelectFieldKind
	Field FieldRef
}
