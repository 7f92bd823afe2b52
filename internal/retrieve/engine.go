package retrieve

import (
	"context"
	"sort"

	"github.com/recall-db/recall/internal/filter"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/rql"
)

// Engine executes searches and RQL queries against one store.
type Engine struct {
	opts Options
}

// New returns an Engine bound to the given options. The store and embedder
// must already be open/constructed; Engine does not own their lifecycle.
func New(opts Options) *Engine {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 1000
	}
	return &Engine{opts: opts}
}

// Result is the outcome of a single search or RQL execution.
type Result struct {
	Items    []model.ScoredItem
	Warnings []string
}

// SearchChunks runs a hybrid (or single-mode) search over Inputs and
// returns up to k ranked chunk results with their parent docs attached.
func (e *Engine) SearchChunks(ctx context.Context, in Inputs) (Result, error) {
	k := in.K
	if k <= 0 {
		k = 8
	}
	if k > e.opts.MaxLimit {
		k = e.opts.MaxLimit
	}

	filterClause := "1=1"
	var filterArgs []any
	if in.Filter != nil {
		sql, err := filter.Compile(in.Filter, model.TableChunk)
		if err != nil {
			return Result{}, err
		}
		filterClause, filterArgs = sql.Clause, sql.Args
	}

	var warnings []string
	var lexHits []lexicalHit
	var semHits []semanticHit

	if in.HasLexical {
		hits, warns, err := e.lexicalSearch(ctx, filterClause, filterArgs, in.Lexical, k)
		if err != nil {
			return Result{}, err
		}
		lexHits = hits
		warnings = append(warnings, warns...)
	}
	if in.HasSemantic {
		hits, err := e.semanticSearch(ctx, filterClause, filterArgs, in.Semantic, k)
		if err != nil {
			return Result{}, err
		}
		semHits = hits
	}

	fused := combineResults(lexHits, semHits, e.opts.BM25Weight, e.opts.VectorWeight)

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.chunkID
	}
	rows, err := e.loadChunkRows(ctx, ids)
	if err != nil {
		return Result{}, err
	}

	scored := make([]scoredCombined, 0, len(fused))
	for _, f := range fused {
		row, ok := rows[f.chunkID]
		if !ok {
			continue
		}
		scored = append(scored, scoredCombined{combined: f, docPath: row.doc.Path, chunkOffset: row.chunk.Offset})
	}
	sortCombinedDefault(scored)
	if len(scored) > k {
		scored = scored[:k]
	}

	items := make([]model.ScoredItem, 0, len(scored))
	for _, s := range scored {
		row := rows[s.chunkID]
		chunk := row.chunk
		items = append(items, model.ScoredItem{
			Score:    s.score,
			Lexical:  s.lexical,
			Semantic: s.semantic,
			Doc:      row.doc,
			Chunk:    &chunk,
		})
	}

	return Result{Items: items, Warnings: warnings}, nil
}

// groupByDoc collapses a chunk-level result down to one entry per document,
// keeping each doc's single best-scoring chunk and dropping the chunk
// field from the surviving item. This mirrors the literal behavior it's
// grounded on rather than attempting to summarize across a doc's matches.
func groupByDoc(items []model.ScoredItem) []model.ScoredItem {
	best := make(map[string]model.ScoredItem)
	order := make([]string, 0)
	for _, item := range items {
		id := item.Doc.ID
		existing, ok := best[id]
		if !ok {
			best[id] = item
			order = append(order, id)
			continue
		}
		if item.Score > existing.Score {
			best[id] = item
		}
	}
	out := make([]model.ScoredItem, 0, len(order))
	for _, id := range order {
		item := best[id]
		item.Chunk = nil
		out = append(out, item)
	}
	return out
}

// RunRQL executes a parsed RQL query: if it has a USING clause, delegates
// to SearchChunks with k = limit+offset, then applies grouping/ordering/
// pagination; otherwise runs a direct structured scan.
func (e *Engine) RunRQL(ctx context.Context, q *rql.Query) (Result, error) {
	limit := e.opts.MaxLimit
	if q.HasLimit {
		limit = q.Limit
	}
	offset := 0
	if q.HasOffset {
		offset = q.Offset
	}

	var result Result
	if q.HasSemantic || q.HasLexical {
		in := Inputs{
			Semantic:    q.UsingSemantic,
			HasSemantic: q.HasSemantic,
			Lexical:     q.UsingLexical,
			HasLexical:  q.HasLexical,
			Filter:      q.Filter,
			Table:       q.Table,
			K:           limit + offset,
			Fields:      q.Fields,
		}
		r, err := e.SearchChunks(ctx, in)
		if err != nil {
			return Result{}, err
		}
		result = r
	} else {
		r, err := e.runStructuredQuery(ctx, q)
		if err != nil {
			return Result{}, err
		}
		result = r
	}

	if q.Table == model.TableDoc {
		result.Items = groupByDoc(result.Items)
	}

	if q.Order != nil {
		applyOrdering(result.Items, *q.Order)
	}

	result.Items = paginate(result.Items, offset, limit)
	return result, nil
}

func paginate(items []model.ScoredItem, offset, limit int) []model.ScoredItem {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func applyOrdering(items []model.ScoredItem, order rql.Order) {
	less := func(i, j int) bool {
		a, b := fieldValueOf(items[i], order.Target), fieldValueOf(items[j], order.Target)
		return a.less(b)
	}
	if order.Dir == rql.OrderDesc {
		sort.SliceStable(items, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(items, less)
	}
}

// fieldValueKind distinguishes the three shapes an ORDER BY target can
// resolve to, so values can be compared without reflection.
type fieldValueKind int

const (
	fvNone fieldValueKind = iota
	fvString
	fvNumber
)

type fieldValue struct {
	kind fieldValueKind
	str  string
	num  float64
}

func (a fieldValue) less(b fieldValue) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	switch a.kind {
	case fvString:
		return a.str < b.str
	case fvNumber:
		return a.num < b.num
	default:
		return false
	}
}

// fieldValueOf resolves an ORDER BY target against one result item. Score
// orders by the fused score; doc/chunk field references fall back to their
// string form except for the numeric offset, tokens and size fields.
func fieldValueOf(item model.ScoredItem, target rql.OrderTarget) fieldValue {
	if target.ByScore {
		return fieldValue{kind: fvNumber, num: float64(item.Score)}
	}
	name := target.Field.Name
	if target.Field.HasTable && target.Field.Table == model.TableChunk || (!target.Field.HasTable && item.Chunk != nil && isChunkOnlyField(name)) {
		if item.Chunk == nil {
			return fieldValue{}
		}
		switch name {
		case "offset":
			return fieldValue{kind: fvNumber, num: float64(item.Chunk.Offset)}
		case "tokens":
			return fieldValue{kind: fvNumber, num: float64(item.Chunk.Tokens)}
		case "id":
			return fieldValue{kind: fvString, str: item.Chunk.ID}
		case "doc_id":
			return fieldValue{kind: fvString, str: item.Chunk.DocID}
		case "text":
			return fieldValue{kind: fvString, str: item.Chunk.Text}
		}
	}
	switch name {
	case "id":
		return fieldValue{kind: fvString, str: item.Doc.ID}
	case "path":
		return fieldValue{kind: fvString, str: item.Doc.Path}
	case "mtime":
		return fieldValue{kind: fvString, str: item.Doc.MTime}
	case "size":
		return fieldValue{kind: fvNumber, num: float64(item.Doc.Size)}
	case "hash":
		return fieldValue{kind: fvString, str: item.Doc.Hash}
	case "tag":
		return fieldValue{kind: fvString, str: item.Doc.Tag}
	case "source":
		return fieldValue{kind: fvString, str: item.Doc.Source}
	default:
		return fieldValue{}
	}
}

func isChunkOnlyField(name string) bool {
	switch name {
	case "offset", "tokens", "text", "doc_id":
		return true
	default:
		return false
	}
}
