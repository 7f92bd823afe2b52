package retrieve

import (
	"context"

	"github.com/recall-db/recall/internal/filter"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/rql"
)

// runStructuredQuery handles an RQL query with no USING clause: a plain
// filtered scan of doc or chunk, unranked (every item scores 0), relying
// entirely on ORDER BY/LIMIT/OFFSET for shape.
func (e *Engine) runStructuredQuery(ctx context.Context, q *rql.Query) (Result, error) {
	filterClause := "1=1"
	var filterArgs []any
	if q.Filter != nil {
		sql, err := filter.Compile(q.Filter, q.Table)
		if err != nil {
			return Result{}, err
		}
		filterClause, filterArgs = sql.Clause, sql.Args
	}

	if q.Table == model.TableDoc {
		return e.scanDocs(ctx, filterClause, filterArgs)
	}
	return e.scanChunks(ctx, filterClause, filterArgs)
}

func (e *Engine) scanDocs(ctx context.Context, filterClause string, filterArgs []any) (Result, error) {
	sqlQuery := `
		SELECT id, path, mtime, size, hash, tag, source
		FROM doc
		WHERE deleted = 0 AND ` + filterClause

	rows, err := e.opts.Store.DB().QueryContext(ctx, sqlQuery, filterArgs...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	var items []model.ScoredItem
	for rows.Next() {
		var d model.DocRow
		var tag, source *string
		if err := rows.Scan(&d.ID, &d.Path, &d.MTime, &d.Size, &d.Hash, &tag, &source); err != nil {
			return Result{}, err
		}
		if tag != nil {
			d.Tag, d.HasTag = *tag, true
		}
		if source != nil {
			d.Source, d.HasSrc = *source, true
		}
		items = append(items, model.ScoredItem{Doc: d})
	}
	return Result{Items: items}, rows.Err()
}

func (e *Engine) scanChunks(ctx context.Context, filterClause string, filterArgs []any) (Result, error) {
	sqlQuery := `
		SELECT chunk.id, chunk.doc_id, chunk.offset, chunk.tokens, chunk.text,
		       doc.id, doc.path, doc.mtime, doc.size, doc.hash, doc.tag, doc.source
		FROM chunk
		JOIN doc ON doc.id = chunk.doc_id
		WHERE chunk.deleted = 0 AND doc.deleted = 0 AND ` + filterClause

	rows, err := e.opts.Store.DB().QueryContext(ctx, sqlQuery, filterArgs...)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	var items []model.ScoredItem
	for rows.Next() {
		var c model.ChunkRow
		var d model.DocRow
		var tag, source *string
		if err := rows.Scan(
			&c.ID, &c.DocID, &c.Offset, &c.Tokens, &c.Text,
			&d.ID, &d.Path, &d.MTime, &d.Size, &d.Hash, &tag, &source,
		); err != nil {
			return Result{}, err
		}
		if tag != nil {
			d.Tag, d.HasTag = *tag, true
		}
		if source != nil {
			d.Source, d.HasSrc = *source, true
		}
		chunk := c
		items = append(items, model.ScoredItem{Doc: d, Chunk: &chunk})
	}
	return Result{Items: items}, rows.Err()
}

// ProjectFields renders an explicit RQL SELECT list (doc.path, chunk.text,
// score, ...) for one item into a label->value map. Callers handle
// SELECT * themselves; fields here never include a SelectAll entry from a
// well-formed query.
func ProjectFields(item model.ScoredItem, fields []model.SelectField) map[string]any {
	return projectFields(item, fields)
}

func projectFields(item model.ScoredItem, fields []model.SelectField) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		switch f.Kind {
		case model.SelectScore:
			out["score"] = item.Score
		case model.SelectFieldRef:
			out[fieldLabel(f.Field)] = fieldStringValue(item, f.Field)
		}
	}
	return out
}

func fieldLabel(ref model.FieldRef) string {
	if ref.HasTable {
		return ref.Table.String() + "." + ref.Name
	}
	return ref.Name
}

func fieldStringValue(item model.ScoredItem, ref model.FieldRef) any {
	v := fieldValueOf(item, rql.OrderTarget{Field: ref})
	switch v.kind {
	case fvNumber:
		return v.num
	case fvString:
		return v.str
	default:
		return nil
	}
}
