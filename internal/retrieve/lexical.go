package retrieve

import (
	"context"
	"regexp"
	"strings"

	"github.com/recall-db/recall/internal/model"
)

// lexicalHit pairs a chunk id with its raw BM25 score (already transformed
// to the "higher is better" convention used throughout retrieval).
type lexicalHit struct {
	chunkID string
	score   float32
}

var fts5SyntaxErrorPattern = regexp.MustCompile(`(?i)fts5: syntax error`)

func isFTS5SyntaxError(err error) bool {
	return err != nil && fts5SyntaxErrorPattern.MatchString(err.Error())
}

var nonTokenRunPattern = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// sanitizeFTS5Query collapses runs of non-alphanumeric, non-underscore
// characters into single spaces, matching the permissive fallback query
// tried once after a genuine FTS5 syntax error.
func sanitizeFTS5Query(q string) string {
	return strings.TrimSpace(nonTokenRunPattern.ReplaceAllString(q, " "))
}

// lexicalSearch runs a BM25 search over chunk_fts and returns up to k hits
// ordered by descending score (FTS5 itself orders BM25 ascending, since
// lower bm25() is better; the score computed below negates it so this
// function's output sorts descending like every other ranked list). In
// "literal" LexicalMode the query is always sanitized before it runs, with a
// warning when sanitizing changed it. Otherwise, on a genuine FTS5 syntax
// error it retries once against a sanitized query and appends a warning
// naming the sanitized form; if sanitizing doesn't change the query, it
// gives up rather than loop.
func (e *Engine) lexicalSearch(ctx context.Context, filterClause string, filterArgs []any, query string, k int) ([]lexicalHit, []string, error) {
	if e.opts.LexicalMode == "literal" {
		sanitized := sanitizeFTS5Query(query)
		var warnings []string
		if sanitized != strings.TrimSpace(query) {
			warnings = append(warnings, "lexical query sanitized to: "+sanitized)
		}
		if sanitized == "" {
			return nil, warnings, nil
		}
		hits, err := e.runLexicalQuery(ctx, filterClause, filterArgs, sanitized, k)
		if err != nil {
			return nil, nil, err
		}
		return hits, warnings, nil
	}

	hits, err := e.runLexicalQuery(ctx, filterClause, filterArgs, query, k)
	if err == nil {
		return hits, nil, nil
	}
	if !isFTS5SyntaxError(err) {
		return nil, nil, err
	}

	sanitized := sanitizeFTS5Query(query)
	if sanitized == strings.TrimSpace(query) || sanitized == "" {
		return nil, nil, err
	}

	hits, err = e.runLexicalQuery(ctx, filterClause, filterArgs, sanitized, k)
	if err != nil {
		return nil, nil, err
	}
	warning := "lexical query had invalid syntax; retried as: " + sanitized
	return hits, []string{warning}, nil
}

func (e *Engine) runLexicalQuery(ctx context.Context, filterClause string, filterArgs []any, query string, k int) ([]lexicalHit, error) {
	sqlQuery := `
		SELECT chunk.id, bm25(chunk_fts) AS rank
		FROM chunk_fts
		JOIN chunk ON chunk.rowid = chunk_fts.rowid
		JOIN doc ON doc.id = chunk.doc_id
		WHERE chunk.deleted = 0 AND doc.deleted = 0 AND chunk_fts MATCH ? AND ` + filterClause + `
		ORDER BY rank ASC
		LIMIT ?
	`
	args := append([]any{query}, filterArgs...)
	args = append(args, k)

	rows, err := e.opts.Store.DB().QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []lexicalHit
	for rows.Next() {
		var id string
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			return nil, err
		}
		// SQLite's bm25() is lower-is-better and usually negative; negate it
		// into a relevance value and map that into a bounded [0, 1) "higher
		// is better" score, the same direction as every other
		// lexical/semantic signal.
		relevance := -bm25
		if relevance < 0 {
			relevance = 0
		}
		hits = append(hits, lexicalHit{chunkID: id, score: float32(relevance / (1.0 + relevance))})
	}
	return hits, rows.Err()
}

// loadChunkRows fetches the doc+chunk row data for a set of chunk ids, in
// no particular order; callers re-sort by their own scoring.
func (e *Engine) loadChunkRows(ctx context.Context, ids []string) (map[string]scoredRow, error) {
	if len(ids) == 0 {
		return map[string]scoredRow{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	q := `
		SELECT chunk.id, chunk.doc_id, chunk.offset, chunk.tokens, chunk.text, chunk.embedding,
		       doc.id, doc.path, doc.mtime, doc.size, doc.hash, doc.tag, doc.source
		FROM chunk
		JOIN doc ON doc.id = chunk.doc_id
		WHERE chunk.id IN (` + placeholders + `) AND chunk.deleted = 0 AND doc.deleted = 0
	`
	rows, err := e.opts.Store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]scoredRow, len(ids))
	for rows.Next() {
		var r scoredRow
		var tag, source *string
		if err := rows.Scan(
			&r.chunk.ID, &r.chunk.DocID, &r.chunk.Offset, &r.chunk.Tokens, &r.chunk.Text, &r.embedding,
			&r.doc.ID, &r.doc.Path, &r.doc.MTime, &r.doc.Size, &r.doc.Hash, &tag, &source,
		); err != nil {
			return nil, err
		}
		if tag != nil {
			r.doc.Tag, r.doc.HasTag = *tag, true
		}
		if source != nil {
			r.doc.Source, r.doc.HasSrc = *source, true
		}
		out[r.chunk.ID] = r
	}
	return out, rows.Err()
}

type scoredRow struct {
	doc       model.DocRow
	chunk     model.ChunkRow
	embedding []byte
}
