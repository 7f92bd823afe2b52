package retrieve

import (
	"context"
	"sort"
	"strings"

	"github.com/recall-db/recall/internal/ann"
	"github.com/recall-db/recall/internal/embed"
)

type semanticHit struct {
	chunkID string
	score   float32
}

// semanticSearch embeds the query and dispatches to the configured ANN
// backend. LSH and HNSW both fall back to an exhaustive linear scan when
// their probe returns fewer than k results, since a thin bucket is a sign
// the index doesn't have enough neighbors yet, not that there aren't any.
func (e *Engine) semanticSearch(ctx context.Context, filterClause string, filterArgs []any, query string, k int) ([]semanticHit, error) {
	vec, err := e.opts.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	switch e.opts.AnnBackend {
	case AnnBackendHNSW:
		hits, err := e.semanticSearchHNSW(ctx, filterClause, filterArgs, vec, k)
		if err != nil {
			return nil, err
		}
		if len(hits) >= k {
			return hits, nil
		}
		return e.semanticSearchLinear(ctx, filterClause, filterArgs, vec, k)
	case AnnBackendLinear:
		return e.semanticSearchLinear(ctx, filterClause, filterArgs, vec, k)
	default: // AnnBackendLSH and anything unrecognized
		if e.opts.AnnBits > 0 {
			hits, err := e.semanticSearchLSH(ctx, filterClause, filterArgs, vec, k)
			if err != nil {
				return nil, err
			}
			if len(hits) >= k {
				return hits, nil
			}
		}
		return e.semanticSearchLinear(ctx, filterClause, filterArgs, vec, k)
	}
}

func (e *Engine) semanticSearchLSH(ctx context.Context, filterClause string, filterArgs []any, vec []float32, k int) ([]semanticHit, error) {
	sig := ann.Signature(vec, e.opts.AnnBits, e.opts.AnnSeed)
	probes := ann.NeighborSignatures(sig, e.opts.AnnBits)

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(probes)), ",")
	args := make([]any, len(probes))
	for i, p := range probes {
		args[i] = p
	}

	q := `
		SELECT DISTINCT chunk.id, chunk.embedding
		FROM ann_lsh
		JOIN chunk ON chunk.id = ann_lsh.chunk_id
		JOIN doc ON doc.id = chunk.doc_id
		WHERE ann_lsh.signature IN (` + placeholders + `)
		  AND chunk.deleted = 0 AND doc.deleted = 0 AND ` + filterClause
	args = append(args, filterArgs...)

	rows, err := e.opts.Store.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []semanticHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		hits = append(hits, semanticHit{chunkID: id, score: embed.CosineSimilarity(vec, embed.FromBytes(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// semanticSearchHNSW collects a seed set via the same LSH probe (bounded
// by max(32, 4k)), then expands once by each seed's stored neighbor list.
// There's no incremental graph walk: the neighbor lists were computed in
// one batch rebuild, so "expand by one hop" is the entire traversal.
func (e *Engine) semanticSearchHNSW(ctx context.Context, filterClause string, filterArgs []any, vec []float32, k int) ([]semanticHit, error) {
	seedK := 32
	if 4*k > seedK {
		seedK = 4 * k
	}

	seeds, err := e.semanticSearchLSH(ctx, filterClause, filterArgs, vec, seedK)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(seeds))
	candidates := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if !seen[s.chunkID] {
			seen[s.chunkID] = true
			candidates = append(candidates, s.chunkID)
		}
	}
	for _, s := range seeds {
		neighbors, err := e.opts.Store.HNSWNeighbors(ctx, s.chunkID)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if !seen[n.ChunkID] {
				seen[n.ChunkID] = true
				candidates = append(candidates, n.ChunkID)
			}
		}
	}

	rowsByID, err := e.loadChunkRows(ctx, candidates)
	if err != nil {
		return nil, err
	}

	hits := make([]semanticHit, 0, len(rowsByID))
	for id, row := range rowsByID {
		hits = append(hits, semanticHit{chunkID: id, score: embed.CosineSimilarity(vec, embed.FromBytes(row.embedding))})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (e *Engine) semanticSearchLinear(ctx context.Context, filterClause string, filterArgs []any, vec []float32, k int) ([]semanticHit, error) {
	q := `
		SELECT chunk.id, chunk.embedding
		FROM chunk
		JOIN doc ON doc.id = chunk.doc_id
		WHERE chunk.deleted = 0 AND doc.deleted = 0 AND ` + filterClause

	rows, err := e.opts.Store.DB().QueryContext(ctx, q, filterArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []semanticHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		hits = append(hits, semanticHit{chunkID: id, score: embed.CosineSimilarity(vec, embed.FromBytes(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
