package retrieve

import "sort"

// combined is one fused candidate, carrying whichever of lexical/semantic
// produced it so the caller can report per-signal scores in --explain.
type combined struct {
	chunkID  string
	score    float32
	lexical  *float32
	semantic *float32
}

// combineResults fuses lexical and semantic hit lists by a weighted sum:
// chunks present in both lists score bm25Weight*lex + vectorWeight*sem;
// chunks present in only one list keep that list's native score. This is
// deliberately not Reciprocal Rank Fusion — RRF discards the scores'
// actual magnitude in favor of rank position, which throws away exactly
// the signal the weights are meant to control.
func combineResults(lexical []lexicalHit, semantic []semanticHit, bm25Weight, vectorWeight float32) []combined {
	byID := make(map[string]*combined)

	for _, h := range lexical {
		score := h.score
		byID[h.chunkID] = &combined{chunkID: h.chunkID, score: score, lexical: floatPtr(score)}
	}
	for _, h := range semantic {
		score := h.score
		if existing, ok := byID[h.chunkID]; ok {
			existing.semantic = floatPtr(score)
			existing.score = bm25Weight*(*existing.lexical) + vectorWeight*score
		} else {
			byID[h.chunkID] = &combined{chunkID: h.chunkID, score: score, semantic: floatPtr(score)}
		}
	}

	out := make([]combined, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	return out
}

func floatPtr(f float32) *float32 { return &f }

// sortCombinedDefault applies the three-level tie-break used when no
// explicit ORDER BY was given: score desc, then doc path asc, then chunk
// offset asc, then chunk id asc. Path/offset/id are resolved by the
// caller, which has already joined in the row data.
func sortCombinedDefault(items []scoredCombined) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.docPath != b.docPath {
			return a.docPath < b.docPath
		}
		if a.chunkOffset != b.chunkOffset {
			return a.chunkOffset < b.chunkOffset
		}
		return a.chunkID < b.chunkID
	})
}

type scoredCombined struct {
	combined
	docPath     string
	chunkOffset int64
}
