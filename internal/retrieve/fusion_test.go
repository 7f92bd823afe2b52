package retrieve

import "testing"

func TestCombineResultsWeightsBothSignals(t *testing.T) {
	lex := []lexicalHit{{chunkID: "a", score: 1.0}, {chunkID: "b", score: 0.2}}
	sem := []semanticHit{{chunkID: "a", score: 0.5}, {chunkID: "c", score: 0.8}}

	out := combineResults(lex, sem, 0.5, 0.5)
	byID := make(map[string]combined, len(out))
	for _, c := range out {
		byID[c.chunkID] = c
	}

	if got := byID["a"].score; got != 0.75 {
		t.Fatalf("expected fused score 0.75 for a, got %v", got)
	}
	if got := byID["b"].score; got != 0.2 {
		t.Fatalf("expected lexical-only score 0.2 for b, got %v", got)
	}
	if got := byID["c"].score; got != 0.8 {
		t.Fatalf("expected semantic-only score 0.8 for c, got %v", got)
	}
}

func TestSortCombinedDefaultTieBreak(t *testing.T) {
	items := []scoredCombined{
		{combined: combined{chunkID: "z", score: 1.0}, docPath: "b.md", chunkOffset: 0},
		{combined: combined{chunkID: "a", score: 1.0}, docPath: "a.md", chunkOffset: 5},
		{combined: combined{chunkID: "y", score: 1.0}, docPath: "a.md", chunkOffset: 0},
		{combined: combined{chunkID: "x", score: 2.0}, docPath: "c.md", chunkOffset: 0},
	}
	sortCombinedDefault(items)

	want := []string{"x", "y", "a", "z"}
	for i, id := range want {
		if items[i].chunkID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].chunkID)
		}
	}
}
