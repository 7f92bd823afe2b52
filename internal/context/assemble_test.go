package context

import (
	"testing"

	"github.com/recall-db/recall/internal/model"
)

func item(docID, chunkID, text string, offset int64) model.ScoredItem {
	chunk := model.ChunkRow{ID: chunkID, DocID: docID, Offset: offset, Text: text}
	return model.ScoredItem{
		Doc:   model.DocRow{ID: docID, Path: docID + ".md"},
		Chunk: &chunk,
	}
}

func TestAssembleConcatenatesWithBlankLine(t *testing.T) {
	items := []model.ScoredItem{
		item("d1", "c1", "alpha beta", 0),
		item("d1", "c2", "gamma delta", 1),
	}
	out := Assemble(items, 100, nil)
	if out.Text != "alpha beta\n\ngamma delta" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.UsedTokens != 4 {
		t.Fatalf("expected 4 used tokens, got %d", out.UsedTokens)
	}
}

func TestAssembleTruncatesAtBudget(t *testing.T) {
	items := []model.ScoredItem{item("d1", "c1", "one two three four five", 0)}
	out := Assemble(items, 3, nil)
	if out.Text != "one two three" {
		t.Fatalf("unexpected text: %q", out.Text)
	}
	if out.UsedTokens != 3 {
		t.Fatalf("expected 3 used tokens, got %d", out.UsedTokens)
	}
}

func TestAssembleSkipsDuplicateChunkIDs(t *testing.T) {
	items := []model.ScoredItem{
		item("d1", "c1", "alpha", 0),
		item("d1", "c1", "alpha", 0),
	}
	out := Assemble(items, 100, nil)
	if len(out.Chunks) != 1 {
		t.Fatalf("expected 1 chunk after dedup, got %d", len(out.Chunks))
	}
}

func TestAssembleAppliesDiversityCap(t *testing.T) {
	items := []model.ScoredItem{
		item("d1", "c1", "alpha", 0),
		item("d1", "c2", "beta", 1),
		item("d2", "c3", "gamma", 0),
	}
	cap := 1
	out := Assemble(items, 100, &cap)
	if len(out.Chunks) != 2 {
		t.Fatalf("expected 2 chunks (one per doc), got %d", len(out.Chunks))
	}
	if out.Chunks[0].DocID != "d1" || out.Chunks[1].DocID != "d2" {
		t.Fatalf("unexpected chunk docs: %+v", out.Chunks)
	}
}

func TestAssembleStopsWhenBudgetExhausted(t *testing.T) {
	items := []model.ScoredItem{
		item("d1", "c1", "one two three", 0),
		item("d2", "c2", "four five six", 0),
	}
	out := Assemble(items, 3, nil)
	if len(out.Chunks) != 1 {
		t.Fatalf("expected only the first chunk to fit, got %d chunks", len(out.Chunks))
	}
}
