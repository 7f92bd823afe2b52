package retrieve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/recall-db/recall/internal/embed"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/rql"
	"github.com/recall-db/recall/internal/store"
)

func newTestStore(t *testing.T, dim int) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.db")
	s, err := store.Init(context.Background(), path, dim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocChunk(t *testing.T, s *store.Store, docID, path, text string, offset int64, vec []float32) {
	t.Helper()
	ctx := context.Background()
	_, err := s.DB().ExecContext(ctx,
		"INSERT OR IGNORE INTO doc(id, path, mtime, hash) VALUES (?, ?, 't', 'h')", docID, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = s.DB().ExecContext(ctx,
		"INSERT INTO chunk(id, doc_id, offset, tokens, text, embedding) VALUES (?, ?, ?, 1, ?, ?)",
		docID+"-"+path+"-c", docID, offset, text, embed.ToBytes(vec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearchChunksLexicalOnly(t *testing.T) {
	s := newTestStore(t, 4)
	seedDocChunk(t, s, "d1", "a.md", "the quick brown fox", 0, []float32{1, 0, 0, 0})
	seedDocChunk(t, s, "d2", "b.md", "a slow green turtle", 0, []float32{0, 1, 0, 0})

	e := New(Options{Store: s, Embedder: mustBuildHash(t, 4), BM25Weight: 1, VectorWeight: 1})
	res, err := e.SearchChunks(context.Background(), Inputs{Lexical: "fox", HasLexical: true, K: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(res.Items))
	}
	if res.Items[0].Doc.Path != "a.md" {
		t.Fatalf("expected a.md, got %s", res.Items[0].Doc.Path)
	}
}

func TestSearchChunksHybridFuses(t *testing.T) {
	s := newTestStore(t, 4)
	seedDocChunk(t, s, "d1", "a.md", "alpha beta", 0, []float32{1, 0, 0, 0})
	seedDocChunk(t, s, "d2", "b.md", "gamma delta", 0, []float32{0, 1, 0, 0})

	e := New(Options{Store: s, Embedder: mustBuildHash(t, 4), BM25Weight: 0.5, VectorWeight: 0.5, AnnBackend: AnnBackendLinear})
	res, err := e.SearchChunks(context.Background(), Inputs{
		Lexical: "alpha", HasLexical: true,
		Semantic: "alpha beta", HasSemantic: true,
		K: 5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) == 0 {
		t.Fatalf("expected at least one hit")
	}
}

func TestRunRQLStructuredDocScan(t *testing.T) {
	s := newTestStore(t, 4)
	seedDocChunk(t, s, "d1", "a.md", "alpha", 0, []float32{1, 0, 0, 0})
	seedDocChunk(t, s, "d2", "b.md", "beta", 0, []float32{0, 1, 0, 0})

	e := New(Options{Store: s, Embedder: mustBuildHash(t, 4)})
	q, err := rql.Parse("SELECT * FROM doc ORDER BY path ASC")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	res, err := e.RunRQL(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 docs, got %d", len(res.Items))
	}
	if res.Items[0].Doc.Path != "a.md" || res.Items[1].Doc.Path != "b.md" {
		t.Fatalf("unexpected order: %+v", res.Items)
	}
}

func TestRunRQLRespectsLimitOffset(t *testing.T) {
	s := newTestStore(t, 4)
	seedDocChunk(t, s, "d1", "a.md", "alpha", 0, []float32{1, 0, 0, 0})
	seedDocChunk(t, s, "d2", "b.md", "beta", 0, []float32{0, 1, 0, 0})
	seedDocChunk(t, s, "d3", "c.md", "gamma", 0, []float32{0, 0, 1, 0})

	e := New(Options{Store: s, Embedder: mustBuildHash(t, 4)})
	q, err := rql.Parse("SELECT * FROM doc ORDER BY path ASC LIMIT 1 OFFSET 1")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	res, err := e.RunRQL(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(res.Items))
	}
	if res.Items[0].Doc.Path != "b.md" {
		t.Fatalf("expected b.md, got %s", res.Items[0].Doc.Path)
	}
}

func TestGroupByDocKeepsBestChunk(t *testing.T) {
	chunkA := model.ChunkRow{ID: "ca", Offset: 0}
	chunkB := model.ChunkRow{ID: "cb", Offset: 1}
	items := groupByDoc([]model.ScoredItem{
		{Score: 0.2, Doc: model.DocRow{ID: "d1", Path: "a.md"}, Chunk: &chunkA},
		{Score: 0.9, Doc: model.DocRow{ID: "d1", Path: "a.md"}, Chunk: &chunkB},
	})
	if len(items) != 1 {
		t.Fatalf("expected 1 grouped doc, got %d", len(items))
	}
	if items[0].Score != 0.9 {
		t.Fatalf("expected best score 0.9, got %v", items[0].Score)
	}
	if items[0].Chunk != nil {
		t.Fatalf("expected chunk to be dropped after grouping")
	}
}

func mustBuildHash(t *testing.T, dim int) embed.Embedder {
	t.Helper()
	e, err := embed.Build(embed.HashName, dim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e
}
