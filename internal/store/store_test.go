package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestInitCreatesSchemaAndMeta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	s, err := Init(ctx, path, 256)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	dim, err := s.EmbeddingDim(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dim != 256 {
		t.Fatalf("EmbeddingDim() = %d, want 256", dim)
	}

	stats, err := s.CorpusStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Docs != 0 || stats.Chunks != 0 {
		t.Fatalf("expected empty corpus, got %+v", stats)
	}
}

func TestInitRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	s, err := Init(ctx, path, 128)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()

	if _, err := Init(ctx, path, 128); err == nil {
		t.Fatalf("expected Init to refuse an existing file")
	}
}

func TestMarkDocDeletedTombstonesChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	s, err := Init(ctx, path, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	_, err = s.db.ExecContext(ctx, "INSERT INTO doc(id, path, mtime, hash) VALUES ('d1', 'a.md', 't1', 'h1')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO chunk(id, doc_id, offset, tokens, text, embedding) VALUES ('c1', 'd1', 0, 3, 'hello world', x'')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.MarkDocDeleted(ctx, "a.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := s.CorpusStats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Docs != 0 || stats.Chunks != 0 {
		t.Fatalf("expected tombstoned rows to be excluded from live stats, got %+v", stats)
	}
}

func TestSnapshotTokenStableAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	s, err := Init(ctx, path, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	_, err = s.db.ExecContext(ctx, "INSERT INTO doc(id, path, mtime, hash) VALUES ('d1', 'a.md', 't1', 'h1')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := s.SnapshotToken(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := s.SnapshotToken(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected stable snapshot token across reads with no writes, got %q != %q", a, b)
	}
}

func TestCheckConsistencyOnFreshStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.db")
	ctx := context.Background()

	s, err := Init(ctx, path, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	report, err := s.CheckConsistency(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.FTSOK || !report.ANNOK || !report.HNSWOK {
		t.Fatalf("expected a fresh empty store to be consistent, got %+v", report)
	}
}
