package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recall-db/recall/internal/config"
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

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ChunkTokens = 4
	cfg.OverlapTokens = 1
	cfg.EmbeddingDim = 8
	return cfg
}

func TestIngestPathsAddsDocsAndChunks(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("one two three four five six seven eight"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := newTestStore(t, 8)
	report, err := IngestPaths(context.Background(), s, testConfig(), []string{dir}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocsAdded != 1 {
		t.Fatalf("expected 1 doc, got %d", report.DocsAdded)
	}
	if report.ChunksAdded == 0 {
		t.Fatalf("expected at least one chunk")
	}

	var lshCount int
	if err := s.DB().QueryRowContext(context.Background(), "SELECT COUNT(*) FROM ann_lsh").Scan(&lshCount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lshCount != report.ChunksAdded {
		t.Fatalf("expected ann_lsh rebuilt for every chunk, got %d vs %d", lshCount, report.ChunksAdded)
	}
}

func TestIngestPathsSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bin.dat"), []byte{0x00, 0x01, 0x02, 'a', 'b'}, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := newTestStore(t, 8)
	report, err := IngestPaths(context.Background(), s, testConfig(), []string{dir}, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocsAdded != 0 {
		t.Fatalf("expected binary file to be skipped, got %d docs", report.DocsAdded)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("expected a skip warning, got %v", report.Warnings)
	}
}

func TestIngestPathsRespectsIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "keep.md"), []byte("alpha beta"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.log"), []byte("gamma delta"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := newTestStore(t, 8)
	report, err := IngestPaths(context.Background(), s, testConfig(), []string{dir}, Options{Ignore: []string{"*.log"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocsAdded != 1 {
		t.Fatalf("expected 1 doc after ignoring *.log, got %d", report.DocsAdded)
	}
}

func TestIngestPathsExtractsFrontMatter(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: Hello\ntags:\n  - a\n  - b\n---\none two three four five six\n"
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := newTestStore(t, 8)
	report, err := IngestPaths(context.Background(), s, testConfig(), []string{dir}, Options{ExtractMeta: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocsAdded != 1 {
		t.Fatalf("expected 1 doc, got %d", report.DocsAdded)
	}

	var meta sql.NullString
	if err := s.DB().QueryRowContext(context.Background(), "SELECT meta FROM doc WHERE deleted = 0").Scan(&meta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !meta.Valid || !strings.Contains(meta.String, "Hello") {
		t.Fatalf("expected front matter title in doc.meta, got %q", meta.String)
	}

	var chunkText string
	if err := s.DB().QueryRowContext(context.Background(), "SELECT text FROM chunk LIMIT 1").Scan(&chunkText); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(chunkText, "title:") {
		t.Fatalf("expected front matter stripped from chunk text, got %q", chunkText)
	}
}

func TestIngestPathsMTimeOnlySkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	if err := os.WriteFile(path, []byte("alpha beta gamma"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := newTestStore(t, 8)
	cfg := testConfig()
	if _, err := IngestPaths(context.Background(), s, cfg, []string{dir}, Options{MTimeOnly: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err := IngestPaths(context.Background(), s, cfg, []string{dir}, Options{MTimeOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.DocsAdded != 0 {
		t.Fatalf("expected second ingest to skip unchanged file, got %d docs", report.DocsAdded)
	}
}
