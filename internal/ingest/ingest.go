// Package ingest walks filesystem paths, splits files into overlapping
// token windows, embeds each window, and writes the resulting docs and
// chunks into a store.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/recall-db/recall/internal/ann"
	"github.com/recall-db/recall/internal/config"
	"github.com/recall-db/recall/internal/embed"
	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/gitignore"
	"github.com/recall-db/recall/internal/store"
	"gopkg.in/yaml.v3"
)

// Parser selects how a file's content type is determined for metadata
// purposes; it does not change chunking, only what extract_meta records.
type Parser string

const (
	ParserAuto     Parser = "auto"
	ParserPlain    Parser = "plain"
	ParserMarkdown Parser = "markdown"
	ParserCode     Parser = "code"
)

// Options configures one IngestPaths call.
type Options struct {
	Glob        string // optional include pattern; empty matches everything
	Tag         string
	HasTag      bool
	Source      string
	HasSource   bool
	MTimeOnly   bool // skip re-ingesting a path whose mtime is unchanged
	Ignore      []string
	Parser      Parser // defaults to ParserAuto
	ExtractMeta bool   // parse a markdown front-matter block into doc.meta
}

// Report summarizes the result of an ingest run.
type Report struct {
	DocsAdded   int
	ChunksAdded int
	Warnings    []string
}

// IngestPaths walks paths (files ingested directly, directories recursively)
// and ingests every file that passes the include/ignore filters.
func IngestPaths(ctx context.Context, s *store.Store, cfg config.Config, paths []string, opts Options) (Report, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	ignoreMatcher := gitignore.New()
	for _, pat := range opts.Ignore {
		ignoreMatcher.AddPattern(pat)
	}
	var includeMatcher *gitignore.Matcher
	if opts.Glob != "" {
		includeMatcher = gitignore.New()
		includeMatcher.AddPattern(opts.Glob)
	}

	embedder, err := embed.Build(cfg.Embedding, cfg.EmbeddingDim)
	if err != nil {
		return Report{}, err
	}

	report := Report{}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return report, recallerrors.IO("stat "+root, err)
		}
		if !info.IsDir() {
			if err := ingestFile(ctx, s, cfg, embedder, root, includeMatcher, ignoreMatcher, opts, &report); err != nil {
				return report, err
			}
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			return ingestFile(ctx, s, cfg, embedder, path, includeMatcher, ignoreMatcher, opts, &report)
		})
		if err != nil {
			return report, recallerrors.IO("walk "+root, err)
		}
	}

	if report.ChunksAdded > 0 {
		if err := s.RebuildAnnLSH(ctx, cfg.AnnBits, cfg.AnnSeed); err != nil {
			return report, err
		}
		if err := s.RebuildAnnHNSW(ctx); err != nil {
			return report, err
		}
	}

	return report, nil
}

func ingestFile(
	ctx context.Context,
	s *store.Store,
	cfg config.Config,
	embedder embed.Embedder,
	path string,
	includeMatcher, ignoreMatcher *gitignore.Matcher,
	opts Options,
	report *Report,
) error {
	if ignoreMatcher.Match(path, false) {
		return nil
	}
	if includeMatcher != nil && !includeMatcher.Match(path, false) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return recallerrors.IO("stat "+path, err)
	}
	mtime := info.ModTime().UTC().Format(time.RFC3339)

	if opts.MTimeOnly {
		var existing string
		err := s.DB().QueryRowContext(ctx,
			"SELECT mtime FROM doc WHERE path = ? AND deleted = 0 ORDER BY rowid DESC LIMIT 1", path,
		).Scan(&existing)
		if err == nil && existing == mtime {
			return nil
		}
		if err != nil && err != sql.ErrNoRows {
			return recallerrors.IO("check existing mtime for "+path, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		report.Warnings = append(report.Warnings, "skip unreadable file: "+path)
		return nil
	}
	if !isLikelyText(raw) {
		report.Warnings = append(report.Warnings, "skip non-text file: "+path)
		return nil
	}
	text := string(raw)

	contentHash := sha256Hex([]byte(text))
	docID := sha256Hex([]byte(path + "\x00" + contentHash))

	if err := s.MarkDocDeleted(ctx, path); err != nil {
		return err
	}

	var tag, source any
	if opts.HasTag {
		tag = opts.Tag
	}
	if opts.HasSource {
		source = opts.Source
	}

	parser := opts.Parser
	if parser == "" {
		parser = ParserAuto
	}
	if parser == ParserAuto {
		parser = detectParser(path)
	}

	body := text
	var meta any
	if opts.ExtractMeta && parser == ParserMarkdown {
		fm, rest, ok := splitFrontMatter(text)
		if ok {
			if encoded, err := json.Marshal(fm); err == nil {
				meta = string(encoded)
			}
			body = rest
		}
	}

	if _, err := s.DB().ExecContext(ctx,
		"INSERT INTO doc (id, path, mtime, size, hash, tag, source, meta, deleted) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)",
		docID, path, mtime, info.Size(), contentHash, tag, source, meta,
	); err != nil {
		return recallerrors.IO("insert doc "+path, err)
	}
	report.DocsAdded++

	tokens := strings.Fields(body)
	chunkSize := cfg.ChunkTokens
	if chunkSize < 1 {
		chunkSize = 1
	}
	overlap := cfg.OverlapTokens
	if overlap >= chunkSize {
		overlap = 0
	}

	for start := 0; start < len(tokens); {
		end := start + chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}
		chunkTokens := tokens[start:end]
		chunkText := strings.Join(chunkTokens, " ")
		chunkID := sha256Hex([]byte(docID + ":" + strconv.Itoa(start)))

		vec, err := embedder.Embed(ctx, chunkText)
		if err != nil {
			return err
		}
		embeddingBytes := embed.ToBytes(vec)
		sig := ann.Signature(vec, cfg.AnnBits, cfg.AnnSeed)

		if _, err := s.DB().ExecContext(ctx,
			"INSERT INTO chunk (id, doc_id, offset, tokens, text, embedding, deleted) VALUES (?, ?, ?, ?, ?, ?, 0)",
			chunkID, docID, start, end-start, chunkText, embeddingBytes,
		); err != nil {
			return recallerrors.IO("insert chunk for "+path, err)
		}
		if _, err := s.DB().ExecContext(ctx,
			"INSERT INTO ann_lsh (chunk_id, signature) VALUES (?, ?)", chunkID, sig,
		); err != nil {
			return recallerrors.IO("insert ann_lsh row for "+path, err)
		}
		report.ChunksAdded++

		if end == len(tokens) {
			break
		}
		start = end - overlap
	}

	return nil
}

// isLikelyText rejects files containing a NUL byte in their first 8KiB, the
// same heuristic used to skip binaries without a full charset detector.
func isLikelyText(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return false
		}
	}
	return true
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".rs": true, ".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".rb": true, ".php": true, ".sh": true, ".sql": true, ".yaml": true, ".yml": true,
	".json": true, ".toml": true,
}

// detectParser classifies a path by extension for --parser auto, used to
// decide whether extract_meta's front-matter parsing applies.
func detectParser(path string) Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return ParserMarkdown
	default:
		if codeExtensions[strings.ToLower(filepath.Ext(path))] {
			return ParserCode
		}
		return ParserPlain
	}
}

// splitFrontMatter extracts a leading "---\n...\n---\n" YAML block, returning
// it decoded as a map plus the remaining body text. ok is false when no
// front-matter block is present, in which case body is the original text.
func splitFrontMatter(text string) (meta map[string]any, body string, ok bool) {
	const delim = "---"
	if !strings.HasPrefix(text, delim) {
		return nil, text, false
	}
	rest := text[len(delim):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return nil, text, false
	}
	block := rest[:end]
	after := rest[end+1+len(delim):]
	after = strings.TrimPrefix(after, "\r\n")
	after = strings.TrimPrefix(after, "\n")

	var decoded map[string]any
	if err := yaml.Unmarshal([]byte(block), &decoded); err != nil {
		return nil, text, false
	}
	return decoded, after, true
}
