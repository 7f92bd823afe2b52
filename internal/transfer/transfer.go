// Package transfer implements NDJSON export/import of a store's live
// documents and chunks, for moving a corpus between machines without
// re-ingesting or re-embedding.
package transfer

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/store"
)

// Stats reports how many doc/chunk lines an export or import touched.
type Stats struct {
	Docs   int
	Chunks int
}

type docLine struct {
	Type   string  `json:"type"`
	ID     string  `json:"id"`
	Path   string  `json:"path"`
	MTime  string  `json:"mtime"`
	Size   int64   `json:"size"`
	Hash   string  `json:"hash"`
	Tag    *string `json:"tag,omitempty"`
	Source *string `json:"source,omitempty"`
	Meta   *string `json:"meta,omitempty"`
}

type chunkLine struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	DocID     string `json:"doc_id"`
	Offset    int64  `json:"offset"`
	Tokens    int64  `json:"tokens"`
	Text      string `json:"text"`
	Embedding string `json:"embedding"`
}

// Export writes every live doc row followed by every live chunk row to w,
// one JSON object per line. Docs are written before chunks so a streaming
// importer can always resolve doc_id foreign keys on first pass.
func Export(ctx context.Context, s *store.Store, w io.Writer) (Stats, error) {
	var stats Stats
	bw := bufio.NewWriter(w)

	docRows, err := s.DB().QueryContext(ctx,
		"SELECT id, path, mtime, size, hash, tag, source, meta FROM doc WHERE deleted = 0")
	if err != nil {
		return stats, recallerrors.IO("query docs for export", err)
	}
	for docRows.Next() {
		var line docLine
		line.Type = "doc"
		var tag, source, meta sql.NullString
		if err := docRows.Scan(&line.ID, &line.Path, &line.MTime, &line.Size, &line.Hash, &tag, &source, &meta); err != nil {
			docRows.Close()
			return stats, recallerrors.IO("scan doc row", err)
		}
		if tag.Valid {
			line.Tag = &tag.String
		}
		if source.Valid {
			line.Source = &source.String
		}
		if meta.Valid {
			line.Meta = &meta.String
		}
		if err := writeJSONLine(bw, line); err != nil {
			docRows.Close()
			return stats, err
		}
		stats.Docs++
	}
	if err := docRows.Err(); err != nil {
		docRows.Close()
		return stats, recallerrors.IO("iterate doc rows", err)
	}
	docRows.Close()

	chunkRows, err := s.DB().QueryContext(ctx,
		"SELECT id, doc_id, offset, tokens, text, embedding FROM chunk WHERE deleted = 0")
	if err != nil {
		return stats, recallerrors.IO("query chunks for export", err)
	}
	defer chunkRows.Close()
	for chunkRows.Next() {
		var line chunkLine
		line.Type = "chunk"
		var embedding []byte
		if err := chunkRows.Scan(&line.ID, &line.DocID, &line.Offset, &line.Tokens, &line.Text, &embedding); err != nil {
			return stats, recallerrors.IO("scan chunk row", err)
		}
		line.Embedding = base64.StdEncoding.EncodeToString(embedding)
		if err := writeJSONLine(bw, line); err != nil {
			return stats, err
		}
		stats.Chunks++
	}
	if err := chunkRows.Err(); err != nil {
		return stats, recallerrors.IO("iterate chunk rows", err)
	}

	if err := bw.Flush(); err != nil {
		return stats, recallerrors.IO("flush export writer", err)
	}
	return stats, nil
}

func writeJSONLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return recallerrors.Internal("marshal export line", err)
	}
	if _, err := w.Write(b); err != nil {
		return recallerrors.IO("write export line", err)
	}
	_, err = w.Write([]byte("\n"))
	if err != nil {
		return recallerrors.IO("write export line terminator", err)
	}
	return nil
}

// Import reads NDJSON doc/chunk lines from r and upserts them into s inside
// one transaction, rolling back entirely on any parse or write failure. On
// success it rebuilds the LSH index, since imported embeddings have no
// signatures yet.
func Import(ctx context.Context, s *store.Store, r io.Reader, annBits uint8, annSeed uint64) (Stats, error) {
	var stats Stats

	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		return stats, recallerrors.IO("begin import transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(raw), &probe); err != nil {
			return stats, recallerrors.ImportFormat(fmt.Sprintf("line %d: invalid JSON", lineNo), err)
		}

		switch probe.Type {
		case "doc":
			var line docLine
			if err := json.Unmarshal([]byte(raw), &line); err != nil {
				return stats, recallerrors.ImportFormat(fmt.Sprintf("line %d: invalid doc line", lineNo), err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO doc (id, path, mtime, size, hash, tag, source, meta, deleted)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
				 ON CONFLICT(id) DO UPDATE SET
				   path=excluded.path, mtime=excluded.mtime, size=excluded.size, hash=excluded.hash,
				   tag=excluded.tag, source=excluded.source, meta=excluded.meta, deleted=0`,
				line.ID, line.Path, line.MTime, line.Size, line.Hash, nullable(line.Tag), nullable(line.Source), nullable(line.Meta),
			); err != nil {
				return stats, recallerrors.IO(fmt.Sprintf("line %d: write doc", lineNo), err)
			}
			stats.Docs++
		case "chunk":
			var line chunkLine
			if err := json.Unmarshal([]byte(raw), &line); err != nil {
				return stats, recallerrors.ImportFormat(fmt.Sprintf("line %d: invalid chunk line", lineNo), err)
			}
			embedding, err := base64.StdEncoding.DecodeString(line.Embedding)
			if err != nil {
				return stats, recallerrors.ImportFormat(fmt.Sprintf("line %d: invalid embedding base64", lineNo), err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk (id, doc_id, offset, tokens, text, embedding, deleted)
				 VALUES (?, ?, ?, ?, ?, ?, 0)
				 ON CONFLICT(id) DO UPDATE SET
				   doc_id=excluded.doc_id, offset=excluded.offset, tokens=excluded.tokens,
				   text=excluded.text, embedding=excluded.embedding, deleted=0`,
				line.ID, line.DocID, line.Offset, line.Tokens, line.Text, embedding,
			); err != nil {
				return stats, recallerrors.IO(fmt.Sprintf("line %d: write chunk", lineNo), err)
			}
			stats.Chunks++
		default:
			return stats, recallerrors.ImportFormat(fmt.Sprintf("line %d: unknown line type %q", lineNo, probe.Type), nil)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, recallerrors.IO("read import stream", err)
	}

	if err := tx.Commit(); err != nil {
		return stats, recallerrors.IO("commit import transaction", err)
	}
	committed = true

	if err := s.RebuildAnnLSH(ctx, annBits, annSeed); err != nil {
		return stats, err
	}
	if err := s.RebuildAnnHNSW(ctx); err != nil {
		return stats, err
	}

	return stats, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
