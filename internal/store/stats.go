package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/recall-db/recall/internal/model"
)

// CorpusStats reports live-row totals across the store.
func (s *Store) CorpusStats(ctx context.Context) (model.CorpusStats, error) {
	var stats model.CorpusStats
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doc WHERE deleted = 0")
	if err := row.Scan(&stats.Docs); err != nil {
		return stats, fmt.Errorf("count docs: %w", err)
	}
	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(tokens),0), COALESCE(SUM(LENGTH(text)),0) FROM chunk WHERE deleted = 0")
	if err := row.Scan(&stats.Chunks, &stats.Tokens, &stats.Bytes); err != nil {
		return stats, fmt.Errorf("count chunks: %w", err)
	}
	return stats, nil
}

// MaxDocMTime returns the latest mtime among live docs, used as the
// default snapshot pin when a query supplies no --snapshot token. ok is
// false for an empty corpus.
func (s *Store) MaxDocMTime(ctx context.Context) (string, bool, error) {
	var mtime sql.NullString
	row := s.db.QueryRowContext(ctx, "SELECT MAX(mtime) FROM doc WHERE deleted = 0")
	if err := row.Scan(&mtime); err != nil {
		return "", false, fmt.Errorf("max doc mtime: %w", err)
	}
	return mtime.String, mtime.Valid, nil
}

// DBSizeBytes returns the on-disk file size of the store.
func (s *Store) DBSizeBytes() (uint64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

// SnapshotToken is a short fingerprint of the live docs' ids and hashes:
// two calls in a row with no writes between them return the same token. It
// is not a timestamp and not a --snapshot pin value (MaxDocMTime gives
// that). Tombstoned rows are
// excluded, matching the live-row semantics used everywhere else.
func (s *Store) SnapshotToken(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, hash FROM doc WHERE deleted = 0 ORDER BY id")
	if err != nil {
		return "", fmt.Errorf("snapshot scan: %w", err)
	}
	defer rows.Close()

	h := sha256.New()
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return "", fmt.Errorf("snapshot scan: %w", err)
		}
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(hash))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

// ConsistencyReport summarizes whether the FTS and ANN side structures
// agree with the live chunk set, used by doctor.
type ConsistencyReport struct {
	FTSOK  bool
	ANNOK  bool
	HNSWOK bool
	Issues []string
}

// CheckConsistency compares chunk_fts, ann_lsh, and ann_hnsw row counts
// against the live chunk count.
func (s *Store) CheckConsistency(ctx context.Context) (ConsistencyReport, error) {
	var report ConsistencyReport

	var liveChunks, ftsRows, lshRows int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk WHERE deleted = 0").Scan(&liveChunks); err != nil {
		return report, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunk_fts").Scan(&ftsRows); err != nil {
		return report, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT chunk_id) FROM ann_lsh").Scan(&lshRows); err != nil {
		return report, err
	}

	report.FTSOK = ftsRows == liveChunks
	if !report.FTSOK {
		report.Issues = append(report.Issues, fmt.Sprintf("chunk_fts has %d rows, expected %d", ftsRows, liveChunks))
	}
	report.ANNOK = lshRows == liveChunks
	if !report.ANNOK {
		report.Issues = append(report.Issues, fmt.Sprintf("ann_lsh covers %d chunks, expected %d", lshRows, liveChunks))
	}

	var hnswRows int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ann_hnsw").Scan(&hnswRows); err != nil {
		return report, err
	}
	report.HNSWOK = hnswRows == 0 || hnswRows == liveChunks
	if !report.HNSWOK {
		report.Issues = append(report.Issues, fmt.Sprintf("ann_hnsw covers %d chunks, expected 0 or %d", hnswRows, liveChunks))
	}

	sort.Strings(report.Issues)
	return report, nil
}

// IntegrityCheck runs SQLite's own PRAGMA integrity_check.
func (s *Store) IntegrityCheck(ctx context.Context) (string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "; "), nil
}
