// Package store owns the single SQLite file that holds every document,
// chunk, full-text index, and ANN structure for one corpus.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	recallerrors "github.com/recall-db/recall/internal/errors"
)

// Mode selects the kind of file lock a caller needs for the lifetime of
// the open store.
type Mode int

const (
	// ModeRead takes a shared lock; any number of readers may hold it.
	ModeRead Mode = iota
	// ModeWrite takes an exclusive lock; only one writer may hold it.
	ModeWrite
)

// Store wraps the single SQLite database file plus the cross-process lock
// that serializes access to it.
type Store struct {
	db   *sql.DB
	lock *Lock
	path string
	mode Mode
}

// Init creates a new store file at path with a fresh schema. It is an
// error for a file to already exist there.
func Init(ctx context.Context, path string, embeddingDim int) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, recallerrors.InvalidArgument(fmt.Sprintf("store already exists at %s", path))
	}
	s, err := Open(ctx, path, ModeWrite)
	if err != nil {
		return nil, err
	}
	if err := s.createSchema(ctx, embeddingDim); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Open locks and opens the store at path in the given mode and applies
// pragmas. It neither checks for nor creates the schema; Init does the
// creating.
func Open(ctx context.Context, path string, mode Mode) (*Store, error) {
	lock := NewLock(path)
	var lockErr error
	if mode == ModeWrite {
		lockErr = lock.AcquireExclusive(ctx)
	} else {
		lockErr = lock.AcquireShared(ctx)
	}
	if lockErr != nil {
		return nil, lockErr
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		lock.Release()
		return nil, recallerrors.IO("failed to open store file", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, lock: lock, path: path, mode: mode}
	if err := s.applyPragmas(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// journal_mode=DELETE (not WAL): concurrency here is governed entirely by
// the sidecar file lock, one writer/many readers, never a WAL reader
// racing a checkpoint.
func (s *Store) applyPragmas(ctx context.Context) error {
	stmts := []string{
		"PRAGMA journal_mode=DELETE",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return recallerrors.IO("failed to apply pragma: "+stmt, err)
		}
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context, embeddingDim int) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return recallerrors.IO("failed to create schema", err)
	}
	for k, v := range metaDefaults(embeddingDim) {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR REPLACE INTO meta(key, value) VALUES (?, ?)", k, v); err != nil {
			return recallerrors.IO("failed to seed meta", err)
		}
	}
	return nil
}

// DB exposes the underlying connection for packages that build their own
// queries against it (retrieve, ingest, transfer).
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle and the file lock.
func (s *Store) Close() error {
	var dbErr error
	if s.db != nil {
		dbErr = s.db.Close()
	}
	lockErr := s.lock.Release()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

// MetaValue reads one key from the meta table.
func (s *Store) MetaValue(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, recallerrors.IO("failed to read meta", err)
	}
	return v, true, nil
}

// EmbeddingDim returns the embedding dimension recorded when the store was
// created.
func (s *Store) EmbeddingDim(ctx context.Context) (int, error) {
	v, ok, err := s.MetaValue(ctx, "embedding_dim")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, recallerrors.SchemaVersion("store has no recorded embedding dimension")
	}
	dim, convErr := strconv.Atoi(v)
	if convErr != nil {
		return 0, recallerrors.SchemaVersion("store has a malformed embedding dimension")
	}
	return dim, nil
}

// MarkDocDeleted tombstones every live doc row at path (there should be at
// most one, but ingestion is defensive about stale duplicates), along with
// its chunks.
func (s *Store) MarkDocDeleted(ctx context.Context, path string) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM doc WHERE path = ? AND deleted = 0", path)
	if err != nil {
		return recallerrors.IO("failed to look up doc by path", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return recallerrors.IO("failed to scan doc id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if err := s.MarkDocDeletedByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// MarkDocDeletedByID tombstones one doc row and all of its chunks.
func (s *Store) MarkDocDeletedByID(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE doc SET deleted = 1 WHERE id = ?", docID); err != nil {
		return recallerrors.IO("failed to tombstone doc", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE chunk SET deleted = 1 WHERE doc_id = ?", docID); err != nil {
		return recallerrors.IO("failed to tombstone doc chunks", err)
	}
	return nil
}

// PurgeDeleted physically removes tombstoned rows, used by compact.
func (s *Store) PurgeDeleted(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ann_lsh WHERE chunk_id IN (SELECT id FROM chunk WHERE deleted = 1)"); err != nil {
		return recallerrors.IO("failed to purge ann_lsh", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ann_hnsw WHERE chunk_id IN (SELECT id FROM chunk WHERE deleted = 1)"); err != nil {
		return recallerrors.IO("failed to purge ann_hnsw", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunk WHERE deleted = 1"); err != nil {
		return recallerrors.IO("failed to purge chunks", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM doc WHERE deleted = 1"); err != nil {
		return recallerrors.IO("failed to purge docs", err)
	}
	return nil
}

// RebuildFTS rebuilds the chunk_fts virtual table from the live chunk
// rows. Idempotent, and usable independently of Compact (e.g. from
// doctor --fix) when consistency_report finds chunk_fts out of sync with
// the live chunk set for a reason other than tombstoning.
func (s *Store) RebuildFTS(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO chunk_fts(chunk_fts) VALUES ('rebuild')"); err != nil {
		return recallerrors.IO("failed to rebuild fts index", err)
	}
	return nil
}

// Compact purges tombstoned rows, rebuilds the FTS index, and runs VACUUM.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.PurgeDeleted(ctx); err != nil {
		return err
	}
	if err := s.RebuildFTS(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return recallerrors.IO("failed to vacuum", err)
	}
	return nil
}
