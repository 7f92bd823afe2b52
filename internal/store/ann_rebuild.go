package store

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/recall-db/recall/internal/ann"
	"github.com/recall-db/recall/internal/embed"
	recallerrors "github.com/recall-db/recall/internal/errors"
)

// RebuildAnnLSH recomputes every live chunk's LSH signature from its
// stored embedding and reinserts the ann_lsh table from scratch. Used
// after import and by doctor --fix.
func (s *Store) RebuildAnnLSH(ctx context.Context, bits uint8, seed uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return recallerrors.IO("failed to begin ann_lsh rebuild", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ann_lsh"); err != nil {
		return recallerrors.IO("failed to clear ann_lsh", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id, embedding FROM chunk WHERE deleted = 0")
	if err != nil {
		return recallerrors.IO("failed to scan chunks for ann_lsh rebuild", err)
	}
	type pair struct {
		id  string
		sig uint64
	}
	var pairs []pair
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return recallerrors.IO("failed to scan chunk embedding", err)
		}
		vec := embed.FromBytes(blob)
		pairs = append(pairs, pair{id: id, sig: ann.Signature(vec, bits, seed)})
	}
	rows.Close()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO ann_lsh(chunk_id, signature) VALUES (?, ?)")
	if err != nil {
		return recallerrors.IO("failed to prepare ann_lsh insert", err)
	}
	defer stmt.Close()
	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, p.id, p.sig); err != nil {
			return recallerrors.IO("failed to insert ann_lsh row", err)
		}
	}

	return tx.Commit()
}

// hnswNeighbor is one entry of a chunk's stored neighbor list.
type hnswNeighbor struct {
	ChunkID string  `json:"chunk_id"`
	Score   float32 `json:"score"`
}

const hnswTopM = 8

// RebuildAnnHNSW does a full batch rebuild of the flat top-M neighbor
// table: for every live chunk, score it against every other live chunk by
// cosine similarity and keep the top hnswTopM. There is no incremental
// insertion; a single ingest triggers a full rebuild, same as LSH.
func (s *Store) RebuildAnnHNSW(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding FROM chunk WHERE deleted = 0")
	if err != nil {
		return recallerrors.IO("failed to scan chunks for ann_hnsw rebuild", err)
	}
	type entry struct {
		id  string
		vec []float32
	}
	var entries []entry
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			rows.Close()
			return recallerrors.IO("failed to scan chunk embedding", err)
		}
		entries = append(entries, entry{id: id, vec: embed.FromBytes(blob)})
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return recallerrors.IO("failed to begin ann_hnsw rebuild", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM ann_hnsw"); err != nil {
		return recallerrors.IO("failed to clear ann_hnsw", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO ann_hnsw(chunk_id, neighbors) VALUES (?, ?)")
	if err != nil {
		return recallerrors.IO("failed to prepare ann_hnsw insert", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		neighbors := make([]hnswNeighbor, 0, len(entries)-1)
		for _, other := range entries {
			if other.id == e.id {
				continue
			}
			neighbors = append(neighbors, hnswNeighbor{
				ChunkID: other.id,
				Score:   embed.CosineSimilarity(e.vec, other.vec),
			})
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Score > neighbors[j].Score })
		if len(neighbors) > hnswTopM {
			neighbors = neighbors[:hnswTopM]
		}
		blob, err := json.Marshal(neighbors)
		if err != nil {
			return recallerrors.Internal("failed to marshal neighbor list", err)
		}
		if _, err := stmt.ExecContext(ctx, e.id, string(blob)); err != nil {
			return recallerrors.IO("failed to insert ann_hnsw row", err)
		}
	}

	return tx.Commit()
}

// HNSWNeighbors reads the stored neighbor list for a chunk, or nil if it
// has none (not yet indexed, or the hnsw backend isn't in use).
func (s *Store) HNSWNeighbors(ctx context.Context, chunkID string) ([]hnswNeighbor, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, "SELECT neighbors FROM ann_hnsw WHERE chunk_id = ?", chunkID).Scan(&blob)
	if err != nil {
		return nil, nil
	}
	var neighbors []hnswNeighbor
	if err := json.Unmarshal([]byte(blob), &neighbors); err != nil {
		return nil, recallerrors.Internal("failed to unmarshal neighbor list", err)
	}
	return neighbors, nil
}
