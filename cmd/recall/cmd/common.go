package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/config"
	"github.com/recall-db/recall/internal/embed"
	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/model"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/retrieve"
	"github.com/recall-db/recall/internal/rql"
	"github.com/recall-db/recall/internal/store"
)

// resolveCtx resolves a config.Ctx, honoring the --store override if set.
func resolveCtx() (config.Ctx, error) {
	if globalFlags.store == "" {
		return config.LoadFromCwd()
	}
	abs, err := filepath.Abs(globalFlags.store)
	if err != nil {
		return config.Ctx{}, recallerrors.IO("resolve --store path", err)
	}
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return config.Ctx{}, err
	}
	cfg.StorePath = abs
	return config.Ctx{Root: filepath.Dir(abs), Config: cfg}, nil
}

func openStore(ctx context.Context, c config.Ctx, mode store.Mode) (*store.Store, error) {
	if _, err := os.Stat(c.StorePath()); err != nil {
		return nil, recallerrors.StoreNotFound(c.StorePath()).WithHint("run `recall init` first")
	}
	return store.Open(ctx, c.StorePath(), mode)
}

// newOutputWriter builds an output.Writer from the global/local flag state.
func newOutputWriter(cmd *cobra.Command, jsonlOut bool) *output.Writer {
	return output.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), globalFlags.jsonOut, jsonlOut)
}

// loadExpr resolves a filter/RQL expression: a leading "@" denotes a file
// path whose contents are the expression, per spec.md §6.
func loadExpr(raw string) (string, error) {
	if !strings.HasPrefix(raw, "@") {
		return raw, nil
	}
	path := raw[1:]
	data, err := os.ReadFile(path)
	if err != nil {
		return "", recallerrors.IO("read expression file "+path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// retrieveOptions builds retrieve.Options from a resolved config and an
// already-open store/embedder pair.
func retrieveOptions(c config.Ctx, s *store.Store, embedder embed.Embedder) retrieve.Options {
	return retrieve.Options{
		Store:        s,
		Embedder:     embedder,
		BM25Weight:   c.Config.BM25Weight,
		VectorWeight: c.Config.VectorWeight,
		AnnBackend:   retrieve.AnnBackend(strings.ToLower(c.Config.AnnBackend)),
		AnnBits:      c.Config.AnnBits,
		AnnSeed:      c.Config.AnnSeed,
		MaxLimit:     c.Config.MaxLimit,
		LexicalMode:  "fts5",
	}
}

// resultRow renders one scored item as a label->value map, used whenever a
// command isn't projecting an explicit RQL SELECT list.
func resultRow(item model.ScoredItem) map[string]any {
	row := map[string]any{
		"score":     item.Score,
		"doc.id":    item.Doc.ID,
		"doc.path":  item.Doc.Path,
		"doc.mtime": item.Doc.MTime,
		"doc.size":  item.Doc.Size,
		"doc.hash":  item.Doc.Hash,
	}
	if item.Doc.HasTag {
		row["doc.tag"] = item.Doc.Tag
	}
	if item.Doc.HasSrc {
		row["doc.source"] = item.Doc.Source
	}
	if item.Chunk != nil {
		row["chunk.id"] = item.Chunk.ID
		row["chunk.offset"] = item.Chunk.Offset
		row["chunk.tokens"] = item.Chunk.Tokens
		row["chunk.text"] = item.Chunk.Text
	}
	return row
}

// resolveSnapshot picks the pin token for a read command: the user's
// explicit --snapshot value, or max(doc.mtime) over the live corpus when
// none was given (per spec.md's default-pin rule). ok is false for an
// empty corpus with no explicit token, meaning no pin applies.
func resolveSnapshot(ctx context.Context, s *store.Store, explicit string) (string, bool, error) {
	if explicit != "" {
		return explicit, true, nil
	}
	return s.MaxDocMTime(ctx)
}

// buildFilter combines an optional user filter expression with an optional
// snapshot pin into one parsed rql.FilterExpr. The pin is expressed as a
// synthetic "doc.mtime <= '<token>'" clause ANDed onto the user's filter,
// since neither Engine nor Inputs has native snapshot support.
func buildFilter(filterExpr string, hasFilter bool, snapshot string, hasSnapshot bool) (*rql.FilterExpr, error) {
	if !hasFilter && !hasSnapshot {
		return nil, nil
	}
	clause := filterExpr
	if hasSnapshot {
		pin := fmt.Sprintf("doc.mtime <= '%s'", snapshot)
		if hasFilter {
			clause = fmt.Sprintf("(%s) AND %s", filterExpr, pin)
		} else {
			clause = pin
		}
	}
	return rql.ParseFilter(clause)
}

// andFilters combines two optional filter trees, returning whichever one
// is non-nil unchanged if only one is present.
func andFilters(a, b *rql.FilterExpr) *rql.FilterExpr {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return &rql.FilterExpr{Kind: rql.ExprAnd, Left: a, Right: b}
	}
}

// projectItems renders a result set according to an RQL select list, or
// resultRow's default projection for SELECT * (or when fields is empty, as
// with plain search/context calls that never went through the parser).
func projectItems(items []model.ScoredItem, fields []model.SelectField) []map[string]any {
	selectAll := len(fields) == 0
	for _, f := range fields {
		if f.Kind == model.SelectAll {
			selectAll = true
		}
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if selectAll {
			out = append(out, resultRow(item))
			continue
		}
		out = append(out, retrieve.ProjectFields(item, fields))
	}
	return out
}
