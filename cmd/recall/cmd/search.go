package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/embed"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/retrieve"
	"github.com/recall-db/recall/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		k           int
		bm25Only    bool
		vectorOnly  bool
		filterExpr  string
		snapshot    string
		lexicalMode string
		explain     bool
		jsonlOut    bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid (or single-mode) search over the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, searchFlags{
				k: k, bm25Only: bm25Only, vectorOnly: vectorOnly,
				filterExpr: filterExpr, hasFilter: cmd.Flags().Changed("filter"),
				snapshot: snapshot, hasSnapshot: cmd.Flags().Changed("snapshot"),
				lexicalMode: lexicalMode, explain: explain, jsonlOut: jsonlOut,
			})
		},
	}

	cmd.Flags().IntVar(&k, "k", 8, "Number of results to return")
	cmd.Flags().BoolVar(&bm25Only, "bm25", false, "Lexical (BM25) search only")
	cmd.Flags().BoolVar(&vectorOnly, "vector", false, "Semantic (vector) search only")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "RQL filter expression, or @file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "RFC3339 snapshot token to pin doc.mtime against")
	cmd.Flags().StringVar(&lexicalMode, "lexical-mode", "fts5", "Lexical query mode: fts5 or literal")
	cmd.Flags().BoolVar(&explain, "explain", false, "Include an explain breakdown in the response")
	cmd.Flags().BoolVar(&jsonlOut, "jsonl", false, "Render one JSON object per result line")

	return cmd
}

type searchFlags struct {
	k                    int
	bm25Only, vectorOnly bool
	filterExpr           string
	hasFilter            bool
	snapshot             string
	hasSnapshot          bool
	lexicalMode          string
	explain              bool
	jsonlOut             bool
}

func runSearch(cmd *cobra.Command, query string, f searchFlags) error {
	c, err := resolveCtx()
	if err != nil {
		return err
	}
	s, err := openStore(cmd.Context(), c, store.ModeRead)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	embedder, err := embed.Build(c.Config.Embedding, c.Config.EmbeddingDim)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	filterText, err := loadExpr(f.filterExpr)
	if err != nil {
		return err
	}
	snapshotToken, hasSnapshot, err := resolveSnapshot(cmd.Context(), s, f.snapshot)
	if err != nil {
		return err
	}
	if f.hasSnapshot {
		hasSnapshot = true
	}
	filter, err := buildFilter(filterText, f.hasFilter, snapshotToken, hasSnapshot)
	if err != nil {
		return err
	}

	useLexical, useSemantic := true, true
	mode := "hybrid"
	switch {
	case f.bm25Only && !f.vectorOnly:
		useSemantic = false
		mode = "lexical"
	case f.vectorOnly && !f.bm25Only:
		useLexical = false
		mode = "semantic"
	}

	opts := retrieveOptions(c, s, embedder)
	opts.LexicalMode = f.lexicalMode
	engine := retrieve.New(opts)

	in := retrieve.Inputs{
		Lexical:     query,
		HasLexical:  useLexical,
		Semantic:    query,
		HasSemantic: useSemantic,
		Filter:      filter,
		K:           f.k,
	}
	result, err := engine.SearchChunks(cmd.Context(), in)
	if err != nil {
		return err
	}

	w := newOutputWriter(cmd, f.jsonlOut)
	env := output.NewEnvelope()
	env.Query = query
	env.Results = projectItems(result.Items, nil)
	env.Warnings = append(env.Warnings, result.Warnings...)
	env.Stats["total_hits"] = len(result.Items)
	if f.explain {
		env.Explain = buildExplain(mode, in, opts, result)
	}
	return w.RenderEnvelope(env)
}

// buildExplain reports the resolved search mode/config and, when a
// sanitization retry fired or literal mode changed the query, the lexical
// query that was actually run.
func buildExplain(mode string, in retrieve.Inputs, opts retrieve.Options, result retrieve.Result) map[string]any {
	explain := map[string]any{
		"mode": mode,
		"config": map[string]any{
			"bm25_weight":   opts.BM25Weight,
			"vector_weight": opts.VectorWeight,
			"ann_backend":   string(opts.AnnBackend),
			"ann_bits":      opts.AnnBits,
			"lexical_mode":  opts.LexicalMode,
		},
		"candidates": len(result.Items),
	}
	if in.HasLexical {
		lex := map[string]any{"query": in.Lexical, "sanitized_applied": false}
		const retryPrefix = "lexical query had invalid syntax; retried as: "
		const literalPrefix = "lexical query sanitized to: "
		for _, warn := range result.Warnings {
			for _, prefix := range []string{retryPrefix, literalPrefix} {
				if strings.HasPrefix(warn, prefix) {
					lex["sanitized_applied"] = true
					lex["sanitized"] = strings.TrimPrefix(warn, prefix)
				}
			}
		}
		explain["lexical"] = lex
	}
	return explain
}
