package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	recallcontext "github.com/recall-db/recall/internal/context"
	"github.com/recall-db/recall/internal/embed"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/retrieve"
	"github.com/recall-db/recall/internal/store"
)

func newContextCmd() *cobra.Command {
	var (
		budgetTokens int
		diversity    int
		filterExpr   string
		snapshot     string
		lexicalMode  string
	)

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: "Assemble a token-budgeted context block from a hybrid search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			var diversityPtr *int
			if cmd.Flags().Changed("diversity") {
				diversityPtr = &diversity
			}
			return runContext(cmd, query, contextFlags{
				budgetTokens: budgetTokens, diversity: diversityPtr,
				filterExpr: filterExpr, hasFilter: cmd.Flags().Changed("filter"),
				snapshot: snapshot, hasSnapshot: cmd.Flags().Changed("snapshot"),
				lexicalMode: lexicalMode,
			})
		},
	}

	cmd.Flags().IntVar(&budgetTokens, "budget-tokens", 2000, "Maximum number of tokens to pack into the context")
	cmd.Flags().IntVar(&diversity, "diversity", 0, "Maximum chunks taken from any one document")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "RQL filter expression, or @file")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "RFC3339 snapshot token to pin doc.mtime against")
	cmd.Flags().StringVar(&lexicalMode, "lexical-mode", "fts5", "Lexical query mode: fts5 or literal")

	return cmd
}

type contextFlags struct {
	budgetTokens int
	diversity    *int
	filterExpr   string
	hasFilter    bool
	snapshot     string
	hasSnapshot  bool
	lexicalMode  string
}

func runContext(cmd *cobra.Command, query string, f contextFlags) error {
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

	opts := retrieveOptions(c, s, embedder)
	opts.LexicalMode = f.lexicalMode
	engine := retrieve.New(opts)

	in := retrieve.Inputs{
		Lexical:     query,
		HasLexical:  true,
		Semantic:    query,
		HasSemantic: true,
		Filter:      filter,
		K:           50,
	}
	result, err := engine.SearchChunks(cmd.Context(), in)
	if err != nil {
		return err
	}

	assembled := recallcontext.Assemble(result.Items, f.budgetTokens, f.diversity)

	sourceIDs := make([]string, len(assembled.Chunks))
	for i, chunk := range assembled.Chunks {
		sourceIDs[i] = chunk.ID
	}

	w := newOutputWriter(cmd, false)
	env := output.NewEnvelope()
	env.Query = query
	env.Context = &output.ContextOut{
		Text:       assembled.Text,
		ChunkCount: len(assembled.Chunks),
		TokenCount: assembled.UsedTokens,
		SourceIDs:  sourceIDs,
	}
	env.Warnings = append(env.Warnings, result.Warnings...)
	env.Stats["total_hits"] = len(result.Items)
	env.Stats["budget_tokens"] = f.budgetTokens
	return w.RenderEnvelope(env)
}
