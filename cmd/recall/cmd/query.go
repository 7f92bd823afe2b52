package cmd

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/embed"
	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/retrieve"
	"github.com/recall-db/recall/internal/rql"
	"github.com/recall-db/recall/internal/store"
)

func newQueryCmd() *cobra.Command {
	var (
		rqlText     string
		rqlStdin    bool
		filterExpr  string
		snapshot    string
		lexicalMode string
		explain     bool
		jsonlOut    bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an RQL statement against the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			switch {
			case rqlStdin:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return recallerrors.IO("read RQL from stdin", err)
				}
				raw = strings.TrimSpace(string(data))
			case rqlText != "":
				resolved, err := loadExpr(rqlText)
				if err != nil {
					return err
				}
				raw = resolved
			default:
				return recallerrors.InvalidArgument("query requires --rql or --rql-stdin")
			}

			return runQuery(cmd, raw, queryFlags{
				filterExpr: filterExpr, hasFilter: cmd.Flags().Changed("filter"),
				snapshot: snapshot, hasSnapshot: cmd.Flags().Changed("snapshot"),
				lexicalMode: lexicalMode, explain: explain, jsonlOut: jsonlOut,
			})
		},
	}

	cmd.Flags().StringVar(&rqlText, "rql", "", "RQL statement text, or @file")
	cmd.Flags().BoolVar(&rqlStdin, "rql-stdin", false, "Read the RQL statement from stdin")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "Additional RQL filter expression, or @file, ANDed onto the query's own FILTER")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "RFC3339 snapshot token to pin doc.mtime against")
	cmd.Flags().StringVar(&lexicalMode, "lexical-mode", "fts5", "Lexical query mode: fts5 or literal")
	cmd.Flags().BoolVar(&explain, "explain", false, "Include an explain breakdown in the response")
	cmd.Flags().BoolVar(&jsonlOut, "jsonl", false, "Render one JSON object per result line")

	return cmd
}

type queryFlags struct {
	filterExpr  string
	hasFilter   bool
	snapshot    string
	hasSnapshot bool
	lexicalMode string
	explain     bool
	jsonlOut    bool
}

func runQuery(cmd *cobra.Command, raw string, f queryFlags) error {
	q, err := rql.Parse(raw)
	if err != nil {
		return err
	}

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
	extra, err := buildFilter(filterText, f.hasFilter, snapshotToken, hasSnapshot)
	if err != nil {
		return err
	}
	q.Filter = andFilters(q.Filter, extra)

	opts := retrieveOptions(c, s, embedder)
	opts.LexicalMode = f.lexicalMode
	engine := retrieve.New(opts)

	result, err := engine.RunRQL(cmd.Context(), q)
	if err != nil {
		return err
	}

	w := newOutputWriter(cmd, f.jsonlOut)
	env := output.NewEnvelope()
	env.Query = raw
	env.Results = projectItems(result.Items, q.Fields)
	env.Warnings = append(env.Warnings, result.Warnings...)
	env.Stats["total_hits"] = len(result.Items)
	if f.explain {
		mode := "structured"
		if q.HasSemantic && q.HasLexical {
			mode = "hybrid"
		} else if q.HasSemantic {
			mode = "semantic"
		} else if q.HasLexical {
			mode = "lexical"
		}
		in := retrieve.Inputs{Lexical: q.UsingLexical, HasLexical: q.HasLexical}
		env.Explain = buildExplain(mode, in, opts, result)
	}
	return w.RenderEnvelope(env)
}
