package cmd

import (
	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/ingest"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newAddCmd() *cobra.Command {
	var (
		glob        string
		tag         string
		source      string
		mtimeOnly   bool
		ignore      []string
		parser      string
		extractMeta bool
	)

	cmd := &cobra.Command{
		Use:   "add <path...>",
		Short: "Ingest files or directories into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCtx()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), c, store.ModeWrite)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			opts := ingest.Options{
				Glob:        glob,
				Tag:         tag,
				HasTag:      cmd.Flags().Changed("tag"),
				Source:      source,
				HasSource:   cmd.Flags().Changed("source"),
				MTimeOnly:   mtimeOnly,
				Ignore:      ignore,
				Parser:      ingest.Parser(parser),
				ExtractMeta: extractMeta,
			}
			report, err := ingest.IngestPaths(cmd.Context(), s, c.Config, args, opts)
			if err != nil {
				return err
			}

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			env.Stats["docs_added"] = report.DocsAdded
			env.Stats["chunks_added"] = report.ChunksAdded
			env.Warnings = report.Warnings
			if !w.WantsStructured() {
				w.Successf("added %d doc(s), %d chunk(s)", report.DocsAdded, report.ChunksAdded)
				for _, warn := range report.Warnings {
					w.Warning(warn)
				}
			}
			return w.RenderEnvelope(env)
		},
	}

	cmd.Flags().StringVar(&glob, "glob", "", "Only ingest paths matching this glob")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag recorded on every ingested doc")
	cmd.Flags().StringVar(&source, "source", "", "Source label recorded on every ingested doc")
	cmd.Flags().BoolVar(&mtimeOnly, "mtime-only", false, "Skip a path whose mtime is unchanged since last ingest")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Gitignore-style pattern to skip (repeatable)")
	cmd.Flags().StringVar(&parser, "parser", string(ingest.ParserAuto), "Parser hint: auto, plain, markdown, code")
	cmd.Flags().BoolVar(&extractMeta, "extract-meta", false, "Extract a markdown front-matter block into doc metadata")

	return cmd
}
