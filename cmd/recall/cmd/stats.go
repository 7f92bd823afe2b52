package cmd

import (
	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report corpus totals, store size, and the current snapshot token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCtx()
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), c, store.ModeRead)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			corpus, err := s.CorpusStats(cmd.Context())
			if err != nil {
				return err
			}
			sizeBytes, err := s.DBSizeBytes()
			if err != nil {
				return err
			}
			snapshot, _, err := s.MaxDocMTime(cmd.Context())
			if err != nil {
				return err
			}

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			env.Stats["docs"] = corpus.Docs
			env.Stats["chunks"] = corpus.Chunks
			env.Stats["tokens"] = corpus.Tokens
			env.Stats["corpus_bytes"] = corpus.Bytes
			env.Stats["db_size_bytes"] = sizeBytes
			env.Stats["snapshot"] = snapshot
			if !w.WantsStructured() {
				w.Successf("%d doc(s), %d chunk(s), %d token(s), %d bytes on disk, snapshot %s",
					corpus.Docs, corpus.Chunks, corpus.Tokens, sizeBytes, snapshot)
			}
			return w.RenderEnvelope(env)
		},
	}
}
