package cmd

import (
	"os"

	"github.com/spf13/cobra"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
	"github.com/recall-db/recall/internal/transfer"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Read NDJSON doc/chunk lines and upsert them into the store",
		Args:  cobra.ExactArgs(1),
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

			f, err := os.Open(args[0])
			if err != nil {
				return recallerrors.IO("open "+args[0], err)
			}
			defer func() { _ = f.Close() }()

			stats, err := transfer.Import(cmd.Context(), s, f, c.Config.AnnBits, c.Config.AnnSeed)
			if err != nil {
				return err
			}

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			env.Stats["docs"] = stats.Docs
			env.Stats["chunks"] = stats.Chunks
			if !w.WantsStructured() {
				w.Successf("imported %d doc(s), %d chunk(s)", stats.Docs, stats.Chunks)
			}
			return w.RenderEnvelope(env)
		},
	}
}
