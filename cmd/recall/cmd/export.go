package cmd

import (
	"os"

	"github.com/spf13/cobra"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
	"github.com/recall-db/recall/internal/transfer"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every live doc and chunk as NDJSON",
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

			dest := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return recallerrors.IO("create "+outPath, err)
				}
				defer func() { _ = f.Close() }()
				dest = f
			}

			stats, err := transfer.Export(cmd.Context(), s, dest)
			if err != nil {
				return err
			}

			w := newOutputWriter(cmd, false)
			if outPath == "" {
				// stdout already carries the NDJSON payload; an envelope
				// there would corrupt it, so only a stderr status remains.
				if !w.WantsStructured() {
					w.Successf("exported %d doc(s), %d chunk(s)", stats.Docs, stats.Chunks)
				}
				return nil
			}
			env := output.NewEnvelope()
			env.Stats["docs"] = stats.Docs
			env.Stats["chunks"] = stats.Chunks
			if !w.WantsStructured() {
				w.Successf("exported %d doc(s), %d chunk(s)", stats.Docs, stats.Chunks)
			}
			return w.RenderEnvelope(env)
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Write NDJSON to this file instead of stdout")

	return cmd
}
