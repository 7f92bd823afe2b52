package cmd

import (
	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Purge tombstoned rows, rebuild the FTS index, and vacuum the store",
		Args:  cobra.NoArgs,
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

			if err := s.Compact(cmd.Context()); err != nil {
				return err
			}

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			if !w.WantsStructured() {
				w.Success("compacted store")
			}
			return w.RenderEnvelope(env)
		},
	}
}
