package cmd

import (
	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newRmCmd() *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "rm <path...>",
		Short: "Tombstone one or more documents by path",
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

			for _, target := range args {
				if err := s.MarkDocDeleted(cmd.Context(), target); err != nil {
					return err
				}
			}
			if purge {
				if err := s.Compact(cmd.Context()); err != nil {
					return err
				}
			}

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			env.Stats["removed"] = len(args)
			env.Stats["purged"] = purge
			if !w.WantsStructured() {
				w.Successf("removed %d path(s)", len(args))
			}
			return w.RenderEnvelope(env)
		},
	}

	cmd.Flags().BoolVar(&purge, "purge", false, "Physically remove tombstoned rows after marking")

	return cmd
}
