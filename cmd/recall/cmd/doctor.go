package cmd

import (
	"github.com/spf13/cobra"

	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newDoctorCmd() *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the store's internal consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := resolveCtx()
			if err != nil {
				return err
			}
			mode := store.ModeRead
			if fix {
				mode = store.ModeWrite
			}
			s, err := openStore(cmd.Context(), c, mode)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			report, err := s.CheckConsistency(cmd.Context())
			if err != nil {
				return err
			}
			integrity, err := s.IntegrityCheck(cmd.Context())
			if err != nil {
				return err
			}

			var actions []string
			if fix {
				if !report.FTSOK {
					if err := s.RebuildFTS(cmd.Context()); err != nil {
						return err
					}
					actions = append(actions, "rebuilt_fts")
				}
				if !report.ANNOK {
					if err := s.RebuildAnnLSH(cmd.Context(), c.Config.AnnBits, c.Config.AnnSeed); err != nil {
						return err
					}
					actions = append(actions, "rebuilt_ann_lsh")
				}
				if !report.HNSWOK {
					if err := s.RebuildAnnHNSW(cmd.Context()); err != nil {
						return err
					}
					actions = append(actions, "rebuilt_ann_hnsw")
				}
				if len(actions) > 0 {
					report, err = s.CheckConsistency(cmd.Context())
					if err != nil {
						return err
					}
				}
			}

			healthy := report.FTSOK && report.ANNOK && report.HNSWOK && integrity == "ok"

			w := newOutputWriter(cmd, false)
			env := output.NewEnvelope()
			env.Stats["fts_ok"] = report.FTSOK
			env.Stats["ann_ok"] = report.ANNOK
			env.Stats["hnsw_ok"] = report.HNSWOK
			env.Stats["integrity"] = integrity
			env.Stats["healthy"] = healthy
			env.Warnings = append(env.Warnings, report.Issues...)
			env.Actions = actions
			if !w.WantsStructured() {
				if healthy {
					w.Success("store is healthy")
				} else {
					w.Warning("store has inconsistencies")
					for _, issue := range report.Issues {
						w.Warning(issue)
					}
				}
				for _, action := range actions {
					w.Statusf("applied fix: %s", action)
				}
			}
			return w.RenderEnvelope(env)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Rebuild FTS/ANN structures that are out of sync with the live chunk set")

	return cmd
}
