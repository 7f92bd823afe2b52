package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/pkg/version"
)

func newManCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "man",
		Short: "Generate man pages for every command into --dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			header := &doc.GenManHeader{
				Title:   "RECALL",
				Section: "1",
				Source:  "recall " + version.Version,
			}
			if err := doc.GenManTree(cmd.Root(), header, outDir); err != nil {
				return recallerrors.IO("generate man pages in "+outDir, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "dir", ".", "Directory to write man pages into")

	return cmd
}
