// Package cmd provides the CLI commands for recall.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/logging"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/pkg/version"
)

// globalFlags holds the persistent flags shared by every subcommand.
var globalFlags struct {
	jsonOut bool
	store   string
	debug   bool
}

var loggingCleanup func()

// NewRootCmd builds the recall command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recall",
		Short: "Hybrid lexical/semantic document search over a local corpus",
		Long: `recall ingests local text files into a single-file store and answers
lexical (BM25), semantic (vector), and weighted-hybrid queries over them,
with a small relational query language (RQL) for filtering, projection,
ordering, and paging on top.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}
	root.SetVersionTemplate("recall version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&globalFlags.jsonOut, "json", false, "Render output as a single JSON envelope")
	root.PersistentFlags().StringVar(&globalFlags.store, "store", "", "Path to the store file (overrides discovery)")
	root.PersistentFlags().BoolVar(&globalFlags.debug, "debug", false, "Enable debug logging to ~/.recall/logs/")

	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newRmCmd(),
		newSearchCmd(),
		newQueryCmd(),
		newContextCmd(),
		newStatsCmd(),
		newDoctorCmd(),
		newCompactCmd(),
		newExportCmd(),
		newImportCmd(),
		newCompletionsCmd(),
		newManCmd(),
	)

	return root
}

func setupLogging(*cobra.Command, []string) error {
	logCfg := logging.DefaultConfig()
	if globalFlags.debug {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false
	_, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return recallerrors.IO("setup logging", err)
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command and returns the process exit code, per
// spec.md §6: 0 on success, 1 on any error.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return 0
	}
	if globalFlags.jsonOut {
		w := output.New(root.OutOrStdout(), root.ErrOrStderr(), true, false)
		_ = w.RenderEnvelope(output.ErrorEnvelope(err))
	} else {
		slog.Error("command failed", slog.Any("error", recallerrors.FormatForLog(err)))
		_, _ = root.ErrOrStderr().Write([]byte(recallerrors.FormatForUser(err) + "\n"))
	}
	return recallerrors.ExitCode(err)
}
