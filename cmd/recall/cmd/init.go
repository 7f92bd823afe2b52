package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/recall-db/recall/configs"
	"github.com/recall-db/recall/internal/config"
	recallerrors "github.com/recall-db/recall/internal/errors"
	"github.com/recall-db/recall/internal/output"
	"github.com/recall-db/recall/internal/store"
)

func newInitCmd() *cobra.Command {
	var embeddingDim int

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a new store in the current (or given) directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runInit(cmd, root, embeddingDim)
		},
	}

	cmd.Flags().IntVar(&embeddingDim, "embedding-dim", config.Default().EmbeddingDim, "Embedding vector dimension for this store")

	return cmd
}

func runInit(cmd *cobra.Command, root string, embeddingDim int) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return recallerrors.IO("resolve "+root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return recallerrors.IO("create "+absRoot, err)
	}

	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}
	storePath := globalFlags.store
	if storePath == "" {
		storePath = filepath.Join(absRoot, cfg.StorePath)
	}

	s, err := store.Init(cmd.Context(), storePath, embeddingDim)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	wroteConfig := false
	if configPath, ok := config.GlobalConfigPath(); ok {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
				return recallerrors.IO("create config directory", err)
			}
			if err := os.WriteFile(configPath, []byte(configs.Template), 0o644); err != nil {
				return recallerrors.IO("write "+configPath, err)
			}
			wroteConfig = true
		}
	}

	w := newOutputWriter(cmd, false)
	env := output.NewEnvelope()
	env.Stats["store_path"] = storePath
	env.Stats["embedding_dim"] = embeddingDim
	env.Stats["wrote_global_config"] = wroteConfig
	if !w.WantsStructured() {
		w.Successf("initialized store at %s", storePath)
		if wroteConfig {
			w.Status("wrote starter config")
		}
	}
	return w.RenderEnvelope(env)
}
