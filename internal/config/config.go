// Package config loads and resolves the per-user and per-store settings
// that govern chunking, embedding, and retrieval defaults.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	recallerrors "github.com/recall-db/recall/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable that chunking, embedding, and retrieval read
// by default. Values come from the global config file, falling back to
// the defaults below for anything unset.
type Config struct {
	StorePath    string  `yaml:"store_path"`
	ChunkTokens  int     `yaml:"chunk_tokens"`
	OverlapTokens int    `yaml:"overlap_tokens"`
	EmbeddingDim int     `yaml:"embedding_dim"`
	Embedding    string  `yaml:"embedding"`
	BM25Weight   float32 `yaml:"bm25_weight"`
	VectorWeight float32 `yaml:"vector_weight"`
	MaxLimit     int     `yaml:"max_limit"`
	AnnBackend   string  `yaml:"ann_backend"`
	AnnBits      uint8   `yaml:"ann_bits"`
	AnnSeed      uint64  `yaml:"ann_seed"`
}

// Default returns the configuration used when no global config file exists.
func Default() Config {
	return Config{
		StorePath:     "recall.db",
		ChunkTokens:   256,
		OverlapTokens: 32,
		EmbeddingDim:  256,
		Embedding:     "hash",
		BM25Weight:    0.5,
		VectorWeight:  0.5,
		MaxLimit:      1000,
		AnnBackend:    "lsh",
		AnnBits:       16,
		AnnSeed:       42,
	}
}

// Ctx pairs a resolved store root with the config that applies to it.
type Ctx struct {
	Root   string
	Config Config
}

// LoadFromCwd resolves a Ctx starting from the process's working directory.
func LoadFromCwd() (Ctx, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Ctx{}, recallerrors.IO("get current directory", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom resolves a Ctx by reading the global config (if any) and then
// walking up from start to find a directory containing the configured
// store file.
func LoadFrom(start string) (Ctx, error) {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return Ctx{}, err
	}
	root, ok := FindStoreRoot(start, cfg.StorePath)
	if !ok {
		return Ctx{}, recallerrors.StoreNotFound(cfg.StorePath).WithHint("run `recall init` first")
	}
	return Ctx{Root: root, Config: cfg}, nil
}

// StorePath returns the absolute path to the store file for this context.
func (c Ctx) StorePath() string {
	if filepath.IsAbs(c.Config.StorePath) {
		return c.Config.StorePath
	}
	return filepath.Join(c.Root, c.Config.StorePath)
}

func configDir() (string, bool) {
	switch runtime.GOOS {
	case "windows":
		if v := os.Getenv("APPDATA"); v != "" {
			return v, true
		}
		if v := os.Getenv("USERPROFILE"); v != "" {
			return filepath.Join(v, "AppData", "Roaming"), true
		}
		return "", false
	case "darwin":
		home := os.Getenv("HOME")
		if home == "" {
			return "", false
		}
		return filepath.Join(home, "Library", "Application Support"), true
	default:
		if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
			return v, true
		}
		home := os.Getenv("HOME")
		if home == "" {
			return "", false
		}
		return filepath.Join(home, ".config"), true
	}
}

// GlobalConfigPath returns the path of the per-user config file, if the
// platform exposes a config directory.
func GlobalConfigPath() (string, bool) {
	dir, ok := configDir()
	if !ok {
		return "", false
	}
	return filepath.Join(dir, "recall", "recall.yaml"), true
}

// LoadGlobalConfig reads the per-user config file, returning defaults if it
// doesn't exist or the platform has no config directory.
func LoadGlobalConfig() (Config, error) {
	path, ok := GlobalConfigPath()
	if !ok {
		return Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	return ReadConfig(path)
}

// ReadConfig parses a YAML config file, overlaying it onto the defaults so
// a file only needs to set the fields it overrides.
func ReadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, recallerrors.IO("read "+path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, recallerrors.ImportFormat("parse "+path, err)
	}
	if cfg.OverlapTokens >= cfg.ChunkTokens {
		cfg.OverlapTokens = 0
	}
	return cfg, nil
}

// FindStoreRoot walks up from start looking for a directory containing
// storePath. If storePath is absolute, it's used directly: the "root" is
// just its parent directory, and the walk is skipped entirely.
func FindStoreRoot(start, storePath string) (string, bool) {
	if filepath.IsAbs(storePath) {
		if _, err := os.Stat(storePath); err != nil {
			return "", false
		}
		dir := filepath.Dir(storePath)
		return dir, true
	}

	cur, err := filepath.Abs(start)
	if err != nil {
		cur = start
	}
	for {
		candidate := filepath.Join(cur, storePath)
		if _, err := os.Stat(candidate); err == nil {
			return cur, true
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", false
		}
		cur = parent
	}
}
