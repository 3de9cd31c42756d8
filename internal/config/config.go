package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"unixfs-go/internal/tree"
)

type Config struct {
	Exclude []string `yaml:"exclude"`
	// WrapWithDirectory emits a block for the added directory itself.
	WrapWithDirectory bool `yaml:"wrap_with_directory"`
	// BlockSizeLimit in bytes, 0 disables the limit.
	BlockSizeLimit uint64 `yaml:"block_size_limit"`
	Workers        int    `yaml:"workers"`
	StoreDir       string `yaml:"store_dir"`
	OutputFile     string `yaml:"output_file"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

func DefaultConfig() *Config {
	return &Config{
		Exclude: []string{
			".git/",
			".svn/",
			"node_modules/",
			"__pycache__/",
			"*.tmp",
			"*.swp",
			".DS_Store",
			"Thumbs.db",
		},
		WrapWithDirectory: true,
		BlockSizeLimit:    tree.DefaultBlockSizeLimit,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

// TreeOptions converts the rendering settings.
func (c *Config) TreeOptions() tree.TreeOptions {
	opts := tree.TreeOptions{WrapWithDirectory: c.WrapWithDirectory}
	if c.BlockSizeLimit > 0 {
		limit := c.BlockSizeLimit
		opts.BlockSizeLimit = &limit
	}
	return opts
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys missing from the file keep their defaults
	cfg := DefaultConfig()
	cfg.Exclude = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	// Initialize Exclude slice if nil (for empty configs)
	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}

	return cfg, nil
}
