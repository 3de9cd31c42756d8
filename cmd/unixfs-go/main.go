package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unixfs-go/internal/adder"
	"unixfs-go/internal/blockstore"
	"unixfs-go/internal/compare"
	"unixfs-go/internal/config"
	"unixfs-go/internal/dagpb"
	"unixfs-go/internal/logging"
	"unixfs-go/internal/manifest"
	"unixfs-go/internal/progress"
	"unixfs-go/internal/tree"
)

// exitError carries an exit code without printing anything.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type addFlags struct {
	configPath     string
	workers        int
	wrap           bool
	blockSizeLimit uint64
	storeDir       string
	logLevel       string
	quiet          bool
}

func newAddCmd() *cobra.Command {
	var f addFlags

	cmd := &cobra.Command{
		Use:   "add [flags] <directory> [manifest.json]",
		Short: "Render a directory tree into content addressed blocks",
		Long: "Hash every file of a directory as a raw block, render every directory as a\n" +
			"dag-pb block bottom up and save a JSON manifest of the directory blocks.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config
			cfg, err := config.LoadConfig(f.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = f.workers
			}
			if cfg.Workers <= 0 {
				cfg.Workers = runtime.NumCPU() * 2
			}
			if flags.Changed("wrap") {
				cfg.WrapWithDirectory = f.wrap
			}
			if flags.Changed("block-size-limit") {
				cfg.BlockSizeLimit = f.blockSizeLimit
			}
			if flags.Changed("store") {
				cfg.StoreDir = f.storeDir
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = f.logLevel
			}

			if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: "stderr"}); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer logging.Sync()
			logging.S().Debugw("loaded config",
				"path", f.configPath,
				"workers", cfg.Workers,
				"wrap_with_directory", cfg.WrapWithDirectory,
				"block_size_limit", cfg.BlockSizeLimit,
				"store", cfg.StoreDir,
			)

			return runAdd(cmd.Context(), cfg, args, f.quiet)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "config.yaml", "Config file path")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", runtime.NumCPU()*2, "Number of worker goroutines")
	cmd.Flags().BoolVar(&f.wrap, "wrap", true, "Render the added directory itself as a block")
	cmd.Flags().Uint64Var(&f.blockSizeLimit, "block-size-limit", tree.DefaultBlockSizeLimit, "Maximum directory block size in bytes, 0 for no limit")
	cmd.Flags().StringVar(&f.storeDir, "store", "", "Directory to store blocks in")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not draw progress bars")

	return cmd
}

func runAdd(ctx context.Context, cfg *config.Config, args []string, quiet bool) error {
	directory := args[0]
	outputPath := cfg.OutputFile
	if len(args) == 2 {
		outputPath = args[1]
	}

	// Convert to absolute path
	absDirectory, err := filepath.Abs(directory)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	opts := adder.Options{
		Tree:    cfg.TreeOptions(),
		Exclude: cfg.Exclude,
		Workers: cfg.Workers,
	}
	if !quiet {
		opts.Progress = progress.Stdout()
	}
	if cfg.StoreDir != "" {
		store, err := blockstore.NewFlatFS(cfg.StoreDir)
		if err != nil {
			return err
		}
		opts.Store = store
	}

	fmt.Printf("Adding directory: %s\n", absDirectory)

	result, err := adder.Add(ctx, absDirectory, opts)
	if err != nil {
		var tooLarge *tree.BlockTooLargeError
		if errors.As(err, &tooLarge) {
			logging.Error("directory block exceeds the size limit",
				zap.Uint64("size", tooLarge.Size),
				zap.Uint64("limit", cfg.BlockSizeLimit),
			)
		}
		return fmt.Errorf("failed to add directory: %w", err)
	}

	m, err := result.Manifest()
	if err != nil {
		return fmt.Errorf("failed to build manifest: %w", err)
	}

	// If no output path specified, name the manifest after the root in ./output/
	if outputPath == "" {
		name := m.Root
		if name == "" {
			name = m.Checksum
		}
		outputPath = filepath.Join("output", name+".json")
	}

	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := manifest.Save(m, outputPath); err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	logging.Info("saved manifest",
		zap.String("path", outputPath),
		zap.String("checksum", m.Checksum),
	)

	fmt.Printf("✓ Directory added successfully\n")
	if m.Root != "" {
		fmt.Printf("  Root: %s\n", m.Root)
	}
	fmt.Printf("  Files: %d\n", result.Files)
	fmt.Printf("  Directories: %d\n", len(result.Entries))
	fmt.Printf("  Size: %s\n", m.Size)
	fmt.Printf("  Manifest: %s\n", outputPath)

	if len(result.Skipped) > 0 {
		logging.Warn("entries skipped", zap.Int("count", len(result.Skipped)))
		fmt.Printf("\n⚠ Skipped %d entries due to errors\n", len(result.Skipped))
	}

	return nil
}

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <old.json> <new.json>",
		Short: "Compare two manifests",
		Long:  "Compare two manifests. Exits with 1 when directories changed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldManifest, err := manifest.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load manifest: %w", err)
			}
			newManifest, err := manifest.Load(args[1])
			if err != nil {
				return fmt.Errorf("failed to load manifest: %w", err)
			}

			result := compare.Compare(oldManifest, newManifest)
			fmt.Fprintln(cmd.OutOrStdout(), compare.FormatReport(result))

			if result.HasChanges() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}

func newLsCmd() *cobra.Command {
	var storeDir string

	cmd := &cobra.Command{
		Use:   "ls --store <dir> <cid>",
		Short: "List the links of a stored directory block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cid.Decode(args[0])
			if err != nil {
				return fmt.Errorf("invalid cid: %w", err)
			}

			store, err := blockstore.NewFlatFS(storeDir)
			if err != nil {
				return err
			}
			block, err := store.Get(c)
			if err != nil {
				return err
			}
			node, err := dagpb.Decode(block)
			if err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, l := range node.Links {
				fmt.Fprintf(w, "%s\t%d\t%s\n", l.Cid, l.Tsize, l.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&storeDir, "store", "blocks", "Directory blocks are stored in")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "unixfs-go",
		Short:         "Content addressed directory trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAddCmd(), newCompareCmd(), newLsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
