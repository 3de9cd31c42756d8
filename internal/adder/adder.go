// Package adder imports a directory from the local filesystem: files become
// raw blocks, directories become dag-pb blocks rendered bottom up.
package adder

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"unixfs-go/internal/blockstore"
	"unixfs-go/internal/hash"
	"unixfs-go/internal/logging"
	"unixfs-go/internal/manifest"
	"unixfs-go/internal/progress"
	"unixfs-go/internal/tree"
	"unixfs-go/internal/walker"
)

type Options struct {
	Tree    tree.TreeOptions
	Exclude []string
	Workers int
	// Store receives every file and directory block; nil only computes
	// the CIDs.
	Store blockstore.Store
	// Progress is where progress bars are drawn, nil for none.
	Progress io.Writer
}

type Result struct {
	Source string
	// Root is the wrapping directory, cid.Undef unless
	// Tree.WrapWithDirectory was set.
	Root      cid.Cid
	TotalSize uint64
	// Entries are the rendered directories in emission order.
	Entries []manifest.Entry
	Files   int
	Skipped []error
}

func (r *Result) rootString() string {
	if !r.Root.Defined() {
		return ""
	}
	return r.Root.String()
}

// Manifest describes the result for saving.
func (r *Result) Manifest() (*manifest.Manifest, error) {
	return manifest.New(r.Source, r.rootString(), r.TotalSize, r.Entries)
}

// Add walks source, hashes its files and renders its directories. It stops
// between blocks once ctx is done.
func Add(ctx context.Context, source string, opts Options) (*Result, error) {
	log := logging.L().With(zap.String("source", source))

	walkResult, err := walker.Walk(source, opts.Exclude)
	if err != nil {
		return nil, err
	}
	log.Info("scanned directory",
		zap.Int("files", len(walkResult.Files)),
		zap.Int("directories", len(walkResult.Dirs)),
	)
	for _, err := range walkResult.Errors {
		log.Warn("skipped entry", zap.Error(err))
	}

	var onBlock walker.BlockFunc
	if opts.Store != nil {
		onBlock = func(_ walker.FileInfo, result *hash.FileResult) error {
			return opts.Store.Put(result.Cid, result.Data)
		}
	}

	bar := progress.New("hashing", int64(len(walkResult.Files)), opts.Progress)
	hashResult, err := walker.HashFiles(ctx, walkResult.Files, opts.Workers, bar, onBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to hash files: %w", err)
	}
	bar.Finish()

	result := &Result{
		Source:  source,
		Skipped: append(walkResult.Errors, hashResult.Errors...),
	}
	for _, err := range hashResult.Errors {
		log.Warn("skipped file", zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	builder := tree.NewBufferedTreeBuilder(opts.Tree)
	for _, dir := range walkResult.Dirs {
		if err := builder.PutDirectory(dir); err != nil {
			return nil, fmt.Errorf("failed to add directory: %w", err)
		}
	}

	var topLevelSize uint64
	for _, file := range walkResult.Files {
		fileResult, ok := hashResult.Files[file.Path]
		if !ok {
			continue
		}
		size := uint64(fileResult.Size)
		if err := builder.PutLink(file.RelPath, fileResult.Cid, size); err != nil {
			return nil, fmt.Errorf("failed to add file: %w", err)
		}
		if !strings.Contains(file.RelPath, "/") {
			topLevelSize += size
		}
		result.Files++
	}

	directories := int64(len(walkResult.Dirs))
	if opts.Tree.WrapWithDirectory {
		directories++
	}
	bar = progress.New("rendering", directories, opts.Progress)
	it := builder.Build()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !it.Next() {
			break
		}

		node := it.Node()
		if opts.Store != nil {
			if err := opts.Store.Put(node.Cid, node.Block); err != nil {
				return nil, fmt.Errorf("failed to store directory %q: %w", node.Path, err)
			}
		}
		log.Debug("rendered directory",
			zap.String("path", node.Path),
			zap.Stringer("cid", node.Cid),
			zap.Int("block_size", len(node.Block)),
			zap.Uint64("total_size", node.TotalSize),
		)

		result.Entries = append(result.Entries, manifest.Entry{
			Path: node.Path,
			Cid:  node.Cid.String(),
			Size: node.TotalSize,
		})

		switch {
		case node.Path == "":
			result.Root = node.Cid
			result.TotalSize = node.TotalSize
		case !strings.Contains(node.Path, "/"):
			topLevelSize += node.TotalSize
		}
		bar.SetDirectory(node.Path)
		bar.Increment()
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to build directory tree: %w", err)
	}
	bar.Finish()

	if !result.Root.Defined() {
		result.TotalSize = topLevelSize
	}

	log.Info("added directory",
		zap.String("root", result.rootString()),
		zap.Int("files", result.Files),
		zap.Int("directories", len(result.Entries)),
		zap.Uint64("total_size", result.TotalSize),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}
