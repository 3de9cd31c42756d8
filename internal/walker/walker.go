package walker

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"unixfs-go/internal/hash"
	"unixfs-go/internal/progress"
)

type FileInfo struct {
	Path string
	// RelPath is slash separated and relative to the walked root.
	RelPath string
	Size    int64
	ModTime time.Time
}

type WalkResult struct {
	Files []FileInfo
	// Dirs are the slash separated relative paths of every directory below
	// the root, so empty directories are kept too.
	Dirs   []string
	Errors []error
}

func Walk(rootPath string, exclusions []string) (*WalkResult, error) {
	result := &WalkResult{
		Files:  make([]FileInfo, 0),
		Dirs:   make([]string, 0),
		Errors: make([]error, 0),
	}

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// If error is on the root path, return it (don't continue walking)
			if path == rootPath {
				return err
			}
			// Skip permission errors and continue walking
			result.Errors = append(result.Errors, err)
			return nil
		}

		if path == rootPath {
			if !d.IsDir() {
				return fmt.Errorf("%s is not a directory", rootPath)
			}
			return nil
		}

		// Get relative path for matching
		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}

		// Check if path should be excluded
		if shouldExclude(relPath, d, exclusions) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			result.Dirs = append(result.Dirs, filepath.ToSlash(relPath))
			return nil
		}

		// symlinks, devices and sockets have no content to add
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return result, nil
}

func shouldExclude(relPath string, d fs.DirEntry, exclusions []string) bool {
	for _, pattern := range exclusions {
		// Handle directory exclusions (patterns ending with /)
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			// Check if the current path or any parent matches the directory pattern
			parts := strings.Split(relPath, string(filepath.Separator))
			if !d.IsDir() {
				parts = parts[:len(parts)-1]
			}
			for _, part := range parts {
				if matched, _ := filepath.Match(dirPattern, part); matched {
					return true
				}
				// Also check exact match
				if part == dirPattern {
					return true
				}
			}
		} else {
			// Handle file pattern exclusions
			matched, err := filepath.Match(pattern, filepath.Base(relPath))
			if err == nil && matched {
				return true
			}
			// Also try matching against the full relative path for patterns with /
			if strings.Contains(pattern, "/") {
				matched, err := filepath.Match(pattern, filepath.ToSlash(relPath))
				if err == nil && matched {
					return true
				}
			}
		}
	}
	return false
}

// BlockFunc receives every hashed file. It is called from the hashing
// goroutines and must be safe for concurrent use.
type BlockFunc func(file FileInfo, result *hash.FileResult) error

type HashResult struct {
	Files  map[string]*hash.FileResult // path -> result, without content
	Errors []error
}

// HashFiles hashes files with at most numWorkers goroutines. Files which
// cannot be read are reported in Errors; an error from onBlock or the end of
// ctx stops the hashing and is returned.
func HashFiles(ctx context.Context, files []FileInfo, numWorkers int, progressBar *progress.Bar, onBlock BlockFunc) (*HashResult, error) {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	result := &HashResult{
		Files:  make(map[string]*hash.FileResult),
		Errors: make([]error, 0),
	}

	if len(files) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

	for _, fileInfo := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fileResult, err := hash.HashFile(fileInfo.Path)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", fileInfo.Path, err))
				mu.Unlock()
				return nil
			}

			if onBlock != nil {
				if err := onBlock(fileInfo, fileResult); err != nil {
					return fmt.Errorf("%s: %w", fileInfo.Path, err)
				}
			}
			// the content is only needed by onBlock
			fileResult.Data = nil

			mu.Lock()
			result.Files[fileInfo.Path] = fileResult
			mu.Unlock()

			// Update progress bar
			if progressBar != nil {
				progressBar.SetDirectory(filepath.Dir(fileInfo.Path))
				progressBar.Increment()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}
