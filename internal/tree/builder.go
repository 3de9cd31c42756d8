package tree

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/ipfs/go-cid"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrDuplicatePath = errors.New("path already exists")
)

// DirBuilder is a directory which has not been rendered yet. Children are
// visited in ascending name order.
type DirBuilder struct {
	id        uint64
	parentID  uint64
	hasParent bool
	nodes     map[string]Entry
}

func newDirBuilder(id uint64) *DirBuilder {
	return &DirBuilder{id: id, nodes: make(map[string]Entry)}
}

func (d *DirBuilder) newChild(id uint64) *DirBuilder {
	child := newDirBuilder(id)
	child.parentID = d.id
	child.hasParent = true
	return child
}

// ID returns the identifier of the directory, unique within one builder.
func (d *DirBuilder) ID() uint64 {
	return d.id
}

// ParentID returns the parent directory's identifier; ok is false only for
// the root.
func (d *DirBuilder) ParentID() (id uint64, ok bool) {
	return d.parentID, d.hasParent
}

// Len returns the number of direct children.
func (d *DirBuilder) Len() int {
	return len(d.nodes)
}

func (d *DirBuilder) sortedNames() []string {
	return slices.Sorted(maps.Keys(d.nodes))
}

// BufferedTreeBuilder collects files and directories by their full path and
// renders the directory blocks in one pass with Build.
type BufferedTreeBuilder struct {
	opts        TreeOptions
	root        *DirBuilder
	longestPath int
	counter     uint64
}

// NewBufferedTreeBuilder returns an empty builder. The root directory has id
// 0.
func NewBufferedTreeBuilder(opts TreeOptions) *BufferedTreeBuilder {
	return &BufferedTreeBuilder{
		opts:    opts,
		root:    newDirBuilder(0),
		counter: 1,
	}
}

func splitPath(fullPath string) ([]string, error) {
	if fullPath == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(fullPath, "/")
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, fullPath)
		}
	}
	return segments, nil
}

// mkdirs returns the directory holding the last segment, creating any
// missing directories on the way.
func (b *BufferedTreeBuilder) mkdirs(fullPath string, segments []string) (*DirBuilder, error) {
	dir := b.root
	for _, name := range segments {
		switch e := dir.nodes[name].(type) {
		case nil:
			child := dir.newChild(b.counter)
			b.counter++
			dir.nodes[name] = child
			dir = child
		case *DirBuilder:
			dir = e
		case Leaf:
			return nil, fmt.Errorf("%w: %q is a link", ErrDuplicatePath, fullPath)
		}
	}
	return dir, nil
}

// PutLink records a resolved link, a file or an already rendered directory,
// at fullPath. Missing parent directories are created.
func (b *BufferedTreeBuilder) PutLink(fullPath string, c cid.Cid, totalSize uint64) error {
	segments, err := splitPath(fullPath)
	if err != nil {
		return err
	}

	last := len(segments) - 1
	dir, err := b.mkdirs(fullPath, segments[:last])
	if err != nil {
		return err
	}

	name := segments[last]
	if _, exists := dir.nodes[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePath, fullPath)
	}
	dir.nodes[name] = Leaf{Cid: c, TotalSize: totalSize}

	b.longestPath = max(b.longestPath, len(fullPath))
	return nil
}

// PutDirectory makes sure a directory exists at fullPath. Putting an
// existing directory again is not an error.
func (b *BufferedTreeBuilder) PutDirectory(fullPath string) error {
	segments, err := splitPath(fullPath)
	if err != nil {
		return err
	}

	if _, err := b.mkdirs(fullPath, segments); err != nil {
		return err
	}

	b.longestPath = max(b.longestPath, len(fullPath))
	return nil
}

// Build hands the collected tree over to a PostOrderIterator. The builder
// must not be used afterwards.
func (b *BufferedTreeBuilder) Build() *PostOrderIterator {
	root := b.root
	b.root = nil
	return newPostOrderIterator(root, b.opts, b.longestPath)
}
