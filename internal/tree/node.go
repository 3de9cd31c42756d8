package tree

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// DefaultBlockSizeLimit is the largest directory block rendered by default.
const DefaultBlockSizeLimit uint64 = 512 * 1024

// TreeOptions control how the directory tree is rendered.
type TreeOptions struct {
	// WrapWithDirectory renders the root as its own block. When false only
	// the directories below the root are emitted.
	WrapWithDirectory bool
	// BlockSizeLimit is the maximum encoded size of a directory block, nil
	// for no limit.
	BlockSizeLimit *uint64
}

// DefaultTreeOptions returns the options used by NewBufferedTreeBuilder
// callers that do not care.
func DefaultTreeOptions() TreeOptions {
	limit := DefaultBlockSizeLimit
	return TreeOptions{BlockSizeLimit: &limit}
}

// Leaf is an already resolved link target: a file, or a previously rendered
// subtree.
type Leaf struct {
	Cid       cid.Cid
	TotalSize uint64
}

// NamedLeaf is a Leaf under a name in its parent directory.
type NamedLeaf struct {
	Name      string
	Cid       cid.Cid
	TotalSize uint64
}

// Links are the positional links of a directory. A nil slot is a
// subdirectory which has not been rendered yet.
type Links []*NamedLeaf

// Entry is either a *DirBuilder or a Leaf.
type Entry interface {
	isEntry()
}

func (*DirBuilder) isEntry() {}
func (Leaf) isEntry()        {}

// TreeNode is a rendered directory as returned by PostOrderIterator.Node.
// Block aliases the iterator's buffer and is only valid until the next call
// to Next; use Owned to keep it longer.
type TreeNode struct {
	// Path is the slash separated path of the directory, "" for the root.
	Path      string
	Cid       cid.Cid
	TotalSize uint64
	Block     []byte
}

// OwnedTreeNode is a TreeNode detached from the iterator.
type OwnedTreeNode struct {
	Path      string
	Cid       cid.Cid
	TotalSize uint64
	Block     []byte
}

// Owned copies the node out of the iterator's buffers.
func (n TreeNode) Owned() OwnedTreeNode {
	block := make([]byte, len(n.Block))
	copy(block, n.Block)
	return OwnedTreeNode{
		Path:      n.Path,
		Cid:       n.Cid,
		TotalSize: n.TotalSize,
		Block:     block,
	}
}

func (n TreeNode) String() string {
	return fmt.Sprintf("TreeNode{path: %q, cid: %s, total_size: %d, size: %d}",
		n.Path, n.Cid, n.TotalSize, len(n.Block))
}

// BlockTooLargeError is returned when a directory block would exceed
// TreeOptions.BlockSizeLimit.
type BlockTooLargeError struct {
	Size uint64
}

func (e *BlockTooLargeError) Error() string {
	return fmt.Sprintf("directory block too large: %d bytes", e.Size)
}
