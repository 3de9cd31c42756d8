package tree

import (
	"fmt"
	"iter"
)

// visit is one pending unit of work of the post-order walk. A directory is
// first visited as a descent, which schedules its post visit below the
// descents of its subdirectories on the stack. The post visit renders the
// directory once every subdirectory has been rendered.
type visit interface {
	// position returns the name and depth the path is tracked at.
	position() (name string, hasName bool, depth int)
}

type descentRoot struct {
	node *DirBuilder
}

type descent struct {
	node  *DirBuilder
	name  string
	depth int
	// index of this directory in the parent's stashed Links.
	index int
}

type post struct {
	parentID uint64
	name     string
	depth    int
	index    int
	links    linkStorage
}

type postRoot struct {
	links linkStorage
}

func (descentRoot) position() (string, bool, int) { return "", false, 0 }
func (v descent) position() (string, bool, int)   { return v.name, true, v.depth }
func (v post) position() (string, bool, int)      { return v.name, true, v.depth }
func (postRoot) position() (string, bool, int)    { return "", false, 0 }

// linkStorage holds a directory's links until its post visit: directly when
// every child was already resolved, otherwise in the iterator's stash so the
// subdirectories can fill in their slots.
type linkStorage interface {
	resolve(stash map[uint64]Links) Links
}

type directLinks Links

type stashedLinks uint64

func (l directLinks) resolve(map[uint64]Links) Links {
	return Links(l)
}

func (id stashedLinks) resolve(stash map[uint64]Links) Links {
	links, ok := stash[uint64(id)]
	if !ok {
		panic(fmt.Sprintf("links for directory %d are neither direct nor stashed", id))
	}
	delete(stash, uint64(id))
	return links
}

// PostOrderIterator renders the directories of a tree, every directory
// strictly after all of its subdirectories. Subdirectories of the same
// parent are rendered in reverse name order.
//
//	for it.Next() {
//		node := it.Node()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type PostOrderIterator struct {
	fullPath    []byte
	oldDepth    int
	blockBuffer []byte
	pending     []visit
	// persisted carries rendered subdirectories back to their parent; only
	// directories with at least one subdirectory are stashed here.
	persisted      map[uint64]Links
	reusedChildren []visit
	node           TreeNode
	err            error
	done           bool
	opts           TreeOptions
}

func newPostOrderIterator(root *DirBuilder, opts TreeOptions, longestPath int) *PostOrderIterator {
	return &PostOrderIterator{
		fullPath:  make([]byte, 0, longestPath),
		pending:   []visit{descentRoot{node: root}},
		persisted: make(map[uint64]Links),
		opts:      opts,
	}
}

// partitionChildren returns the links of node with nil holes for the
// subdirectories, which are appended to children in name order.
func partitionChildren(depth int, node *DirBuilder, children []visit) (Links, []visit) {
	names := node.sortedNames()
	links := make(Links, 0, len(names))

	for i, name := range names {
		switch e := node.nodes[name].(type) {
		case *DirBuilder:
			children = append(children, descent{
				node:  e,
				name:  name,
				depth: depth + 1,
				index: i,
			})
			// filled in by the post visit of e
			links = append(links, nil)
		case Leaf:
			links = append(links, &NamedLeaf{Name: name, Cid: e.Cid, TotalSize: e.TotalSize})
		}
	}

	node.nodes = nil
	return links, children
}

// descend partitions node and returns where its links are kept until its
// post visit. The subdirectories are left in reusedChildren.
func (it *PostOrderIterator) descend(node *DirBuilder, depth int) linkStorage {
	links, children := partitionChildren(depth, node, it.reusedChildren[:0])
	it.reusedChildren = children

	if len(children) == 0 {
		return directLinks(links)
	}
	if _, exists := it.persisted[node.id]; exists {
		panic(fmt.Sprintf("directory %d visited twice", node.id))
	}
	it.persisted[node.id] = links
	return stashedLinks(node.id)
}

// fillParent stores a rendered subdirectory in the hole left for it in the
// stashed links of its parent.
func fillParent(stash map[uint64]Links, parentID uint64, index int, link *NamedLeaf) {
	parent, ok := stash[parentID]
	if !ok {
		panic(fmt.Sprintf("links not found for parent %d and index %d", parentID, index))
	}
	if parent[index] != nil {
		panic(fmt.Sprintf("link %d of parent %d already resolved", index, parentID))
	}
	parent[index] = link
}

// schedule pushes the post visit followed by the subdirectories, so that
// the subdirectories are popped first.
func (it *PostOrderIterator) schedule(p visit) {
	it.pending = append(it.pending, p)
	it.pending = append(it.pending, it.reusedChildren...)
	clear(it.reusedChildren)
	it.reusedChildren = it.reusedChildren[:0]
}

func (it *PostOrderIterator) pop() visit {
	last := len(it.pending) - 1
	v := it.pending[last]
	it.pending[last] = nil
	it.pending = it.pending[:last]
	return v
}

func (it *PostOrderIterator) emit(leaf Leaf) {
	it.node = TreeNode{
		Path:      string(it.fullPath),
		Cid:       leaf.Cid,
		TotalSize: leaf.TotalSize,
		Block:     it.blockBuffer,
	}
}

func (it *PostOrderIterator) finish(err error) {
	it.err = err
	it.done = true
	it.node = TreeNode{}
	it.pending = nil
	it.persisted = nil
	it.reusedChildren = nil
}

// Next renders the next directory. It returns false when the tree has been
// fully rendered or rendering failed; see Err.
func (it *PostOrderIterator) Next() bool {
	if it.done {
		return false
	}

	for len(it.pending) > 0 {
		v := it.pop()

		name, hasName, depth := v.position()
		updateFullPath(&it.fullPath, &it.oldDepth, name, hasName, depth)

		switch v := v.(type) {
		case descentRoot:
			links := it.descend(v.node, depth)
			it.schedule(postRoot{links: links})

		case descent:
			parentID, ok := v.node.ParentID()
			if !ok {
				panic(fmt.Sprintf("directory %d at %q has no parent", v.node.id, it.fullPath))
			}
			links := it.descend(v.node, v.depth)
			it.schedule(post{
				parentID: parentID,
				name:     v.name,
				depth:    v.depth,
				index:    v.index,
				links:    links,
			})

		case post:
			links := v.links.resolve(it.persisted)
			leaf, err := renderDirectory(links, &it.blockBuffer, it.opts.BlockSizeLimit)
			if err != nil {
				it.finish(err)
				return false
			}

			fillParent(it.persisted, v.parentID, v.index, &NamedLeaf{Name: v.name, Cid: leaf.Cid, TotalSize: leaf.TotalSize})

			it.emit(leaf)
			return true

		case postRoot:
			links := v.links.resolve(it.persisted)
			if !it.opts.WrapWithDirectory {
				it.finish(nil)
				return false
			}

			leaf, err := renderDirectory(links, &it.blockBuffer, it.opts.BlockSizeLimit)
			if err != nil {
				it.finish(err)
				return false
			}

			it.emit(leaf)
			return true
		}
	}

	it.finish(nil)
	return false
}

// Node returns the directory rendered by the last successful Next.
func (it *PostOrderIterator) Node() TreeNode {
	return it.node
}

// Err returns the error which stopped the iteration, if any.
func (it *PostOrderIterator) Err() error {
	return it.err
}

// All yields every remaining directory as an owned copy, then the error
// that stopped the iteration, if any.
func (it *PostOrderIterator) All() iter.Seq2[OwnedTreeNode, error] {
	return func(yield func(OwnedTreeNode, error) bool) {
		for it.Next() {
			if !yield(it.Node().Owned(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(OwnedTreeNode{}, err)
		}
	}
}
