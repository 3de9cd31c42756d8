package tree

import (
	"fmt"
	"slices"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"unixfs-go/internal/dagpb"
)

// renderDirectory encodes links into buf as a dag-pb directory and returns
// its CIDv0 and the cumulative size of the subtree. buf keeps its capacity
// between calls.
func renderDirectory(links Links, buf *[]byte, blockSizeLimit *uint64) (Leaf, error) {
	// TODO: switch to a HAMT sharded directory instead of failing once
	// the block size limit is hit.
	pbLinks := make([]dagpb.Link, len(links))
	var combined uint64
	for i, l := range links {
		if l == nil {
			panic(fmt.Sprintf("link %d of %d was never resolved", i, len(links)))
		}
		pbLinks[i] = dagpb.Link{Name: l.Name, Cid: l.Cid, Tsize: l.TotalSize}
		combined += l.TotalSize
	}

	size := dagpb.DirectorySize(pbLinks)
	if blockSizeLimit != nil && uint64(size) > *blockSizeLimit {
		return Leaf{}, &BlockTooLargeError{Size: uint64(size)}
	}

	block := slices.Grow((*buf)[:0], size)
	block = dagpb.AppendDirectory(block, pbLinks)
	if len(block) != size {
		panic(fmt.Sprintf("encoded %d bytes, expected %d", len(block), size))
	}
	*buf = block

	sum, err := mh.Sum(block, mh.SHA2_256, -1)
	if err != nil {
		return Leaf{}, fmt.Errorf("failed to hash directory block: %w", err)
	}

	return Leaf{
		Cid:       cid.NewCidV0(sum),
		TotalSize: uint64(len(block)) + combined,
	}, nil
}
