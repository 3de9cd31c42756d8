package tree

import (
	"bytes"
	"fmt"
)

// updateFullPath moves the path buffer to the node at depth, optionally
// named. Depths 0 and 1 both start from an empty prefix.
func updateFullPath(fullPath *[]byte, oldDepth *int, name string, hasName bool, depth int) {
	if depth < 2 {
		*fullPath = (*fullPath)[:0]
		*oldDepth = 0
	} else {
		for *oldDepth >= depth && *oldDepth > 0 {
			p := *fullPath
			slashAt := bytes.LastIndexByte(p, '/')
			if slashAt < 0 {
				panic(fmt.Sprintf("no separator in %q yet depth %d >= %d", p, *oldDepth, depth))
			}
			if *oldDepth == depth && hasName && string(p[slashAt+1:]) == name {
				// a/b/foo/zz => a/b/foo is already in place
				return
			}
			*fullPath = p[:slashAt]
			*oldDepth--
		}
	}

	if hasName {
		if len(*fullPath) > 0 {
			*fullPath = append(*fullPath, '/')
		}
		*fullPath = append(*fullPath, name...)
		*oldDepth++
	}

	if *oldDepth != depth {
		panic(fmt.Sprintf("path depth %d does not match visited depth %d", *oldDepth, depth))
	}
}
