// Package dagpb encodes and decodes UnixFS directory blocks in the dag-pb
// wire format.
package dagpb

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the dag-pb PBNode and PBLink messages and of the UnixFS
// Data message carried in PBNode.Data.
const (
	nodeData  protowire.Number = 1
	nodeLinks protowire.Number = 2

	linkHash  protowire.Number = 1
	linkName  protowire.Number = 2
	linkTsize protowire.Number = 3

	unixfsType protowire.Number = 1
)

// UnixFS data types. Only directories are produced here.
const (
	TypeRaw       = 0
	TypeDirectory = 1
	TypeFile      = 2
)

// directoryData is the encoded UnixFS Data message {Type: Directory}.
var directoryData = protowire.AppendVarint(protowire.AppendTag(nil, unixfsType, protowire.VarintType), TypeDirectory)

var ErrNotDirectory = errors.New("block is not a unixfs directory")

// Link is a named reference to a child block.
type Link struct {
	Name  string
	Cid   cid.Cid
	Tsize uint64
}

// Node is a decoded directory block.
type Node struct {
	Links []Link
	Type  uint64
}

func linkSize(l *Link) int {
	n := protowire.SizeTag(linkHash) + protowire.SizeBytes(l.Cid.ByteLen())
	n += protowire.SizeTag(linkName) + protowire.SizeBytes(len(l.Name))
	n += protowire.SizeTag(linkTsize) + protowire.SizeVarint(l.Tsize)
	return n
}

// DirectorySize returns the exact number of bytes AppendDirectory writes
// for links.
func DirectorySize(links []Link) int {
	n := 0
	for i := range links {
		n += protowire.SizeTag(nodeLinks) + protowire.SizeBytes(linkSize(&links[i]))
	}
	n += protowire.SizeTag(nodeData) + protowire.SizeBytes(len(directoryData))
	return n
}

// AppendDirectory appends the directory block for links to dst. Links are
// written in the given order followed by the UnixFS data field, which is the
// canonical dag-pb field order.
func AppendDirectory(dst []byte, links []Link) []byte {
	for i := range links {
		l := &links[i]
		dst = protowire.AppendTag(dst, nodeLinks, protowire.BytesType)
		dst = protowire.AppendVarint(dst, uint64(linkSize(l)))
		dst = protowire.AppendTag(dst, linkHash, protowire.BytesType)
		dst = protowire.AppendBytes(dst, l.Cid.Bytes())
		dst = protowire.AppendTag(dst, linkName, protowire.BytesType)
		dst = protowire.AppendString(dst, l.Name)
		dst = protowire.AppendTag(dst, linkTsize, protowire.VarintType)
		dst = protowire.AppendVarint(dst, l.Tsize)
	}
	dst = protowire.AppendTag(dst, nodeData, protowire.BytesType)
	dst = protowire.AppendBytes(dst, directoryData)
	return dst
}

// Decode parses a dag-pb block. Unknown fields are skipped. It returns
// ErrNotDirectory if the UnixFS type is anything other than a directory.
func Decode(block []byte) (*Node, error) {
	node := &Node{Type: TypeRaw}
	hasData := false
	for len(block) > 0 {
		num, typ, n := protowire.ConsumeTag(block)
		if n < 0 {
			return nil, fmt.Errorf("failed to read node field: %w", protowire.ParseError(n))
		}
		block = block[n:]

		switch {
		case num == nodeLinks && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(block)
			if n < 0 {
				return nil, fmt.Errorf("failed to read link: %w", protowire.ParseError(n))
			}
			link, err := decodeLink(raw)
			if err != nil {
				return nil, err
			}
			node.Links = append(node.Links, link)
			block = block[n:]
		case num == nodeData && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(block)
			if n < 0 {
				return nil, fmt.Errorf("failed to read data: %w", protowire.ParseError(n))
			}
			t, err := decodeType(raw)
			if err != nil {
				return nil, err
			}
			node.Type = t
			hasData = true
			block = block[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, block)
			if n < 0 {
				return nil, fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			block = block[n:]
		}
	}

	if !hasData {
		return nil, ErrNotDirectory
	}
	if node.Type != TypeDirectory {
		return nil, fmt.Errorf("%w: unixfs %s", ErrNotDirectory, typeName(node.Type))
	}
	return node, nil
}

func typeName(t uint64) string {
	switch t {
	case TypeRaw:
		return "raw"
	case TypeDirectory:
		return "directory"
	case TypeFile:
		return "file"
	default:
		return fmt.Sprintf("type %d", t)
	}
}

func decodeLink(b []byte) (Link, error) {
	var link Link
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return link, fmt.Errorf("failed to read link field: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == linkHash && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return link, fmt.Errorf("failed to read link hash: %w", protowire.ParseError(n))
			}
			c, err := cid.Cast(raw)
			if err != nil {
				return link, fmt.Errorf("invalid link cid: %w", err)
			}
			link.Cid = c
			b = b[n:]
		case num == linkName && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return link, fmt.Errorf("failed to read link name: %w", protowire.ParseError(n))
			}
			link.Name = string(raw)
			b = b[n:]
		case num == linkTsize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return link, fmt.Errorf("failed to read link tsize: %w", protowire.ParseError(n))
			}
			link.Tsize = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return link, fmt.Errorf("failed to skip link field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return link, nil
}

func decodeType(b []byte) (uint64, error) {
	t := uint64(TypeRaw)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, fmt.Errorf("failed to read unixfs field: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == unixfsType && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, fmt.Errorf("failed to read unixfs type: %w", protowire.ParseError(n))
			}
			t = v
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0, fmt.Errorf("failed to skip unixfs field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return t, nil
}
