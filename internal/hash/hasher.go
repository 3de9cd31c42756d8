package hash

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// FileResult is a file hashed as a single raw block.
type FileResult struct {
	Cid  cid.Cid
	Size int64
	// Data is the file content, which is also the raw block.
	Data []byte
}

// HashBlock returns the CIDv1 of data as a raw block.
func HashBlock(data []byte) (cid.Cid, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to hash block: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// HashFile reads the whole file and addresses it as a raw block.
func HashFile(path string) (*FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	c, err := HashBlock(data)
	if err != nil {
		return nil, err
	}

	return &FileResult{Cid: c, Size: int64(len(data)), Data: data}, nil
}

// XXHashFunc is a custom hash function adapter for go-merkletree
// It converts []byte input to xxHash []byte output
func XXHashFunc(data []byte) ([]byte, error) {
	sum := xxhash.Sum64(data)

	// Convert uint64 to []byte in big-endian format
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, sum)
	return buf, nil
}
