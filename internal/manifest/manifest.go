// Package manifest records the directory blocks produced by an add as JSON.
package manifest

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/renameio"
	mt "github.com/txaty/go-merkletree"

	"unixfs-go/internal/hash"
)

const Generator = "unixfs-go"

var ErrChecksumMismatch = errors.New("manifest checksum mismatch")

// Entry is one rendered directory.
type Entry struct {
	Path string `json:"path"`
	Cid  string `json:"cid"`
	Size uint64 `json:"size"`
}

func (e Entry) Serialize() ([]byte, error) {
	return []byte(e.Path + "\x00" + e.Cid + "\x00" + strconv.FormatUint(e.Size, 10)), nil
}

type Manifest struct {
	Generator string    `json:"generator"`
	Created   time.Time `json:"created"`
	Source    string    `json:"source"`
	// Root is the CID of the wrapping directory, empty when the source was
	// added without one.
	Root      string  `json:"root,omitempty"`
	Size      string  `json:"size"`
	TotalSize uint64  `json:"total_size"`
	Checksum  string  `json:"checksum"`
	Entries   []Entry `json:"entries"`
}

// New returns a manifest for entries in emission order.
func New(source, root string, totalSize uint64, entries []Entry) (*Manifest, error) {
	sum, err := Checksum(entries)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return &Manifest{
		Generator: Generator,
		Created:   time.Now().UTC(),
		Source:    source,
		Root:      root,
		Size:      formatSize(totalSize),
		TotalSize: totalSize,
		Checksum:  sum,
		Entries:   entries,
	}, nil
}

// Checksum is the hex merkle root over entries, hashed with xxhash. It
// depends on the order of entries.
func Checksum(entries []Entry) (string, error) {
	// go-merkletree needs at least two leaves
	if len(entries) < 2 {
		var data []byte
		if len(entries) == 1 {
			data, _ = entries[0].Serialize()
		}
		sum, err := hash.XXHashFunc(data)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(sum), nil
	}

	blocks := make([]mt.DataBlock, len(entries))
	for i := range entries {
		blocks[i] = entries[i]
	}

	tree, err := mt.New(&mt.Config{
		HashFunc: hash.XXHashFunc,
		Mode:     mt.ModeTreeBuild,
	}, blocks)
	if err != nil {
		return "", fmt.Errorf("failed to build checksum tree: %w", err)
	}
	return hex.EncodeToString(tree.Root), nil
}

func formatSize(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func Save(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := renameio.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Load reads a manifest and verifies its checksum.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	sum, err := Checksum(m.Entries)
	if err != nil {
		return nil, err
	}
	if sum != m.Checksum {
		return nil, fmt.Errorf("%s: %w", path, ErrChecksumMismatch)
	}

	return &m, nil
}
