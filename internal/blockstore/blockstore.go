// Package blockstore keeps content addressed blocks.
package blockstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio"
	"github.com/ipfs/go-cid"
	"go.uber.org/zap"

	"unixfs-go/internal/logging"
)

var ErrNotFound = errors.New("block not found")

// Store is where rendered blocks end up. Put must not retain data.
type Store interface {
	Put(c cid.Cid, data []byte) error
	Get(c cid.Cid) ([]byte, error)
	Has(c cid.Cid) (bool, error)
}

// Memory is an in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blocks: make(map[string][]byte)}
}

func (m *Memory) Put(c cid.Cid, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blocks[c.KeyString()]; ok {
		return nil
	}
	m.blocks[c.KeyString()] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(c cid.Cid) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blocks[c.KeyString()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", c, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Has(c cid.Cid) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blocks[c.KeyString()]
	return ok, nil
}

// Len returns the number of stored blocks.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// FlatFS stores every block in its own file. Files are spread over 4096
// subdirectories named by the low 12 bits of the xxhash of the CID, which
// keeps directories small on filesystems like ext4.
type FlatFS struct {
	Dir string
}

func NewFlatFS(dir string) (*FlatFS, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create block store: %w", err)
	}
	return &FlatFS{Dir: dir}, nil
}

// Path returns the file a block is stored in.
func (f *FlatFS) Path(c cid.Cid) string {
	key := c.String()
	shard := fmt.Sprintf("%03x", xxhash.Sum64String(key)&0xfff)
	return filepath.Join(f.Dir, shard, key)
}

// Put writes the block atomically. Blocks already present are left alone.
func (f *FlatFS) Put(c cid.Cid, data []byte) error {
	path := f.Path(c)
	if _, err := os.Stat(path); err == nil {
		logging.Debug("block already stored", zap.Stringer("cid", c))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0444); err != nil {
		return fmt.Errorf("failed to write block %s: %w", c, err)
	}
	return nil
}

func (f *FlatFS) Get(c cid.Cid) ([]byte, error) {
	data, err := os.ReadFile(f.Path(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", c, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read block %s: %w", c, err)
	}
	return data, nil
}

func (f *FlatFS) Has(c cid.Cid) (bool, error) {
	_, err := os.Stat(f.Path(c))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat block %s: %w", c, err)
}
