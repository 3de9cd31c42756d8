package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	return []Entry{
		{Path: "a/b", Cid: "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn", Size: 4},
		{Path: "a", Cid: "QmA", Size: 60},
		{Path: "", Cid: "QmRoot", Size: 110},
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m, err := New("/src", "QmRoot", 110, sampleEntries())
	require.NoError(t, err)
	require.NoError(t, Save(m, path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Generator, loaded.Generator)
	assert.Equal(t, "/src", loaded.Source)
	assert.Equal(t, "QmRoot", loaded.Root)
	assert.Equal(t, "110 B", loaded.Size)
	assert.Equal(t, m.Checksum, loaded.Checksum)
	assert.Equal(t, sampleEntries(), loaded.Entries)
}

func TestLoad_ChecksumMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	m, err := New("/src", "QmRoot", 110, sampleEntries())
	require.NoError(t, err)
	m.Entries[1].Cid = "QmTampered"

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = Load(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestChecksum(t *testing.T) {
	entries := sampleEntries()

	sum, err := Checksum(entries)
	require.NoError(t, err)
	again, err := Checksum(sampleEntries())
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	reordered := []Entry{entries[1], entries[0], entries[2]}
	other, err := Checksum(reordered)
	require.NoError(t, err)
	assert.NotEqual(t, sum, other)

	single, err := Checksum(entries[:1])
	require.NoError(t, err)
	empty, err := Checksum(nil)
	require.NoError(t, err)
	assert.Len(t, single, 16)
	assert.NotEqual(t, single, empty)
}

func TestNew_EmptyEntries(t *testing.T) {
	m, err := New("/src", "", 0, nil)
	require.NoError(t, err)

	assert.NotNil(t, m.Entries)
	assert.Equal(t, "0 B", m.Size)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.50 KB", formatSize(1536))
	assert.Equal(t, "2.00 MB", formatSize(2*1024*1024))
	assert.Equal(t, "1.00 GB", formatSize(1024*1024*1024))
}
