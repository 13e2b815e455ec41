package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.Set([]byte("k"), []byte("v")))

	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	missing, err := s.Get([]byte("nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestIteratePrefixOrderAndBounds(t *testing.T) {
	s := newTestStorage(t)

	for _, k := range []string{"block/b/2", "block/a/2", "block/a/1", "blocks", "owner/a"} {
		require.NoError(t, s.Set([]byte(k), []byte(k)))
	}

	var keys []string
	err := s.IteratePrefix([]byte("block/a/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"block/a/1", "block/a/2"}, keys)

	last, err := s.LastWithPrefix([]byte("block/"))
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "block/b/2", string(last.Key))

	none, err := s.LastWithPrefix([]byte("zzz/"))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBatchIsAtomic(t *testing.T) {
	s := newTestStorage(t)

	b := s.NewBatch()
	require.NoError(t, b.Set([]byte("a"), []byte("1")))
	require.NoError(t, b.Set([]byte("b"), []byte("2")))
	assert.Equal(t, 2, b.Len())

	staged, err := b.Has([]byte("a"))
	require.NoError(t, err)
	assert.True(t, staged, "batch reads see staged writes")

	got, err := s.Get([]byte("a"))
	require.NoError(t, err)
	assert.Nil(t, got, "nothing visible before commit")

	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	got, err = s.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)

	discarded := s.NewBatch()
	require.NoError(t, discarded.Set([]byte("c"), []byte("3")))
	require.NoError(t, discarded.Close())

	got, err = s.Get([]byte("c"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	s, err := New(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	s, err = New(path, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("b"), prefixUpperBound([]byte("a")))
	assert.Equal(t, []byte{0x01}, prefixUpperBound([]byte{0x00, 0xFF}))
	assert.Nil(t, prefixUpperBound([]byte{0xFF, 0xFF}))
}
