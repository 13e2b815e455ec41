package storage

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// Batch stages writes that commit atomically or not at all
type Batch struct {
	b *pebble.Batch
}

// Get reads a key through the batch, seeing staged writes first
func (b *Batch) Get(key []byte) ([]byte, error) {
	value, closer, err := b.b.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read key %q", key)
	}
	defer closer.Close()

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Has reports whether the key exists in the batch or the database
func (b *Batch) Has(key []byte) (bool, error) {
	value, err := b.Get(key)
	if err != nil {
		return false, err
	}
	return value != nil, nil
}

// Set stages a write
func (b *Batch) Set(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return errors.Wrapf(err, "failed to stage key %q", key)
	}
	return nil
}

// Len returns the number of staged operations
func (b *Batch) Len() int {
	return int(b.b.Count())
}

// Commit writes every staged pair with a WAL sync
func (b *Batch) Commit() error {
	if err := b.b.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "failed to commit batch")
	}
	return nil
}

// Close releases the batch. An uncommitted batch is discarded.
func (b *Batch) Close() error {
	return b.b.Close()
}
