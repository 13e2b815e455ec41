package storage

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/pkg/errors"
)

// KeyValue is a raw pair handed out by iteration
type KeyValue struct {
	Key   []byte
	Value []byte
}

// Storage is the single shared key-value store behind the ledger and its
// collaborators. Every write is synced before Commit returns.
type Storage struct {
	db *pebble.DB
}

// Options tunes the pebble instance
type Options struct {
	CacheSize    int64
	MemTableSize uint64
}

// DefaultOptions mirrors a small single node deployment
func DefaultOptions() Options {
	return Options{
		CacheSize:    32 << 20,
		MemTableSize: 16 << 20,
	}
}

// New opens (or creates) a pebble database at path
func New(path string, opts Options) (*Storage, error) {
	if path == "" {
		return nil, errors.New("storage path cannot be empty")
	}
	return open(path, opts, nil)
}

// NewInMemory opens a pebble database on an in-memory filesystem
func NewInMemory() (*Storage, error) {
	return open("", DefaultOptions(), vfs.NewMem())
}

func open(path string, opts Options, fs vfs.FS) (*Storage, error) {
	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	pebbleOpts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                opts.MemTableSize,
		MemTableStopWritesThreshold: 2,
		Logger:                      logger.Named("pebble"),
		FS:                          fs,
	}

	db, err := pebble.Open(path, pebbleOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open storage at %q", path)
	}

	logger.Debugf("Opened storage at %q", path)
	return &Storage{db: db}, nil
}

// Get retrieves the value for the given key. Returns nil if the key does not exist.
func (s *Storage) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read key %q", key)
	}
	defer closer.Close()

	// value is only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// Set stores a single pair durably
func (s *Storage) Set(key, value []byte) error {
	if err := s.db.Set(key, value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "failed to write key %q", key)
	}
	return nil
}

// IteratePrefix calls fn for each key-value pair with the given prefix in
// lexicographic key order. If fn returns an error, iteration stops.
func (s *Storage) IteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return errors.Wrap(err, "failed to create iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		value, err := iter.ValueAndErr()
		if err != nil {
			return errors.Wrap(err, "failed to read iterator value")
		}
		if err := fn(iter.Key(), value); err != nil {
			return err
		}
	}

	return iter.Error()
}

// LastWithPrefix returns the greatest key under prefix, or nil when none exists
func (s *Storage) LastWithPrefix(prefix []byte) (*KeyValue, error) {
	iter, err := s.db.NewIter(prefixOptions(prefix))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create iterator")
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, iter.Error()
	}
	value, err := iter.ValueAndErr()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read iterator value")
	}

	return &KeyValue{
		Key:   append([]byte(nil), iter.Key()...),
		Value: append([]byte(nil), value...),
	}, nil
}

// NewBatch starts an indexed batch; reads through it see staged writes
func (s *Storage) NewBatch() *Batch {
	return &Batch{b: s.db.NewIndexedBatch()}
}

// Close flushes and closes the database
func (s *Storage) Close() error {
	if err := s.db.Flush(); err != nil {
		logger.Warnf("Failed to flush storage before close: %v", err)
	}
	return s.db.Close()
}

func prefixOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	}
}

// prefixUpperBound computes the exclusive upper bound for a prefix scan.
// Returns nil if prefix is all 0xFF.
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)

	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper[:i+1]
		}
	}

	return nil
}
