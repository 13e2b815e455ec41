package ledger

import (
	"context"
	"sort"

	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ProductNamer resolves product names for ownership history. found is false
// for products that no longer exist; their records are left out.
type ProductNamer interface {
	ProductName(ctx context.Context, productID string) (name string, found bool, err error)
}

// Store is the append-only ownership ledger. Blocks are only ever written
// through Update, which serializes writers per product.
type Store struct {
	db    *storage.Storage
	locks *keyedMutex
	names ProductNamer
	log   *zap.SugaredLogger
}

type Option func(*Store)

// WithProductNamer enables product names in ownership history
func WithProductNamer(n ProductNamer) Option {
	return func(s *Store) {
		s.names = n
	}
}

func NewStore(db *storage.Storage, opts ...Option) *Store {
	s := &Store{
		db:    db,
		locks: newKeyedMutex(),
		log:   logger.Named("ledger"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn while holding the product's append lock. Writes staged via
// the Writer commit as one batch after fn returns nil; nothing is written if
// fn or the context fails.
func (s *Store) Update(ctx context.Context, productID string, fn func(w *Writer) error) error {
	if !validID(productID) {
		return ledgererr.Validation("invalid product id %q", productID)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "ledger update cancelled")
	}

	unlock := s.locks.Lock(productID)
	defer unlock()

	last, err := s.lastBlock(productID)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	w := &Writer{
		ctx:       ctx,
		store:     s,
		productID: productID,
		batch:     batch,
		last:      last,
	}
	if err := fn(w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "ledger update cancelled before commit")
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := batch.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit ledger update for product %s", productID)
	}

	for _, b := range w.appended {
		s.log.Infow("Appended ownership block",
			"product", b.ProductID,
			"block", b.BlockNumber,
			"owner", b.OwnerID,
			"hash", b.BlockHash)
	}
	return nil
}

// Append adds one block on its own
func (s *Store) Append(ctx context.Context, productID string, entry Entry) (*types.OwnershipBlock, error) {
	var block *types.OwnershipBlock
	err := s.Update(ctx, productID, func(w *Writer) error {
		var err error
		block, err = w.Append(entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetChain returns all blocks of a product ordered by block number
func (s *Store) GetChain(ctx context.Context, productID string) ([]types.OwnershipBlock, error) {
	if !validID(productID) {
		return nil, ledgererr.Validation("invalid product id %q", productID)
	}

	chain := []types.OwnershipBlock{}
	err := s.db.IteratePrefix(chainPrefix(productID), func(key, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := blockutil.UnmarshalBlock(value)
		if err != nil {
			return errors.Wrapf(err, "corrupt ledger entry %s", key)
		}
		chain = append(chain, *block)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load chain for product %s", productID)
	}

	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].BlockNumber < chain[j].BlockNumber
	})
	return chain, nil
}

// LastBlock returns the highest block of a product, nil for an empty chain
func (s *Store) LastBlock(ctx context.Context, productID string) (*types.OwnershipBlock, error) {
	if !validID(productID) {
		return nil, ledgererr.Validation("invalid product id %q", productID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.lastBlock(productID)
}

func (s *Store) lastBlock(productID string) (*types.OwnershipBlock, error) {
	kv, err := s.db.LastWithPrefix(chainPrefix(productID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read last block of product %s", productID)
	}
	if kv == nil {
		return nil, nil
	}
	return blockutil.UnmarshalBlock(kv.Value)
}

// VerifyChain loads and verifies a product chain
func (s *Store) VerifyChain(ctx context.Context, productID string) (*types.VerificationResult, error) {
	chain, err := s.GetChain(ctx, productID)
	if err != nil {
		return nil, err
	}

	result := Verify(productID, chain)
	if !result.Valid {
		s.log.Warnw("Ownership chain failed verification", "product", productID, "defects", len(result.Errors))
	}
	return result, nil
}

// HasEverOwned reports whether userID owns any block of the product's chain
func (s *Store) HasEverOwned(ctx context.Context, productID, userID string) (bool, error) {
	if !validID(productID) || !validID(userID) {
		return false, ledgererr.Validation("product id and user id are required")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	kv, err := s.db.LastWithPrefix(ownerProductPrefix(userID, productID))
	if err != nil {
		return false, errors.Wrap(err, "failed to read owner index")
	}
	return kv != nil, nil
}

// GetOwnershipHistory returns every block owned by userID grouped by product
func (s *Store) GetOwnershipHistory(ctx context.Context, userID string) ([]types.ProductOwnership, error) {
	if !validID(userID) {
		return nil, ledgererr.Validation("invalid user id %q", userID)
	}

	var blockKeys [][]byte
	err := s.db.IteratePrefix(ownerIndexPrefix(userID), func(key, value []byte) error {
		blockKeys = append(blockKeys, append([]byte(nil), value...))
		return ctx.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan ownership history of %s", userID)
	}

	history := []types.ProductOwnership{}
	for _, key := range blockKeys {
		value, err := s.db.Get(key)
		if err != nil {
			return nil, err
		}
		if value == nil {
			s.log.Warnw("Owner index points at a missing block", "key", string(key))
			continue
		}
		block, err := blockutil.UnmarshalBlock(value)
		if err != nil {
			return nil, err
		}

		// index keys are ordered by product then block number
		if n := len(history); n > 0 && history[n-1].ProductID == block.ProductID {
			history[n-1].Records = append(history[n-1].Records, *block)
			continue
		}
		history = append(history, types.ProductOwnership{
			ProductID: block.ProductID,
			Records:   []types.OwnershipBlock{*block},
		})
	}

	if s.names == nil {
		return history, nil
	}

	named := history[:0]
	for _, group := range history {
		name, found, err := s.names.ProductName(ctx, group.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve product %s", group.ProductID)
		}
		if !found {
			continue
		}
		group.ProductName = name
		named = append(named, group)
	}
	return named, nil
}

// GetBlock returns one block, NotFound when the position is empty
func (s *Store) GetBlock(ctx context.Context, productID string, blockNumber uint64) (*types.OwnershipBlock, error) {
	if !validID(productID) {
		return nil, ledgererr.Validation("invalid product id %q", productID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := s.db.Get(blockKey(productID, blockNumber))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read block %d of product %s", blockNumber, productID)
	}
	if value == nil {
		return nil, ledgererr.NotFound("block %d of product %s not found", blockNumber, productID)
	}
	return blockutil.UnmarshalBlock(value)
}
