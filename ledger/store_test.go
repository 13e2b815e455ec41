package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.Storage) {
	t.Helper()

	db, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, opts...), db
}

func owner(id string, role types.Role) Entry {
	return Entry{OwnerID: id, OwnerName: "name-" + id, OwnerUsername: id, OwnerRole: role}
}

// buildChain appends one block per owner id
func buildChain(t *testing.T, s *Store, productID string, owners ...string) []types.OwnershipBlock {
	t.Helper()

	ctx := context.Background()
	prev := ""
	for _, o := range owners {
		e := owner(o, types.RoleDistributor)
		if prev != "" {
			e.AddedBy = prev
		}
		_, err := s.Append(ctx, productID, e)
		require.NoError(t, err)
		prev = o
	}

	chain, err := s.GetChain(ctx, productID)
	require.NoError(t, err)
	require.Len(t, chain, len(owners))
	return chain
}

// overwrite bypasses the append-only API to simulate tampering at rest
func overwrite(t *testing.T, db *storage.Storage, block types.OwnershipBlock, storedAt uint64) {
	t.Helper()

	data, err := blockutil.MarshalBlock(&block)
	require.NoError(t, err)
	require.NoError(t, db.Set(blockKey(block.ProductID, storedAt), data))
}

func TestAppendBuildsLinkedChain(t *testing.T) {
	s, _ := newTestStore(t)
	chain := buildChain(t, s, "p1", "farmer", "distributor", "retailer", "consumer")

	for i, block := range chain {
		assert.Equal(t, uint64(i+1), block.BlockNumber)
		assert.True(t, blockutil.VerifyBlockHash(&block))
		if i == 0 {
			assert.Nil(t, block.PreviousBlockHash)
			assert.Equal(t, blockutil.TransferTypeInitial, block.TransferType)
			assert.Equal(t, "farmer", block.AddedBy)
			continue
		}
		require.NotNil(t, block.PreviousBlockHash)
		assert.Equal(t, chain[i-1].BlockHash, *block.PreviousBlockHash)
		assert.Equal(t, chain[i-1].OwnerID, block.AddedBy)
		assert.Equal(t, blockutil.TransferTypeTransfer, block.TransferType)
	}

	last, err := s.LastBlock(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "consumer", last.OwnerID)
}

func TestGetChainEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	chain, err := s.GetChain(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, chain)

	last, err := s.LastBlock(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestChainsAreIsolatedPerProduct(t *testing.T) {
	s, _ := newTestStore(t)
	buildChain(t, s, "p1", "farmer", "distributor")
	// "p1x" shares a string prefix with "p1"
	buildChain(t, s, "p1x", "farmer")

	chain, err := s.GetChain(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestInvalidIDs(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Append(ctx, "", owner("farmer", types.RoleFarmer))
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	_, err = s.Append(ctx, "a/b", owner("farmer", types.RoleFarmer))
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	_, err = s.Append(ctx, "p1", Entry{})
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	_, err = s.HasEverOwned(ctx, "p1", "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))
}

func TestUpdateIsAllOrNothing(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	buildChain(t, s, "p1", "farmer")

	boom := errors.New("boom")
	err := s.Update(ctx, "p1", func(w *Writer) error {
		if _, err := w.Append(owner("distributor", types.RoleDistributor)); err != nil {
			return err
		}
		require.NoError(t, w.Batch().Set([]byte("side/record"), []byte("x")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	chain, err := s.GetChain(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	owned, err := s.HasEverOwned(ctx, "p1", "distributor")
	require.NoError(t, err)
	assert.False(t, owned)
}

func TestUpdateStagesSeveralBlocks(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, "p1", func(w *Writer) error {
		first, err := w.Append(owner("farmer", types.RoleFarmer))
		if err != nil {
			return err
		}
		second, err := w.Append(owner("distributor", types.RoleDistributor))
		if err != nil {
			return err
		}
		assert.Equal(t, first.BlockHash, *second.PreviousBlockHash)
		assert.Equal(t, second, w.Last())
		return w.Batch().Set([]byte("side/record"), []byte("x"))
	})
	require.NoError(t, err)

	side, err := db.Get([]byte("side/record"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), side)

	result, err := s.VerifyChain(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Length)
}

func TestUpdateHonoursCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Append(ctx, "p1", owner("farmer", types.RoleFarmer))
	assert.ErrorIs(t, err, context.Canceled)

	ctx2, cancel2 := context.WithCancel(context.Background())
	err = s.Update(ctx2, "p1", func(w *Writer) error {
		_, err := w.Append(owner("farmer", types.RoleFarmer))
		cancel2()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	chain, err := s.GetChain(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestConcurrentAppendsNeverFork(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	buildChain(t, s, "p1", "farmer")

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(ctx, "p1", owner(fmt.Sprintf("user-%d", i), types.RoleConsumer))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	chain, err := s.GetChain(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, chain, writers+1)
	for i, block := range chain {
		assert.Equal(t, uint64(i+1), block.BlockNumber)
	}

	result, err := s.VerifyChain(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, result.Valid, "defects: %v", result.Errors)
	assert.Zero(t, s.locks.size(), "locks are released")
}

func TestHasEverOwnedAndHistory(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	buildChain(t, s, "p2", "farmer", "distributor", "farmer")
	buildChain(t, s, "p1", "farmer", "retailer")

	owned, err := s.HasEverOwned(ctx, "p2", "distributor")
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = s.HasEverOwned(ctx, "p1", "distributor")
	require.NoError(t, err)
	assert.False(t, owned)

	history, err := s.GetOwnershipHistory(ctx, "farmer")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "p1", history[0].ProductID)
	assert.Len(t, history[0].Records, 1)
	assert.Equal(t, "p2", history[1].ProductID)
	require.Len(t, history[1].Records, 2)
	assert.Equal(t, uint64(1), history[1].Records[0].BlockNumber)
	assert.Equal(t, uint64(3), history[1].Records[1].BlockNumber)

	empty, err := s.GetOwnershipHistory(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type staticNamer map[string]string

func (n staticNamer) ProductName(_ context.Context, id string) (string, bool, error) {
	name, ok := n[id]
	return name, ok, nil
}

func TestHistoryResolvesProductNames(t *testing.T) {
	s, _ := newTestStore(t, WithProductNamer(staticNamer{"p1": "Tomatoes"}))
	ctx := context.Background()

	buildChain(t, s, "p1", "farmer")
	buildChain(t, s, "gone", "farmer")

	history, err := s.GetOwnershipHistory(ctx, "farmer")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Tomatoes", history[0].ProductName)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	tamper := map[string]func(b *types.OwnershipBlock){
		"owner":         func(b *types.OwnershipBlock) { b.OwnerID = "mallory" },
		"block number":  func(b *types.OwnershipBlock) { b.BlockNumber += 10 },
		"previous hash": func(b *types.OwnershipBlock) { h := "forged"; b.PreviousBlockHash = &h },
	}

	for name, mutate := range tamper {
		// every block but the last one
		for target := 0; target < 3; target++ {
			t.Run(fmt.Sprintf("%s of block %d", name, target+1), func(t *testing.T) {
				s, db := newTestStore(t)
				chain := buildChain(t, s, "p1", "farmer", "distributor", "retailer", "consumer")

				block := chain[target]
				mutate(&block)
				overwrite(t, db, block, chain[target].BlockNumber)

				result, err := s.VerifyChain(context.Background(), "p1")
				require.NoError(t, err)
				assert.False(t, result.Valid)
				require.NotEmpty(t, result.Errors)

				var pinpointed bool
				for _, d := range result.Errors {
					if d.BlockNumber == block.BlockNumber || d.BlockNumber == chain[target].BlockNumber+1 {
						pinpointed = true
					}
				}
				assert.True(t, pinpointed, "defects %v should name block %d", result.Errors, block.BlockNumber)
			})
		}
	}
}
