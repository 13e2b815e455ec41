package ledger

import (
	"context"

	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
)

// Entry describes the party taking ownership in a new block
type Entry struct {
	OwnerID        string
	OwnerName      string
	OwnerUsername  string
	OwnerRole      types.Role
	AddedBy        string // defaults to OwnerID, as for a genesis block
	TransferType   string
	EditableFields []string
}

// Writer is handed to Update callbacks. It is only valid inside the callback.
type Writer struct {
	ctx       context.Context
	store     *Store
	productID string
	batch     *storage.Batch
	last      *types.OwnershipBlock
	appended  []*types.OwnershipBlock
}

// ProductID returns the product whose chain is locked
func (w *Writer) ProductID() string {
	return w.productID
}

// Last returns the newest block, counting blocks staged by this writer
func (w *Writer) Last() *types.OwnershipBlock {
	return w.last
}

// Batch exposes the pending batch so related records commit with the blocks
func (w *Writer) Batch() *storage.Batch {
	return w.batch
}

// Verify checks the committed chain. The product lock is held, so the result
// describes exactly the chain new blocks will be linked onto.
func (w *Writer) Verify() (*types.VerificationResult, error) {
	return w.store.VerifyChain(w.ctx, w.productID)
}

// Append stages the next block of the chain
func (w *Writer) Append(entry Entry) (*types.OwnershipBlock, error) {
	if !validID(entry.OwnerID) {
		return nil, ledgererr.Validation("owner id is required for product %s", w.productID)
	}
	if entry.AddedBy == "" {
		entry.AddedBy = entry.OwnerID
	}

	block := blockutil.NewBlock(w.productID, w.last)
	block.OwnerID = entry.OwnerID
	block.OwnerName = entry.OwnerName
	block.OwnerUsername = entry.OwnerUsername
	block.OwnerRole = entry.OwnerRole
	block.AddedBy = entry.AddedBy
	block.TransferType = entry.TransferType
	block.EditableFields = append([]string{}, entry.EditableFields...)
	blockutil.SealBlock(block)

	key := blockKey(w.productID, block.BlockNumber)
	exists, err := w.batch.Has(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ledgererr.InvalidState("block %d already exists for product %s", block.BlockNumber, w.productID)
	}

	data, err := blockutil.MarshalBlock(block)
	if err != nil {
		return nil, err
	}
	if err := w.batch.Set(key, data); err != nil {
		return nil, err
	}
	if err := w.batch.Set(ownerIndexKey(block.OwnerID, w.productID, block.BlockNumber), key); err != nil {
		return nil, err
	}

	w.last = block
	w.appended = append(w.appended, block)
	return block, nil
}
