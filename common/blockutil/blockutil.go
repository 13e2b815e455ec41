package blockutil

import (
	"time"

	"github.com/ddr4869/agrichain/common/types"
	"github.com/google/uuid"
)

const (
	TransferTypeInitial  = "initial"
	TransferTypeTransfer = "transfer"
)

// NextPosition returns the block number and previous hash for the block that
// follows last. An empty chain starts at 1 with no predecessor.
func NextPosition(last *types.OwnershipBlock) (uint64, *string) {
	if last == nil {
		return 1, nil
	}
	prev := last.BlockHash
	return last.BlockNumber + 1, &prev
}

// NewBlock assembles an unsealed block at the position following last
func NewBlock(productID string, last *types.OwnershipBlock) *types.OwnershipBlock {
	number, prev := NextPosition(last)
	return &types.OwnershipBlock{
		ID:                uuid.NewString(),
		ProductID:         productID,
		BlockNumber:       number,
		PreviousBlockHash: prev,
		CreatedAt:         time.Now().UTC(),
	}
}

// SealBlock fills in the default transfer type and the block hash
func SealBlock(block *types.OwnershipBlock) *types.OwnershipBlock {
	if block.TransferType == "" {
		if block.IsGenesis() {
			block.TransferType = TransferTypeInitial
		} else {
			block.TransferType = TransferTypeTransfer
		}
	}
	block.BlockHash = CalculateBlockHash(block)
	return block
}
