package ledger

import (
	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/types"
)

const (
	ReasonPreviousHashMismatch = "previous hash mismatch - chain integrity compromised"
	ReasonSequenceBroken       = "block number sequence broken"
	ReasonHashMismatch         = "hash verification failed - data may have been tampered with"
)

// Verify walks a chain ordered by block number and reports every defect it
// finds. A chain of zero or one block is valid. Longer chains also have their
// genesis block checked, since a rewritten genesis would otherwise still be
// linked to by block 2.
func Verify(productID string, chain []types.OwnershipBlock) *types.VerificationResult {
	result := &types.VerificationResult{
		ProductID: productID,
		Valid:     true,
		Length:    len(chain),
		Errors:    []types.BlockDefect{},
	}
	if len(chain) <= 1 {
		return result
	}

	defect := func(block *types.OwnershipBlock, reason string) {
		result.Errors = append(result.Errors, types.BlockDefect{BlockNumber: block.BlockNumber, Reason: reason})
	}

	genesis := &chain[0]
	if genesis.PreviousBlockHash != nil {
		defect(genesis, ReasonPreviousHashMismatch)
	}
	if genesis.BlockNumber != 1 {
		defect(genesis, ReasonSequenceBroken)
	}
	if !blockutil.VerifyBlockHash(genesis) {
		defect(genesis, ReasonHashMismatch)
	}

	for i := 1; i < len(chain); i++ {
		current, previous := &chain[i], &chain[i-1]

		if current.PreviousBlockHash == nil || *current.PreviousBlockHash != previous.BlockHash {
			defect(current, ReasonPreviousHashMismatch)
		}
		if current.BlockNumber != previous.BlockNumber+1 {
			defect(current, ReasonSequenceBroken)
		}
		if !blockutil.VerifyBlockHash(current) {
			defect(current, ReasonHashMismatch)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
