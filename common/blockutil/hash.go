package blockutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ddr4869/agrichain/common/types"
)

const (
	// GenesisSentinel stands in for the previous hash of block 1
	GenesisSentinel = "genesis"

	hashSeparator = "-"
)

// ComputeBlockHash derives the hex SHA-256 digest that links an ownership block
// to its predecessor. Only the product, owner, position and previous hash take
// part; everything else on the block is informational.
func ComputeBlockHash(productID, ownerID string, blockNumber uint64, previousHash *string) string {
	prev := GenesisSentinel
	if previousHash != nil && *previousHash != "" {
		prev = *previousHash
	}

	data := strings.Join([]string{
		productID,
		ownerID,
		strconv.FormatUint(blockNumber, 10),
		prev,
	}, hashSeparator)

	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// CalculateBlockHash recomputes the hash of a stored block from its own fields
func CalculateBlockHash(block *types.OwnershipBlock) string {
	if block == nil {
		return ""
	}
	return ComputeBlockHash(block.ProductID, block.OwnerID, block.BlockNumber, block.PreviousBlockHash)
}

// VerifyBlockHash reports whether the stored hash re-derives exactly
func VerifyBlockHash(block *types.OwnershipBlock) bool {
	return block != nil && block.BlockHash == CalculateBlockHash(block)
}
