package blockutil

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/ddr4869/agrichain/common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlockHash(t *testing.T) {
	t.Run("genesis uses the sentinel", func(t *testing.T) {
		sum := sha256.Sum256([]byte("p1-farmer-1-genesis"))
		assert.Equal(t, hex.EncodeToString(sum[:]), ComputeBlockHash("p1", "farmer", 1, nil))
	})

	t.Run("links to the previous hash", func(t *testing.T) {
		prev := ComputeBlockHash("p1", "farmer", 1, nil)
		sum := sha256.Sum256([]byte("p1-distributor-2-" + prev))
		assert.Equal(t, hex.EncodeToString(sum[:]), ComputeBlockHash("p1", "distributor", 2, &prev))
	})

	t.Run("deterministic and fixed length", func(t *testing.T) {
		a := ComputeBlockHash("p1", "farmer", 1, nil)
		b := ComputeBlockHash("p1", "farmer", 1, nil)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("every input changes the digest", func(t *testing.T) {
		prev := "abc"
		base := ComputeBlockHash("p1", "farmer", 2, &prev)
		other := "abd"
		assert.NotEqual(t, base, ComputeBlockHash("p2", "farmer", 2, &prev))
		assert.NotEqual(t, base, ComputeBlockHash("p1", "retailer", 2, &prev))
		assert.NotEqual(t, base, ComputeBlockHash("p1", "farmer", 3, &prev))
		assert.NotEqual(t, base, ComputeBlockHash("p1", "farmer", 2, &other))
	})
}

func TestNextPositionAndSeal(t *testing.T) {
	number, prev := NextPosition(nil)
	assert.Equal(t, uint64(1), number)
	assert.Nil(t, prev)

	genesis := SealBlock(&types.OwnershipBlock{ProductID: "p1", OwnerID: "farmer", BlockNumber: 1})
	assert.Equal(t, TransferTypeInitial, genesis.TransferType)
	assert.True(t, VerifyBlockHash(genesis))

	next := NewBlock("p1", genesis)
	require.NotNil(t, next.PreviousBlockHash)
	assert.Equal(t, uint64(2), next.BlockNumber)
	assert.Equal(t, genesis.BlockHash, *next.PreviousBlockHash)
	assert.NotEmpty(t, next.ID)

	next.OwnerID = "distributor"
	SealBlock(next)
	assert.Equal(t, TransferTypeTransfer, next.TransferType)
	assert.True(t, VerifyBlockHash(next))

	next.OwnerID = "mallory"
	assert.False(t, VerifyBlockHash(next))
}

func TestMarshalRoundTripKeepsHash(t *testing.T) {
	block := SealBlock(&types.OwnershipBlock{ProductID: "p1", OwnerID: "farmer", BlockNumber: 1, EditableFields: []string{"quantity"}})

	data, err := MarshalBlock(block)
	require.NoError(t, err)

	decoded, err := UnmarshalBlock(data)
	require.NoError(t, err)
	assert.Nil(t, decoded.PreviousBlockHash)
	assert.True(t, VerifyBlockHash(decoded))
	assert.Contains(t, decoded.EditableFields, "quantity")
}
