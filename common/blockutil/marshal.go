package blockutil

import (
	"encoding/json"

	"github.com/ddr4869/agrichain/common/types"
	"github.com/pkg/errors"
)

func MarshalBlock(block *types.OwnershipBlock) ([]byte, error) {
	data, err := json.Marshal(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal ownership block")
	}
	return data, nil
}

func UnmarshalBlock(data []byte) (*types.OwnershipBlock, error) {
	block := &types.OwnershipBlock{}
	if err := json.Unmarshal(data, block); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal ownership block")
	}
	return block, nil
}
