package ledger

import (
	"fmt"
	"strings"
)

const (
	blockPrefix = "block/"
	ownerPrefix = "owner/"
)

// Block numbers are zero padded so lexicographic order equals numeric order.
func blockKey(productID string, blockNumber uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", blockPrefix, productID, blockNumber))
}

func chainPrefix(productID string) []byte {
	return []byte(blockPrefix + productID + "/")
}

func ownerIndexKey(ownerID, productID string, blockNumber uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%020d", ownerPrefix, ownerID, productID, blockNumber))
}

func ownerIndexPrefix(ownerID string) []byte {
	return []byte(ownerPrefix + ownerID + "/")
}

func ownerProductPrefix(ownerID, productID string) []byte {
	return []byte(ownerPrefix + ownerID + "/" + productID + "/")
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}
