// Package catalog keeps the records around the ownership ledger: products,
// users, transfer requests, notifications and the product audit log. It shares
// the ledger's storage so its records can commit in the same batch as blocks.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	productPrefix      = "product/"
	userPrefix         = "user/"
	transferPrefix     = "transfer/"
	productTransfers   = "idx/product-transfer/"
	partyTransfers     = "idx/party-transfer/"
	notificationPrefix = "notification/"
	notificationIDs    = "idx/notification/"
	eventPrefix        = "event/"
)

type Catalog struct {
	db  *storage.Storage
	log *zap.SugaredLogger
}

func New(db *storage.Storage) *Catalog {
	return &Catalog{
		db:  db,
		log: logger.Named("catalog"),
	}
}

// getter is satisfied by both Storage and Batch
type getter interface {
	Get(key []byte) ([]byte, error)
}

func getJSON(g getter, key []byte, v any) (bool, error) {
	data, err := g.Get(key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode record %s", key)
	}
	return true, nil
}

func putJSON(b *storage.Batch, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode record %s", key)
	}
	return b.Set(key, data)
}

// commit stages writes with fn and commits them as one batch
func (c *Catalog) commit(fn func(b *storage.Batch) error) error {
	b := c.db.NewBatch()
	defer b.Close()

	if err := fn(b); err != nil {
		return err
	}
	return b.Commit()
}

// timeKey renders nanoseconds so lexicographic order is chronological
func timeKey(nanos int64) string {
	return fmt.Sprintf("%020d", nanos)
}
