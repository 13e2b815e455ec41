package catalog

import (
	"context"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// LogProductEvent appends an entry to a product's audit log
func (c *Catalog) LogProductEvent(ctx context.Context, e types.ProductEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ProductID == "" {
		return ledgererr.Validation("product id is required for events")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	key := []byte(eventPrefix + e.ProductID + "/" + timeKey(e.CreatedAt.UnixNano()) + "/" + e.ID)
	err := c.commit(func(b *storage.Batch) error {
		return putJSON(b, key, &e)
	})
	return errors.Wrapf(err, "failed to log %s event for product %s", e.EventType, e.ProductID)
}

// ProductEvents returns a product's audit log, oldest first
func (c *Catalog) ProductEvents(ctx context.Context, productID string) ([]types.ProductEvent, error) {
	out := []types.ProductEvent{}
	err := c.db.IteratePrefix([]byte(eventPrefix+productID+"/"), func(key, value []byte) error {
		var e types.ProductEvent
		if _, err := getJSON(rawValue(value), key, &e); err != nil {
			return err
		}
		out = append(out, e)
		return ctx.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list events of product %s", productID)
	}
	return out, nil
}
