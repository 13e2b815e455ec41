package catalog

import (
	"context"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/pkg/errors"
)

func productKey(id string) []byte {
	return []byte(productPrefix + id)
}

// GetProduct returns a NotFound error for unknown ids
func (c *Catalog) GetProduct(ctx context.Context, id string) (*types.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var p types.Product
	found, err := getJSON(c.db, productKey(id), &p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load product %s", id)
	}
	if !found {
		return nil, ledgererr.NotFound("product %s not found", id)
	}
	return &p, nil
}

// ProductName resolves names for ownership history
func (c *Catalog) ProductName(ctx context.Context, id string) (string, bool, error) {
	p, err := c.GetProduct(ctx, id)
	if ledgererr.Is(err, ledgererr.KindNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return p.Name, true, nil
}

// StageProduct writes the product into an open batch
func (c *Catalog) StageProduct(b *storage.Batch, p *types.Product) error {
	if p.ID == "" {
		return ledgererr.Validation("product id is required")
	}
	p.UpdatedAt = time.Now().UTC()
	return putJSON(b, productKey(p.ID), p)
}

// ProductsOwnedBy lists products whose current owner is userID
func (c *Catalog) ProductsOwnedBy(ctx context.Context, userID string) ([]types.Product, error) {
	products := []types.Product{}
	err := c.db.IteratePrefix([]byte(productPrefix), func(key, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var p types.Product
		if _, err := getJSON(rawValue(value), key, &p); err != nil {
			return err
		}
		if p.OwnerID == userID {
			products = append(products, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list products of %s", userID)
	}
	return products, nil
}

// rawValue adapts an iterator value to the getter interface
type rawValue []byte

func (r rawValue) Get([]byte) ([]byte, error) {
	return r, nil
}
