package catalog

import (
	"context"
	"sort"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/storage"
	"github.com/pkg/errors"
)

func transferKey(id string) []byte {
	return []byte(transferPrefix + id)
}

func productTransferKey(productID, transferID string) []byte {
	return []byte(productTransfers + productID + "/" + transferID)
}

func partyTransferKey(userID, transferID string) []byte {
	return []byte(partyTransfers + userID + "/" + transferID)
}

// GetTransfer returns a NotFound error for unknown ids
func (c *Catalog) GetTransfer(ctx context.Context, id string) (*types.TransferRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t types.TransferRequest
	found, err := getJSON(c.db, transferKey(id), &t)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load transfer %s", id)
	}
	if !found {
		return nil, ledgererr.NotFound("transfer %s not found", id)
	}
	return &t, nil
}

// StageTransfer writes the transfer and its lookup indexes into an open batch
func (c *Catalog) StageTransfer(b *storage.Batch, t *types.TransferRequest) error {
	if t.ID == "" || t.ProductID == "" {
		return ledgererr.Validation("transfer id and product id are required")
	}
	if err := putJSON(b, transferKey(t.ID), t); err != nil {
		return err
	}
	if err := b.Set(productTransferKey(t.ProductID, t.ID), []byte(t.ID)); err != nil {
		return err
	}
	return b.Set(partyTransferKey(t.Counterparty(), t.ID), []byte(t.ID))
}

// TransfersForProduct lists every transfer ever opened on a product, oldest first
func (c *Catalog) TransfersForProduct(ctx context.Context, productID string) ([]types.TransferRequest, error) {
	return c.transfersByIndex(ctx, []byte(productTransfers+productID+"/"), nil)
}

// PendingForProduct lists the product's transfers still awaiting a decision
func (c *Catalog) PendingForProduct(ctx context.Context, productID string) ([]types.TransferRequest, error) {
	return c.transfersByIndex(ctx, []byte(productTransfers+productID+"/"), pendingOnly)
}

// PendingForCounterparty lists pending transfers userID has to accept or reject
func (c *Catalog) PendingForCounterparty(ctx context.Context, userID string) ([]types.TransferRequest, error) {
	return c.transfersByIndex(ctx, []byte(partyTransfers+userID+"/"), pendingOnly)
}

func pendingOnly(t *types.TransferRequest) bool {
	return t.IsPending()
}

func (c *Catalog) transfersByIndex(ctx context.Context, prefix []byte, keep func(*types.TransferRequest) bool) ([]types.TransferRequest, error) {
	var ids []string
	err := c.db.IteratePrefix(prefix, func(key, value []byte) error {
		ids = append(ids, string(value))
		return ctx.Err()
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan transfer index %s", prefix)
	}

	transfers := []types.TransferRequest{}
	for _, id := range ids {
		t, err := c.GetTransfer(ctx, id)
		if ledgererr.Is(err, ledgererr.KindNotFound) {
			c.log.Warnw("Transfer index points at a missing transfer", "transfer", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(t) {
			transfers = append(transfers, *t)
		}
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.Before(transfers[j].CreatedAt)
	})
	return transfers, nil
}
