package transfer

import (
	"context"

	"github.com/ddr4869/agrichain/common/types"
)

// OwnershipCheck answers whether a user ever held a product
type OwnershipCheck struct {
	ProductID      string `json:"productId"`
	UserID         string `json:"userId"`
	HasOwned       bool   `json:"hasOwned"`
	IsCurrentOwner bool   `json:"isCurrentOwner"`
}

func (s *Service) GetTransfer(ctx context.Context, id string) (*types.TransferRequest, error) {
	return s.transfers.GetTransfer(ctx, id)
}

// PendingTransfers lists transfers waiting on userID's decision
func (s *Service) PendingTransfers(ctx context.Context, userID string) ([]types.TransferRequest, error) {
	if _, err := s.actor(ctx, userID); err != nil {
		return nil, err
	}
	return s.transfers.PendingForCounterparty(ctx, userID)
}

// GetChain returns the product's ownership chain; unknown products are NotFound
func (s *Service) GetChain(ctx context.Context, productID string) ([]types.OwnershipBlock, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.GetChain(ctx, productID)
}

func (s *Service) VerifyChain(ctx context.Context, productID string) (*types.VerificationResult, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.VerifyChain(ctx, productID)
}

func (s *Service) GetOwnershipHistory(ctx context.Context, userID string) ([]types.ProductOwnership, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.GetOwnershipHistory(ctx, userID)
}

// HasEverOwned checks the ledger owner index and the product's current holder
func (s *Service) HasEverOwned(ctx context.Context, productID, userID string) (*OwnershipCheck, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	owned, err := s.ledger.HasEverOwned(ctx, productID, userID)
	if err != nil {
		return nil, err
	}
	// the chain is authoritative; the product record follows it
	last, err := s.ledger.LastBlock(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	return &OwnershipCheck{
		ProductID:      productID,
		UserID:         userID,
		HasOwned:       owned,
		IsCurrentOwner: last != nil && last.OwnerID == userID,
	}, nil
}
