package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/google/uuid"
)

const (
	TransferTypeTransfer = "transfer"
	TransferTypeRequest  = "request"

	EventOwnershipRequest      = "ownership_request"
	EventOwnershipRegistration = "ownership_registration"
	EventOwnershipRejected     = "ownership_rejected"
	EventProductRegistered     = "product_registered"
)

// CreateInput opens a transfer. ToUserID is only read when the actor owns
// the product; otherwise the transfer is a request to the current owner.
type CreateInput struct {
	ProductID    string `json:"productId" validate:"required"`
	ToUserID     string `json:"toUserId"`
	TransferType string `json:"transferType"`
	Notes        string `json:"notes" validate:"max=2000"`
}

// CreateTransfer opens an offer when the actor holds the product and a
// request to the holder otherwise
func (s *Service) CreateTransfer(ctx context.Context, actorID string, in CreateInput) (*types.TransferRequest, error) {
	return s.open(ctx, actorID, in, false)
}

// RequestProduct asks the current owner for the product
func (s *Service) RequestProduct(ctx context.Context, actorID, productID, transferType, notes string) (*types.TransferRequest, error) {
	return s.open(ctx, actorID, CreateInput{ProductID: productID, TransferType: transferType, Notes: notes}, true)
}

func (s *Service) open(ctx context.Context, actorID string, in CreateInput, requestOnly bool) (*types.TransferRequest, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var t *types.TransferRequest
	err = s.ledger.Update(ctx, in.ProductID, func(w *ledger.Writer) error {
		product, err := s.products.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}

		t = &types.TransferRequest{
			ID:           uuid.NewString(),
			ProductID:    product.ID,
			InitiatorID:  actor.ID,
			TransferType: in.TransferType,
			Notes:        in.Notes,
			Status:       types.TransferPending,
			CreatedAt:    time.Now().UTC(),
		}

		if product.OwnerID == actor.ID {
			if requestOnly {
				return ledgererr.Validation("you already own this product")
			}
			if in.ToUserID == "" {
				return ledgererr.Validation("recipient is required to offer a product")
			}
			if in.ToUserID == actor.ID {
				return ledgererr.Validation("cannot transfer a product to yourself")
			}
			if _, err := s.users.GetUser(ctx, in.ToUserID); err != nil {
				return err
			}
			t.Direction = types.DirectionOffer
			t.FromUserID = actor.ID
			t.ToUserID = in.ToUserID
			if t.TransferType == "" {
				t.TransferType = TransferTypeTransfer
			}
		} else {
			// the counterparty of a request is whoever holds the product now
			if product.OwnerID == "" {
				return ledgererr.InvalidState("product %s has no owner", product.ID)
			}
			t.Direction = types.DirectionRequest
			t.FromUserID = product.OwnerID
			t.ToUserID = actor.ID
			if t.TransferType == "" {
				t.TransferType = TransferTypeRequest
			}
		}

		pending, err := s.transfers.PendingForProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			return ledgererr.InvalidState("product %s already has a pending transfer %s", product.ID, pending[0].ID)
		}

		return s.transfers.StageTransfer(w.Batch(), t)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Transfer opened",
		"transfer", t.ID,
		"product", t.ProductID,
		"direction", t.Direction,
		"from", t.FromUserID,
		"to", t.ToUserID)

	s.notifyOpened(ctx, actor, t)
	s.logEvent(ctx, types.ProductEvent{
		ProductID: t.ProductID,
		EventType: EventOwnershipRequest,
		Message:   fmt.Sprintf("%s opened a %s transfer", actor.DisplayName(), t.Direction),
		UserID:    actor.ID,
		Extra: map[string]any{
			"transferId": t.ID,
			"direction":  string(t.Direction),
			"fromUserId": t.FromUserID,
			"toUserId":   t.ToUserID,
		},
	})
	return t, nil
}

func (s *Service) notifyOpened(ctx context.Context, actor *types.User, t *types.TransferRequest) {
	n := types.Notification{
		UserID:     t.Counterparty(),
		ProductID:  t.ProductID,
		TransferID: t.ID,
		FromUserID: actor.ID,
	}
	if t.Direction == types.DirectionOffer {
		n.Kind = types.NotifyOwnershipRequest
		n.Title = "Ownership transfer offered"
		n.Message = fmt.Sprintf("%s wants to transfer product ownership to you", actor.DisplayName())
	} else {
		n.Kind = types.NotifyProductRequest
		n.Title = "Product requested"
		n.Message = fmt.Sprintf("%s has requested your product", actor.DisplayName())
	}
	s.notify(ctx, n)
}
