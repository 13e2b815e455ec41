package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/ddr4869/agrichain/registration"
)

// AcceptEditableFields are the fields a new owner may edit after a transfer
var AcceptEditableFields = []string{registration.FieldQuantity, registration.FieldLocation}

// AcceptResult is returned by AcceptTransfer. AlreadyCompleted marks a repeated
// acceptance, which changes nothing and reports the original outcome.
type AcceptResult struct {
	Transfer         *types.TransferRequest `json:"transfer"`
	Block            *types.OwnershipBlock  `json:"block,omitempty"`
	Product          *types.Product         `json:"product,omitempty"`
	RegisteredFields []string               `json:"registeredFields,omitempty"`
	AlreadyCompleted bool                   `json:"alreadyCompleted"`
}

// loadForDecision returns the transfer if actorID is the party that must decide it
func (s *Service) loadForDecision(ctx context.Context, actorID, transferID string) (*types.TransferRequest, error) {
	if transferID == "" {
		return nil, ledgererr.Validation("transfer id is required")
	}
	t, err := s.transfers.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if actorID == "" || t.Counterparty() != actorID {
		return nil, ledgererr.Unauthorized("user %s may not decide transfer %s", actorID, transferID)
	}
	return t, nil
}

// AcceptTransfer completes a pending transfer: the product changes hands, the
// submitted registration fields are merged into it and a new block is linked
// onto the verified chain, all in one commit. form is always read against
// the registration form of the new owner (ToUserID), so for a request the
// accepting holder fills in the requester's details.
func (s *Service) AcceptTransfer(ctx context.Context, actorID, transferID string, form map[string]any, fileRef string) (*AcceptResult, error) {
	t, err := s.loadForDecision(ctx, actorID, transferID)
	if err != nil {
		return nil, err
	}

	var (
		result *AcceptResult
		merged *registration.Result
		prev   string
	)
	err = s.ledger.Update(ctx, t.ProductID, func(w *ledger.Writer) error {
		// re-read under the product lock; a concurrent accept may have won
		current, err := s.transfers.GetTransfer(ctx, t.ID)
		if err != nil {
			return err
		}
		switch current.Status {
		case types.TransferCompleted:
			result = &AcceptResult{Transfer: current, AlreadyCompleted: true}
			return nil
		case types.TransferRejected:
			return ledgererr.InvalidState("transfer %s was rejected", current.ID)
		}

		product, err := s.products.GetProduct(ctx, current.ProductID)
		if err != nil {
			return err
		}
		if product.OwnerID != current.FromUserID {
			return ledgererr.InvalidState("product %s is no longer held by %s", product.ID, current.FromUserID)
		}
		if last := w.Last(); last != nil && last.OwnerID != current.FromUserID {
			return ledgererr.InvalidState("ledger of product %s ends with owner %s, not %s", product.ID, last.OwnerID, current.FromUserID)
		}

		newOwner, err := s.users.GetUser(ctx, current.ToUserID)
		if err != nil {
			return err
		}
		merged, err = registration.Merge(newOwner.Role, form, fileRef)
		if err != nil {
			return err
		}

		verification, err := w.Verify()
		if err != nil {
			return err
		}
		if !verification.Valid {
			return ledgererr.Integrity(product.ID, verification.Errors)
		}

		block, err := w.Append(ledger.Entry{
			OwnerID:        newOwner.ID,
			OwnerName:      newOwner.Name,
			OwnerUsername:  newOwner.Username,
			OwnerRole:      newOwner.Role,
			AddedBy:        current.FromUserID,
			TransferType:   current.TransferType,
			EditableFields: AcceptEditableFields,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		current.Status = types.TransferCompleted
		current.ResolvedAt = &now
		current.BlockNumber = block.BlockNumber
		current.BlockHash = block.BlockHash
		if proof, ok := merged.Values[registration.FieldPaymentProofURL].(string); ok {
			current.PaymentProofURL = proof
		}
		if err := s.transfers.StageTransfer(w.Batch(), current); err != nil {
			return err
		}

		prev = product.OwnerID
		merged.Apply(product)
		product.OwnerID = newOwner.ID
		if err := s.products.StageProduct(w.Batch(), product); err != nil {
			return err
		}

		result = &AcceptResult{
			Transfer:         current,
			Block:            block,
			Product:          product,
			RegisteredFields: merged.Registered,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.AlreadyCompleted {
		if result.Transfer.BlockNumber > 0 {
			block, err := s.ledger.GetBlock(ctx, result.Transfer.ProductID, result.Transfer.BlockNumber)
			if err != nil {
				return nil, err
			}
			result.Block = block
		}
		s.log.Infow("Transfer already completed", "transfer", result.Transfer.ID, "block", result.Transfer.BlockNumber)
		return result, nil
	}

	s.log.Infow("Transfer accepted",
		"transfer", result.Transfer.ID,
		"product", result.Transfer.ProductID,
		"block", result.Block.BlockNumber,
		"registeredFields", result.RegisteredFields)

	s.afterAccept(ctx, result, merged, prev)
	return result, nil
}

func (s *Service) afterAccept(ctx context.Context, result *AcceptResult, merged *registration.Result, prevOwnerID string) {
	t := result.Transfer
	block := result.Block
	ownerName := block.OwnerUsername
	if ownerName == "" {
		ownerName = block.OwnerName
	}

	s.notify(ctx, types.Notification{
		UserID:     t.InitiatorID,
		Kind:       types.NotifyTransferCompleted,
		Title:      "Ownership transfer completed",
		Message:    fmt.Sprintf("Ownership of %s now belongs to %s", result.Product.Name, ownerName),
		ProductID:  t.ProductID,
		TransferID: t.ID,
		FromUserID: t.Counterparty(),
	})

	prevName, prevRole := s.displayName(ctx, prevOwnerID)
	values := make(map[string]any, len(merged.Values))
	for k, v := range merged.Values {
		values[k] = v
	}
	s.logEvent(ctx, types.ProductEvent{
		ProductID: t.ProductID,
		EventType: EventOwnershipRegistration,
		Message:   fmt.Sprintf("%s registered ownership taken over from %s", ownerName, prevName),
		UserID:    block.OwnerID,
		Extra: map[string]any{
			"registrationType":  string(block.OwnerRole),
			"newOwnerUsername":  ownerName,
			"newOwnerRole":      string(block.OwnerRole),
			"previousOwnerName": prevName,
			"previousOwnerRole": string(prevRole),
			"registeredFields":  merged.Registered,
			"values":            values,
			"transferId":        t.ID,
			"blockNumber":       block.BlockNumber,
		},
	})
}

// RejectTransfer closes a pending transfer without touching the ledger or the product
func (s *Service) RejectTransfer(ctx context.Context, actorID, transferID string) (*types.TransferRequest, error) {
	t, err := s.loadForDecision(ctx, actorID, transferID)
	if err != nil {
		return nil, err
	}

	var rejected *types.TransferRequest
	err = s.ledger.Update(ctx, t.ProductID, func(w *ledger.Writer) error {
		current, err := s.transfers.GetTransfer(ctx, t.ID)
		if err != nil {
			return err
		}
		if !current.IsPending() {
			return ledgererr.InvalidState("transfer %s is already %s", current.ID, current.Status)
		}

		now := time.Now().UTC()
		current.Status = types.TransferRejected
		current.ResolvedAt = &now
		rejected = current
		return s.transfers.StageTransfer(w.Batch(), current)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("Transfer rejected", "transfer", rejected.ID, "product", rejected.ProductID, "by", actorID)

	name, _ := s.displayName(ctx, actorID)
	s.notify(ctx, types.Notification{
		UserID:     rejected.InitiatorID,
		Kind:       types.NotifyTransferRejected,
		Title:      "Ownership transfer rejected",
		Message:    fmt.Sprintf("%s rejected the transfer", name),
		ProductID:  rejected.ProductID,
		TransferID: rejected.ID,
		FromUserID: actorID,
	})
	s.logEvent(ctx, types.ProductEvent{
		ProductID: rejected.ProductID,
		EventType: EventOwnershipRejected,
		Message:   fmt.Sprintf("%s rejected transfer %s", name, rejected.ID),
		UserID:    actorID,
		Extra:     map[string]any{"transferId": rejected.ID},
	})
	return rejected, nil
}
