package transfer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/ddr4869/agrichain/registration"
	"github.com/google/uuid"
)

// ProductStatusRegistered is the status of a freshly registered product
const ProductStatusRegistered = "registered"

// GenesisEditableFields are the fields the registering farmer may edit
var GenesisEditableFields = []string{
	registration.FieldQuantity,
	registration.FieldLocation,
	registration.FieldDescription,
	registration.FieldCertifications,
	registration.FieldPrice,
}

// ProductInput registers a new product with its first owner
type ProductInput struct {
	Name           string     `json:"name" validate:"required"`
	Category       string     `json:"category" validate:"required"`
	Description    string     `json:"description"`
	Quantity       float64    `json:"quantity" validate:"gt=0"`
	Unit           string     `json:"unit" validate:"required"`
	FarmName       string     `json:"farmName" validate:"required"`
	Location       string     `json:"location" validate:"required"`
	HarvestDate    *time.Time `json:"harvestDate" validate:"required"`
	Certifications []string   `json:"certifications"`
	Price          *float64   `json:"price" validate:"omitempty,gte=0"`
}

// BatchID derives the short batch code printed on product labels
func BatchID(name, farmName string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d", name, farmName, createdAt.UnixMilli())))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:10])
}

// RegisterProduct creates a product owned by the actor and opens its chain
// with the genesis block
func (s *Service) RegisterProduct(ctx context.Context, actorID string, in ProductInput) (*types.Product, *types.OwnershipBlock, error) {
	if err := s.check(in); err != nil {
		return nil, nil, err
	}
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	harvest := in.HarvestDate.UTC()
	product := &types.Product{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(in.Name),
		Category:       in.Category,
		Description:    in.Description,
		Quantity:       in.Quantity,
		Unit:           in.Unit,
		FarmName:       in.FarmName,
		Location:       in.Location,
		HarvestDate:    &harvest,
		Certifications: in.Certifications,
		Price:          in.Price,
		OwnerID:        actor.ID,
		Status:         ProductStatusRegistered,
		CreatedAt:      now,
	}
	product.BatchID = BatchID(product.Name, product.FarmName, now)

	var genesis *types.OwnershipBlock
	err = s.ledger.Update(ctx, product.ID, func(w *ledger.Writer) error {
		if err := s.products.StageProduct(w.Batch(), product); err != nil {
			return err
		}
		genesis, err = w.Append(ledger.Entry{
			OwnerID:        actor.ID,
			OwnerName:      actor.Name,
			OwnerUsername:  actor.Username,
			OwnerRole:      actor.Role,
			TransferType:   blockutil.TransferTypeInitial,
			EditableFields: GenesisEditableFields,
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Infow("Product registered", "product", product.ID, "batch", product.BatchID, "owner", actor.ID)
	s.logEvent(ctx, types.ProductEvent{
		ProductID: product.ID,
		EventType: EventProductRegistered,
		Message:   fmt.Sprintf("%s registered %s", actor.DisplayName(), product.Name),
		UserID:    actor.ID,
		Extra:     map[string]any{"batchId": product.BatchID, "blockHash": genesis.BlockHash},
	})
	return product, genesis, nil
}
