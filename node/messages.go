package node

import (
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/transfer"
)

type GetProductRequest struct {
	ProductID string `json:"productId"`
}

type RegisterProductRequest struct {
	Product transfer.ProductInput `json:"product"`
}

type RegisterProductResponse struct {
	Product *types.Product        `json:"product"`
	Genesis *types.OwnershipBlock `json:"genesis"`
}

type CreateTransferRequest struct {
	Input transfer.CreateInput `json:"input"`
}

type RequestProductRequest struct {
	ProductID    string `json:"productId"`
	TransferType string `json:"transferType,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type TransferResponse struct {
	Transfer *types.TransferRequest `json:"transfer"`
}

// AcceptTransferRequest carries the new owner's registration form. A proof
// file, when attached, is stored by the node and its URL merged as
// paymentProofUrl.
type AcceptTransferRequest struct {
	TransferID    string         `json:"transferId"`
	Fields        map[string]any `json:"fields,omitempty"`
	ProofFilename string         `json:"proofFilename,omitempty"`
	Proof         []byte         `json:"proof,omitempty"`
}

type TransferIDRequest struct {
	TransferID string `json:"transferId"`
}

type PendingTransfersRequest struct{}

type TransfersResponse struct {
	Transfers []types.TransferRequest `json:"transfers"`
}

type ProductIDRequest struct {
	ProductID string `json:"productId"`
}

type ChainResponse struct {
	ProductID string                 `json:"productId"`
	Blocks    []types.OwnershipBlock `json:"blocks"`
}

// HistoryRequest defaults UserID to the caller
type HistoryRequest struct {
	UserID string `json:"userId,omitempty"`
}

type HistoryResponse struct {
	UserID   string                   `json:"userId"`
	Products []types.ProductOwnership `json:"products"`
}

// HasOwnedRequest defaults UserID to the caller
type HasOwnedRequest struct {
	ProductID string `json:"productId"`
	UserID    string `json:"userId,omitempty"`
}

type NotificationsRequest struct{}

type NotificationsResponse struct {
	Notifications []types.Notification `json:"notifications"`
}

type MarkReadRequest struct {
	NotificationID string `json:"notificationId"`
}

type Empty struct{}

type OwnedProductsRequest struct{}

type ProductsResponse struct {
	UserID   string          `json:"userId"`
	Products []types.Product `json:"products"`
}

type PaymentProofResponse struct {
	TransferID string `json:"transferId"`
	URL        string `json:"url"`
	Content    []byte `json:"content"`
}

type ProductEventsResponse struct {
	ProductID string               `json:"productId"`
	Events    []types.ProductEvent `json:"events"`
}
