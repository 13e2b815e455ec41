package types

import (
	"time"
)

// Role is the supply chain role of a party
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
)

// OwnershipBlock is one immutable record in a product's ownership chain
type OwnershipBlock struct {
	ID                string    `json:"id"`
	ProductID         string    `json:"product_id"`
	OwnerID           string    `json:"owner_id"`
	OwnerName         string    `json:"owner_name"`
	OwnerUsername     string    `json:"owner_username,omitempty"`
	OwnerRole         Role      `json:"owner_role"`
	AddedBy           string    `json:"added_by"`
	BlockNumber       uint64    `json:"block_number"`
	PreviousBlockHash *string   `json:"previous_block_hash"` // nil only for the genesis block
	BlockHash         string    `json:"block_hash"`
	TransferType      string    `json:"transfer_type"`
	EditableFields    []string  `json:"editable_fields"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsGenesis reports whether the block opens its chain
func (b *OwnershipBlock) IsGenesis() bool {
	return b.BlockNumber == 1
}

// ProductOwnership groups the blocks a single user owned for one product
type ProductOwnership struct {
	ProductID   string           `json:"product_id"`
	ProductName string           `json:"product_name"`
	Records     []OwnershipBlock `json:"records"`
}

// BlockDefect describes one integrity problem found in a chain
type BlockDefect struct {
	BlockNumber uint64 `json:"block_number"`
	Reason      string `json:"reason"`
}

// VerificationResult is the outcome of walking a product chain
type VerificationResult struct {
	ProductID string        `json:"product_id"`
	Valid     bool          `json:"valid"`
	Length    int           `json:"length"`
	Errors    []BlockDefect `json:"errors"`
}

// TransferStatus is the state of a transfer request
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
)

// TransferDirection records who opened a transfer
type TransferDirection string

const (
	// DirectionOffer: the current owner offers the product to a recipient
	DirectionOffer TransferDirection = "offer"
	// DirectionRequest: a non-owner asks the current owner for the product
	DirectionRequest TransferDirection = "request"
)

// TransferRequest moves ownership of a product from FromUserID to ToUserID
type TransferRequest struct {
	ID              string            `json:"id"`
	ProductID       string            `json:"product_id"`
	FromUserID      string            `json:"from_user_id"` // current holder
	ToUserID        string            `json:"to_user_id"`   // new owner
	InitiatorID     string            `json:"initiator_id"`
	Direction       TransferDirection `json:"direction"`
	TransferType    string            `json:"transfer_type"`
	Notes           string            `json:"notes,omitempty"`
	Status          TransferStatus    `json:"status"`
	PaymentProofURL string            `json:"payment_proof_url,omitempty"`
	BlockNumber     uint64            `json:"block_number,omitempty"`
	BlockHash       string            `json:"block_hash,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}

// Counterparty returns the party that must accept or reject the transfer
func (t *TransferRequest) Counterparty() string {
	if t.Direction == DirectionRequest {
		return t.FromUserID
	}
	return t.ToUserID
}

// IsPending reports whether the transfer still awaits a decision
func (t *TransferRequest) IsPending() bool {
	return t.Status == TransferPending
}

// Product carries the ownership relevant fields of a registered good
type Product struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	Description       string     `json:"description,omitempty"`
	Quantity          float64    `json:"quantity"`
	Unit              string     `json:"unit"`
	FarmName          string     `json:"farm_name"`
	Location          string     `json:"location"`
	HarvestDate       *time.Time `json:"harvest_date,omitempty"`
	Certifications    []string   `json:"certifications,omitempty"`
	BatchID           string     `json:"batch_id"`
	OwnerID           string     `json:"owner_id"`
	Status            string     `json:"status"`
	Price             *float64   `json:"price,omitempty"`
	DistributorName   string     `json:"distributor_name,omitempty"`
	WarehouseLocation string     `json:"warehouse_location,omitempty"`
	DispatchDate      *time.Time `json:"dispatch_date,omitempty"`
	StoreName         string     `json:"store_name,omitempty"`
	StoreLocation     string     `json:"store_location,omitempty"`
	ArrivalDate       *time.Time `json:"arrival_date,omitempty"`
	PaymentProofURL   string     `json:"payment_proof_url,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// User is an identity resolved by the identity collaborator
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName prefers the username for human readable history
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Name
}

// NotificationKind classifies a notification
type NotificationKind string

const (
	NotifyOwnershipRequest  NotificationKind = "ownership_request"
	NotifyProductRequest    NotificationKind = "product_request"
	NotifyTransferCompleted NotificationKind = "ownership_transfer"
	NotifyTransferRejected  NotificationKind = "ownership_transfer_rejected"
)

// Notification is a message addressed to a single user
type Notification struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Kind       NotificationKind `json:"kind"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	ProductID  string           `json:"product_id,omitempty"`
	TransferID string           `json:"transfer_id,omitempty"`
	FromUserID string           `json:"from_user_id,omitempty"`
	Read       bool             `json:"read"`
	CreatedAt  time.Time        `json:"created_at"`
}

// ProductEvent is an audit log entry attached to a product
type ProductEvent struct {
	ID        string         `json:"id"`
	ProductID string         `json:"product_id"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	UserID    string         `json:"user_id"`
	Extra     map[string]any `json:"extra,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
