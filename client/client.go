// Package client talks to a ledger node over gRPC.
package client

import (
	"context"
	"time"

	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/node"
	"github.com/ddr4869/agrichain/transfer"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// Options configure Dial
type Options struct {
	UserID     string
	TLS        bool
	RootCAFile string
	// Timeout bounds every call; zero means 30 seconds
	Timeout time.Duration
}

type LedgerClient struct {
	conn    *grpc.ClientConn
	userID  string
	timeout time.Duration
	health  healthpb.HealthClient
}

func Dial(address string, opts Options) (*LedgerClient, error) {
	creds := insecure.NewCredentials()
	if opts.TLS {
		tlsCreds, err := credentials.NewClientTLSFromFile(opts.RootCAFile, "")
		if err != nil {
			return nil, errors.Wrap(err, "failed to load TLS root certificate")
		}
		creds = tlsCreds
	}

	logger.Debugf("Connecting to ledger node at %s", address)
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(node.CodecName)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to ledger node")
	}
	return NewFromConn(conn, opts), nil
}

// NewFromConn wraps an existing connection, as tests do with bufconn
func NewFromConn(conn *grpc.ClientConn, opts Options) *LedgerClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LedgerClient{
		conn:    conn,
		userID:  opts.UserID,
		timeout: timeout,
		health:  healthpb.NewHealthClient(conn),
	}
}

// As returns a client acting as another user on the same connection
func (c *LedgerClient) As(userID string) *LedgerClient {
	clone := *c
	clone.userID = userID
	return &clone
}

func (c *LedgerClient) Close() error {
	return c.conn.Close()
}

func (c *LedgerClient) invoke(ctx context.Context, method string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.userID != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, node.UserIDHeader, c.userID)
	}
	err := c.conn.Invoke(ctx, node.FullMethod(method), in, out, grpc.CallContentSubtype(node.CodecName))
	return errors.Wrapf(err, "%s failed", method)
}

func (c *LedgerClient) GetProduct(ctx context.Context, productID string) (*types.Product, error) {
	out := new(types.Product)
	if err := c.invoke(ctx, node.MethodGetProduct, &node.GetProductRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) RegisterProduct(ctx context.Context, in transfer.ProductInput) (*node.RegisterProductResponse, error) {
	out := new(node.RegisterProductResponse)
	if err := c.invoke(ctx, node.MethodRegisterProduct, &node.RegisterProductRequest{Product: in}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) CreateTransfer(ctx context.Context, in transfer.CreateInput) (*types.TransferRequest, error) {
	out := new(node.TransferResponse)
	if err := c.invoke(ctx, node.MethodCreateTransfer, &node.CreateTransferRequest{Input: in}, out); err != nil {
		return nil, err
	}
	return out.Transfer, nil
}

func (c *LedgerClient) RequestProduct(ctx context.Context, productID, transferType, notes string) (*types.TransferRequest, error) {
	out := new(node.TransferResponse)
	req := &node.RequestProductRequest{ProductID: productID, TransferType: transferType, Notes: notes}
	if err := c.invoke(ctx, node.MethodRequestProduct, req, out); err != nil {
		return nil, err
	}
	return out.Transfer, nil
}

func (c *LedgerClient) AcceptTransfer(ctx context.Context, req *node.AcceptTransferRequest) (*transfer.AcceptResult, error) {
	out := new(transfer.AcceptResult)
	if err := c.invoke(ctx, node.MethodAcceptTransfer, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) RejectTransfer(ctx context.Context, transferID string) (*types.TransferRequest, error) {
	out := new(node.TransferResponse)
	if err := c.invoke(ctx, node.MethodRejectTransfer, &node.TransferIDRequest{TransferID: transferID}, out); err != nil {
		return nil, err
	}
	return out.Transfer, nil
}

func (c *LedgerClient) GetTransfer(ctx context.Context, transferID string) (*types.TransferRequest, error) {
	out := new(node.TransferResponse)
	if err := c.invoke(ctx, node.MethodGetTransfer, &node.TransferIDRequest{TransferID: transferID}, out); err != nil {
		return nil, err
	}
	return out.Transfer, nil
}

func (c *LedgerClient) PendingTransfers(ctx context.Context) ([]types.TransferRequest, error) {
	out := new(node.TransfersResponse)
	if err := c.invoke(ctx, node.MethodPendingTransfers, &node.PendingTransfersRequest{}, out); err != nil {
		return nil, err
	}
	return out.Transfers, nil
}

func (c *LedgerClient) GetChain(ctx context.Context, productID string) ([]types.OwnershipBlock, error) {
	out := new(node.ChainResponse)
	if err := c.invoke(ctx, node.MethodGetChain, &node.ProductIDRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}

func (c *LedgerClient) VerifyChain(ctx context.Context, productID string) (*types.VerificationResult, error) {
	out := new(types.VerificationResult)
	if err := c.invoke(ctx, node.MethodVerifyChain, &node.ProductIDRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns userID's ownership history; empty means the caller
func (c *LedgerClient) History(ctx context.Context, userID string) ([]types.ProductOwnership, error) {
	out := new(node.HistoryResponse)
	if err := c.invoke(ctx, node.MethodHistory, &node.HistoryRequest{UserID: userID}, out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *LedgerClient) HasEverOwned(ctx context.Context, productID, userID string) (*transfer.OwnershipCheck, error) {
	out := new(transfer.OwnershipCheck)
	if err := c.invoke(ctx, node.MethodHasEverOwned, &node.HasOwnedRequest{ProductID: productID, UserID: userID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) Notifications(ctx context.Context) ([]types.Notification, error) {
	out := new(node.NotificationsResponse)
	if err := c.invoke(ctx, node.MethodNotifications, &node.NotificationsRequest{}, out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *LedgerClient) MarkRead(ctx context.Context, notificationID string) error {
	return c.invoke(ctx, node.MethodMarkRead, &node.MarkReadRequest{NotificationID: notificationID}, new(node.Empty))
}

func (c *LedgerClient) ProductEvents(ctx context.Context, productID string) ([]types.ProductEvent, error) {
	out := new(node.ProductEventsResponse)
	if err := c.invoke(ctx, node.MethodProductEvents, &node.ProductIDRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// OwnedProducts lists the products the caller currently owns
func (c *LedgerClient) OwnedProducts(ctx context.Context) ([]types.Product, error) {
	out := new(node.ProductsResponse)
	if err := c.invoke(ctx, node.MethodOwnedProducts, &node.OwnedProductsRequest{}, out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

func (c *LedgerClient) ProductTransfers(ctx context.Context, productID string) ([]types.TransferRequest, error) {
	out := new(node.TransfersResponse)
	if err := c.invoke(ctx, node.MethodProductTransfers, &node.ProductIDRequest{ProductID: productID}, out); err != nil {
		return nil, err
	}
	return out.Transfers, nil
}

func (c *LedgerClient) PaymentProof(ctx context.Context, transferID string) (*node.PaymentProofResponse, error) {
	out := new(node.PaymentProofResponse)
	if err := c.invoke(ctx, node.MethodPaymentProof, &node.TransferIDRequest{TransferID: transferID}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health reports the serving status of the ledger service
func (c *LedgerClient) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: node.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, errors.Wrap(err, "health check failed")
	}
	return resp.GetStatus(), nil
}
