package node

import (
	"context"

	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/transfer"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "agrichain.Ledger"

// Method names of the ledger service
const (
	MethodGetProduct       = "GetProduct"
	MethodRegisterProduct  = "RegisterProduct"
	MethodCreateTransfer   = "CreateTransfer"
	MethodRequestProduct   = "RequestProduct"
	MethodAcceptTransfer   = "AcceptTransfer"
	MethodRejectTransfer   = "RejectTransfer"
	MethodGetTransfer      = "GetTransfer"
	MethodPendingTransfers = "PendingTransfers"
	MethodGetChain         = "GetChain"
	MethodVerifyChain      = "VerifyChain"
	MethodHistory          = "GetOwnershipHistory"
	MethodHasEverOwned     = "HasEverOwned"
	MethodNotifications    = "Notifications"
	MethodMarkRead         = "MarkNotificationRead"
	MethodProductEvents    = "ProductEvents"
	MethodOwnedProducts    = "OwnedProducts"
	MethodProductTransfers = "ProductTransfers"
	MethodPaymentProof     = "GetPaymentProof"
)

// FullMethod returns the path a client invokes
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type LedgerServer interface {
	GetProduct(context.Context, *GetProductRequest) (*types.Product, error)
	RegisterProduct(context.Context, *RegisterProductRequest) (*RegisterProductResponse, error)
	CreateTransfer(context.Context, *CreateTransferRequest) (*TransferResponse, error)
	RequestProduct(context.Context, *RequestProductRequest) (*TransferResponse, error)
	AcceptTransfer(context.Context, *AcceptTransferRequest) (*transfer.AcceptResult, error)
	RejectTransfer(context.Context, *TransferIDRequest) (*TransferResponse, error)
	GetTransfer(context.Context, *TransferIDRequest) (*TransferResponse, error)
	PendingTransfers(context.Context, *PendingTransfersRequest) (*TransfersResponse, error)
	GetChain(context.Context, *ProductIDRequest) (*ChainResponse, error)
	VerifyChain(context.Context, *ProductIDRequest) (*types.VerificationResult, error)
	GetOwnershipHistory(context.Context, *HistoryRequest) (*HistoryResponse, error)
	HasEverOwned(context.Context, *HasOwnedRequest) (*transfer.OwnershipCheck, error)
	Notifications(context.Context, *NotificationsRequest) (*NotificationsResponse, error)
	MarkNotificationRead(context.Context, *MarkReadRequest) (*Empty, error)
	ProductEvents(context.Context, *ProductIDRequest) (*ProductEventsResponse, error)
	OwnedProducts(context.Context, *OwnedProductsRequest) (*ProductsResponse, error)
	ProductTransfers(context.Context, *ProductIDRequest) (*TransfersResponse, error)
	GetPaymentProof(context.Context, *TransferIDRequest) (*PaymentProofResponse, error)
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// unary adapts a typed server method to a grpc.MethodDesc
func unary[Req, Resp any](name string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			ls := srv.(LedgerServer)
			if interceptor == nil {
				return call(ls, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(ls, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetProduct, LedgerServer.GetProduct),
		unary(MethodRegisterProduct, LedgerServer.RegisterProduct),
		unary(MethodCreateTransfer, LedgerServer.CreateTransfer),
		unary(MethodRequestProduct, LedgerServer.RequestProduct),
		unary(MethodAcceptTransfer, LedgerServer.AcceptTransfer),
		unary(MethodRejectTransfer, LedgerServer.RejectTransfer),
		unary(MethodGetTransfer, LedgerServer.GetTransfer),
		unary(MethodPendingTransfers, LedgerServer.PendingTransfers),
		unary(MethodGetChain, LedgerServer.GetChain),
		unary(MethodVerifyChain, LedgerServer.VerifyChain),
		unary(MethodHistory, LedgerServer.GetOwnershipHistory),
		unary(MethodHasEverOwned, LedgerServer.HasEverOwned),
		unary(MethodNotifications, LedgerServer.Notifications),
		unary(MethodMarkRead, LedgerServer.MarkNotificationRead),
		unary(MethodProductEvents, LedgerServer.ProductEvents),
		unary(MethodOwnedProducts, LedgerServer.OwnedProducts),
		unary(MethodProductTransfers, LedgerServer.ProductTransfers),
		unary(MethodPaymentProof, LedgerServer.GetPaymentProof),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agrichain/ledger",
}
