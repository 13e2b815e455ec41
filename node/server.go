// Package node serves the ownership ledger over gRPC.
package node

import (
	"bytes"
	"context"
	"io"
	"net"
	"time"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/transfer"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Records serves the catalog reads that bypass the transfer service
type Records interface {
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	NotificationsFor(ctx context.Context, userID string) ([]types.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	ProductEvents(ctx context.Context, productID string) ([]types.ProductEvent, error)
	ProductsOwnedBy(ctx context.Context, userID string) ([]types.Product, error)
	TransfersForProduct(ctx context.Context, productID string) ([]types.TransferRequest, error)
}

// ProofStore keeps payment proofs attached to acceptances
type ProofStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(url string) (io.ReadCloser, error)
}

type Server struct {
	svc     *transfer.Service
	records Records
	proofs  ProofStore
	grpc    *grpc.Server
	health  *health.Server
	log     *zap.SugaredLogger
}

// New builds the gRPC server and registers the ledger and health services
func New(svc *transfer.Service, records Records, proofs ProofStore, opts ...grpc.ServerOption) *Server {
	s := &Server{
		svc:     svc,
		records: records,
		proofs:  proofs,
		health:  health.NewServer(),
		log:     logger.Named("node"),
	}

	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary, s.statusUnary))
	s.grpc = grpc.NewServer(opts...)
	RegisterLedgerServer(s.grpc, s)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// ServerCredentials loads the node's TLS key pair
func ServerCredentials(certFile, keyFile string) (grpc.ServerOption, error) {
	creds, err := credentials.NewServerTLSFromFile(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS credentials")
	}
	return grpc.Creds(creds), nil
}

// Serve blocks until the listener fails or Stop is called
func (s *Server) Serve(lis net.Listener) error {
	s.log.Infof("Ledger node listening on %s", lis.Addr())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return errors.Wrap(err, "ledger node stopped")
	}
	return nil
}

// Stop marks the node as not serving and drains in-flight calls
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.log.Info("Ledger node stopped gracefully")
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.log.Debugw("Call failed", "method", info.FullMethod, "code", status.Code(err), "elapsed", time.Since(start))
		return resp, err
	}
	s.log.Debugw("Call served", "method", info.FullMethod, "elapsed", time.Since(start))
	return resp, nil
}

func (s *Server) statusUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ledgererr.KindOf(err) == ledgererr.KindInternal {
		if _, ok := status.FromError(err); !ok {
			s.log.Errorw("Internal error", "method", info.FullMethod, "error", err)
		}
	}
	return nil, toStatus(err)
}

func (s *Server) GetProduct(ctx context.Context, req *GetProductRequest) (*types.Product, error) {
	return s.records.GetProduct(ctx, req.ProductID)
}

func (s *Server) RegisterProduct(ctx context.Context, req *RegisterProductRequest) (*RegisterProductResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	product, genesis, err := s.svc.RegisterProduct(ctx, actor, req.Product)
	if err != nil {
		return nil, err
	}
	return &RegisterProductResponse{Product: product, Genesis: genesis}, nil
}

func (s *Server) CreateTransfer(ctx context.Context, req *CreateTransferRequest) (*TransferResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.CreateTransfer(ctx, actor, req.Input)
	if err != nil {
		return nil, err
	}
	return &TransferResponse{Transfer: t}, nil
}

func (s *Server) RequestProduct(ctx context.Context, req *RequestProductRequest) (*TransferResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.RequestProduct(ctx, actor, req.ProductID, req.TransferType, req.Notes)
	if err != nil {
		return nil, err
	}
	return &TransferResponse{Transfer: t}, nil
}

func (s *Server) AcceptTransfer(ctx context.Context, req *AcceptTransferRequest) (*transfer.AcceptResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}

	// proofs are stored before the decision; a failed acceptance leaves an orphan file
	var fileRef string
	if len(req.Proof) > 0 {
		if s.proofs == nil {
			return nil, ledgererr.Validation("payment proof uploads are disabled")
		}
		fileRef, err = s.proofs.Save(ctx, req.ProofFilename, bytes.NewReader(req.Proof))
		if err != nil {
			return nil, err
		}
	}
	return s.svc.AcceptTransfer(ctx, actor, req.TransferID, req.Fields, fileRef)
}

func (s *Server) RejectTransfer(ctx context.Context, req *TransferIDRequest) (*TransferResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.RejectTransfer(ctx, actor, req.TransferID)
	if err != nil {
		return nil, err
	}
	return &TransferResponse{Transfer: t}, nil
}

func (s *Server) GetTransfer(ctx context.Context, req *TransferIDRequest) (*TransferResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.svc.GetTransfer(ctx, req.TransferID)
	if err != nil {
		return nil, err
	}
	if actor != t.FromUserID && actor != t.ToUserID {
		return nil, ledgererr.Unauthorized("transfer %s is not visible to %s", t.ID, actor)
	}
	return &TransferResponse{Transfer: t}, nil
}

func (s *Server) PendingTransfers(ctx context.Context, _ *PendingTransfersRequest) (*TransfersResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	transfers, err := s.svc.PendingTransfers(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &TransfersResponse{Transfers: transfers}, nil
}

// GetChain and VerifyChain are public so anyone holding a product can check its provenance
func (s *Server) GetChain(ctx context.Context, req *ProductIDRequest) (*ChainResponse, error) {
	chain, err := s.svc.GetChain(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	return &ChainResponse{ProductID: req.ProductID, Blocks: chain}, nil
}

func (s *Server) VerifyChain(ctx context.Context, req *ProductIDRequest) (*types.VerificationResult, error) {
	return s.svc.VerifyChain(ctx, req.ProductID)
}

func (s *Server) GetOwnershipHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	userID := req.UserID
	if userID == "" {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		userID = actor
	}
	history, err := s.svc.GetOwnershipHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{UserID: userID, Products: history}, nil
}

func (s *Server) HasEverOwned(ctx context.Context, req *HasOwnedRequest) (*transfer.OwnershipCheck, error) {
	userID := req.UserID
	if userID == "" {
		actor, err := actorFrom(ctx)
		if err != nil {
			return nil, err
		}
		userID = actor
	}
	return s.svc.HasEverOwned(ctx, req.ProductID, userID)
}

func (s *Server) Notifications(ctx context.Context, _ *NotificationsRequest) (*NotificationsResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.records.NotificationsFor(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &NotificationsResponse{Notifications: list}, nil
}

func (s *Server) MarkNotificationRead(ctx context.Context, req *MarkReadRequest) (*Empty, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.records.MarkRead(ctx, actor, req.NotificationID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

func (s *Server) ProductEvents(ctx context.Context, req *ProductIDRequest) (*ProductEventsResponse, error) {
	if _, err := s.records.GetProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}
	events, err := s.records.ProductEvents(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	return &ProductEventsResponse{ProductID: req.ProductID, Events: events}, nil
}

func (s *Server) OwnedProducts(ctx context.Context, _ *OwnedProductsRequest) (*ProductsResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.records.ProductsOwnedBy(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &ProductsResponse{UserID: actor, Products: products}, nil
}

// ProductTransfers lists the caller's transfers on a product, whatever their status
func (s *Server) ProductTransfers(ctx context.Context, req *ProductIDRequest) (*TransfersResponse, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.records.GetProduct(ctx, req.ProductID); err != nil {
		return nil, err
	}
	all, err := s.records.TransfersForProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	visible := []types.TransferRequest{}
	for _, t := range all {
		if actor == t.FromUserID || actor == t.ToUserID {
			visible = append(visible, t)
		}
	}
	return &TransfersResponse{Transfers: visible}, nil
}

// GetPaymentProof returns the proof attached when the transfer was accepted
func (s *Server) GetPaymentProof(ctx context.Context, req *TransferIDRequest) (*PaymentProofResponse, error) {
	resp, err := s.GetTransfer(ctx, req)
	if err != nil {
		return nil, err
	}
	t := resp.Transfer
	if t.PaymentProofURL == "" {
		return nil, ledgererr.NotFound("transfer %s has no payment proof", t.ID)
	}
	if s.proofs == nil {
		return nil, ledgererr.NotFound("payment proof uploads are disabled")
	}

	f, err := s.proofs.Open(t.PaymentProofURL)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read payment proof of transfer %s", t.ID)
	}
	return &PaymentProofResponse{TransferID: t.ID, URL: t.PaymentProofURL, Content: content}, nil
}
