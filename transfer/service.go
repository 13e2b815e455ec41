// Package transfer implements the ownership transfer state machine on top of
// the ledger: offers and requests, acceptance with field merge and a new
// block, rejection, and product registration with the genesis block.
package transfer

import (
	"context"
	"strings"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/ddr4869/agrichain/storage"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Identity resolves the acting user
type Identity interface {
	GetUser(ctx context.Context, id string) (*types.User, error)
}

// Products reads products and stages their updates into ledger batches
type Products interface {
	GetProduct(ctx context.Context, id string) (*types.Product, error)
	StageProduct(b *storage.Batch, p *types.Product) error
}

type Transfers interface {
	GetTransfer(ctx context.Context, id string) (*types.TransferRequest, error)
	StageTransfer(b *storage.Batch, t *types.TransferRequest) error
	PendingForProduct(ctx context.Context, productID string) ([]types.TransferRequest, error)
	PendingForCounterparty(ctx context.Context, userID string) ([]types.TransferRequest, error)
}

type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

type EventLog interface {
	LogProductEvent(ctx context.Context, e types.ProductEvent) error
}

// Deps bundles the collaborators of the service
type Deps struct {
	Identity  Identity
	Products  Products
	Transfers Transfers
	Notifier  Notifier
	Events    EventLog
}

// Service is safe for concurrent use. All writes touching a product run
// under that product's ledger lock.
type Service struct {
	ledger    *ledger.Store
	users     Identity
	products  Products
	transfers Transfers
	notifier  Notifier
	events    EventLog
	validate  *validator.Validate
	log       *zap.SugaredLogger
}

func NewService(store *ledger.Store, deps Deps) *Service {
	return &Service{
		ledger:    store,
		users:     deps.Identity,
		products:  deps.Products,
		transfers: deps.Transfers,
		notifier:  deps.Notifier,
		events:    deps.Events,
		validate:  validator.New(),
		log:       logger.Named("transfer"),
	}
}

// actor resolves the acting identity. Ids that resolve to nobody are not authorized.
func (s *Service) actor(ctx context.Context, id string) (*types.User, error) {
	if id == "" {
		return nil, ledgererr.Unauthorized("acting user is required")
	}
	u, err := s.users.GetUser(ctx, id)
	if ledgererr.Is(err, ledgererr.KindNotFound) {
		return nil, ledgererr.Unauthorized("unknown user %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve user %s", id)
	}
	return u, nil
}

// check runs struct validation and reports failing fields as one Validation error
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ledgererr.Validation("invalid input: %v", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return ledgererr.Validation("invalid input: %s", strings.Join(msgs, ", "))
}

// notify and event delivery happen after commit; failures are logged, the
// committed ownership change stands
func (s *Service) notify(ctx context.Context, n types.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.Warnw("Failed to deliver notification", "user", n.UserID, "kind", n.Kind, "error", err)
	}
}

func (s *Service) logEvent(ctx context.Context, e types.ProductEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.LogProductEvent(ctx, e); err != nil {
		s.log.Warnw("Failed to log product event", "product", e.ProductID, "event", e.EventType, "error", err)
	}
}

// displayName falls back to the id when the user cannot be resolved
func (s *Service) displayName(ctx context.Context, id string) (string, types.Role) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return id, ""
	}
	return u.DisplayName(), u.Role
}
