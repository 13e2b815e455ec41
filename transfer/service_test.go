package transfer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ddr4869/agrichain/catalog"
	"github.com/ddr4869/agrichain/common/blockutil"
	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/ddr4869/agrichain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc         *Service
	cat         *catalog.Catalog
	ledger      *ledger.Store
	db          *storage.Storage
	farmer      *types.User
	distributor *types.User
	retailer    *types.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := storage.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := catalog.New(db)
	store := ledger.NewStore(db, ledger.WithProductNamer(cat))
	f := &fixture{
		svc: NewService(store, Deps{
			Identity:  cat,
			Products:  cat,
			Transfers: cat,
			Notifier:  cat,
			Events:    cat,
		}),
		cat:    cat,
		ledger: store,
		db:     db,
	}
	f.farmer = f.user(t, "farmer-f", types.RoleFarmer)
	f.distributor = f.user(t, "distributor-d", types.RoleDistributor)
	f.retailer = f.user(t, "retailer-r", types.RoleRetailer)
	return f
}

func (f *fixture) user(t *testing.T, username string, role types.Role) *types.User {
	t.Helper()

	u := &types.User{Name: "Name " + username, Username: username, Role: role}
	require.NoError(t, f.cat.SaveUser(context.Background(), u))
	return u
}

func (f *fixture) register(t *testing.T) *types.Product {
	t.Helper()

	harvest := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	product, genesis, err := f.svc.RegisterProduct(context.Background(), f.farmer.ID, ProductInput{
		Name:        "Tomatoes",
		Category:    "vegetables",
		Quantity:    100,
		Unit:        "kg",
		FarmName:    "Green Acres",
		Location:    "Valley Road",
		HarvestDate: &harvest,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), genesis.BlockNumber)
	return product
}

func (f *fixture) offer(t *testing.T, productID string, from, to *types.User) *types.TransferRequest {
	t.Helper()

	tr, err := f.svc.CreateTransfer(context.Background(), from.ID, CreateInput{ProductID: productID, ToUserID: to.ID})
	require.NoError(t, err)
	return tr
}

func notificationKinds(t *testing.T, cat *catalog.Catalog, userID string) []types.NotificationKind {
	t.Helper()

	list, err := cat.NotificationsFor(context.Background(), userID)
	require.NoError(t, err)
	kinds := make([]types.NotificationKind, 0, len(list))
	for _, n := range list {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func TestRegisterProductOpensChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	assert.Equal(t, f.farmer.ID, product.OwnerID)
	assert.Equal(t, ProductStatusRegistered, product.Status)
	assert.Len(t, product.BatchID, 10)

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	genesis := chain[0]
	assert.Nil(t, genesis.PreviousBlockHash)
	assert.Equal(t, f.farmer.ID, genesis.AddedBy)
	assert.Equal(t, blockutil.TransferTypeInitial, genesis.TransferType)
	assert.Equal(t, GenesisEditableFields, genesis.EditableFields)
	assert.True(t, blockutil.VerifyBlockHash(&genesis))

	_, _, err = f.svc.RegisterProduct(ctx, f.farmer.ID, ProductInput{Name: "Rice"})
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	_, _, err = f.svc.RegisterProduct(ctx, "nobody", ProductInput{})
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))
}

func TestBatchIDIsDeterministic(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, BatchID("Tomatoes", "Green Acres", at), BatchID("Tomatoes", "Green Acres", at))
	assert.NotEqual(t, BatchID("Tomatoes", "Green Acres", at), BatchID("Rice", "Green Acres", at))
	assert.Len(t, BatchID("a", "b", at), 10)
}

func TestOfferScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	tr := f.offer(t, product.ID, f.farmer, f.distributor)
	assert.Equal(t, types.DirectionOffer, tr.Direction)
	assert.Equal(t, f.farmer.ID, tr.FromUserID)
	assert.Equal(t, f.distributor.ID, tr.ToUserID)
	assert.Equal(t, f.distributor.ID, tr.Counterparty())
	assert.Equal(t, []types.NotificationKind{types.NotifyOwnershipRequest}, notificationKinds(t, f.cat, f.distributor.ID))

	pending, err := f.svc.PendingTransfers(ctx, f.distributor.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// only the recipient decides an offer
	_, err = f.svc.AcceptTransfer(ctx, f.farmer.ID, tr.ID, nil, "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindUnauthorized))

	result, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, map[string]any{
		"distributorName":   "Fast Freight",
		"warehouseLocation": "Dock 4",
		"quantity":          "95",
		"farmName":          "ignored for distributors",
	}, "/uploads/payment-proofs/proof.png")
	require.NoError(t, err)
	require.False(t, result.AlreadyCompleted)

	block := result.Block
	assert.Equal(t, uint64(2), block.BlockNumber)
	assert.Equal(t, f.distributor.ID, block.OwnerID)
	assert.Equal(t, f.farmer.ID, block.AddedBy)
	assert.Equal(t, AcceptEditableFields, block.EditableFields)
	assert.Equal(t, []string{"quantity", "distributorName", "warehouseLocation", "paymentProofUrl"}, result.RegisteredFields)

	assert.Equal(t, types.TransferCompleted, result.Transfer.Status)
	assert.Equal(t, block.BlockHash, result.Transfer.BlockHash)
	assert.Equal(t, "/uploads/payment-proofs/proof.png", result.Transfer.PaymentProofURL)
	assert.NotNil(t, result.Transfer.ResolvedAt)

	stored, err := f.cat.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, f.distributor.ID, stored.OwnerID)
	assert.Equal(t, "Fast Freight", stored.DistributorName)
	assert.Equal(t, 95.0, stored.Quantity)
	assert.Equal(t, "Green Acres", stored.FarmName)

	verification, err := f.svc.VerifyChain(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, 2, verification.Length)

	assert.Equal(t, []types.NotificationKind{types.NotifyTransferCompleted}, notificationKinds(t, f.cat, f.farmer.ID))

	events, err := f.cat.ProductEvents(ctx, product.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, EventOwnershipRegistration, last.EventType)
	assert.Equal(t, "farmer-f", last.Extra["previousOwnerName"])
	assert.Equal(t, "distributor-d", last.Extra["newOwnerUsername"])
}

func TestRequestScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	// ToUserID is ignored for requests; the holder is the counterparty
	tr, err := f.svc.CreateTransfer(ctx, f.distributor.ID, CreateInput{ProductID: product.ID, ToUserID: f.retailer.ID})
	require.NoError(t, err)
	assert.Equal(t, types.DirectionRequest, tr.Direction)
	assert.Equal(t, f.farmer.ID, tr.FromUserID)
	assert.Equal(t, f.distributor.ID, tr.ToUserID)
	assert.Equal(t, f.farmer.ID, tr.Counterparty())
	assert.Equal(t, TransferTypeRequest, tr.TransferType)
	assert.Equal(t, []types.NotificationKind{types.NotifyProductRequest}, notificationKinds(t, f.cat, f.farmer.ID))

	_, err = f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindUnauthorized))

	// the holder accepts but fills in the requester's distributor form
	result, err := f.svc.AcceptTransfer(ctx, f.farmer.ID, tr.ID, map[string]any{
		"distributorName": "Fast Freight",
		"farmName":        "Other Farm",
		"storeName":       "Corner Shop",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, f.distributor.ID, result.Block.OwnerID)
	assert.Equal(t, f.farmer.ID, result.Block.AddedBy)
	assert.Equal(t, []string{"distributorName"}, result.RegisteredFields)
	assert.Equal(t, "Fast Freight", result.Product.DistributorName)
	assert.Equal(t, "Green Acres", result.Product.FarmName)

	owned, err := f.svc.HasEverOwned(ctx, product.ID, f.distributor.ID)
	require.NoError(t, err)
	assert.True(t, owned.HasOwned)
	assert.True(t, owned.IsCurrentOwner)

	owned, err = f.svc.HasEverOwned(ctx, product.ID, f.farmer.ID)
	require.NoError(t, err)
	assert.True(t, owned.HasOwned)
	assert.False(t, owned.IsCurrentOwner)

	owned, err = f.svc.HasEverOwned(ctx, product.ID, f.retailer.ID)
	require.NoError(t, err)
	assert.False(t, owned.HasOwned)

	assert.Contains(t, notificationKinds(t, f.cat, f.distributor.ID), types.NotifyTransferCompleted)
}

func TestRequestProductByOwnerFails(t *testing.T) {
	f := newFixture(t)
	product := f.register(t)

	_, err := f.svc.RequestProduct(context.Background(), f.farmer.ID, product.ID, "", "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindValidation))

	tr, err := f.svc.RequestProduct(context.Background(), f.retailer.ID, product.ID, "sale", "please")
	require.NoError(t, err)
	assert.Equal(t, "sale", tr.TransferType)
	assert.Equal(t, "please", tr.Notes)
}

func TestCreateTransferValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	cases := []struct {
		name  string
		actor string
		in    CreateInput
		kind  ledgererr.Kind
	}{
		{"missing product", f.farmer.ID, CreateInput{ToUserID: f.distributor.ID}, ledgererr.KindValidation},
		{"unknown product", f.farmer.ID, CreateInput{ProductID: "nope", ToUserID: f.distributor.ID}, ledgererr.KindNotFound},
		{"self transfer", f.farmer.ID, CreateInput{ProductID: product.ID, ToUserID: f.farmer.ID}, ledgererr.KindValidation},
		{"missing recipient", f.farmer.ID, CreateInput{ProductID: product.ID}, ledgererr.KindValidation},
		{"unknown recipient", f.farmer.ID, CreateInput{ProductID: product.ID, ToUserID: "ghost"}, ledgererr.KindNotFound},
		{"unknown actor", "ghost", CreateInput{ProductID: product.ID}, ledgererr.KindUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateTransfer(ctx, tc.actor, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, ledgererr.KindOf(err), "%v", err)
		})
	}

	all, err := f.cat.TransfersForProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOnePendingTransferPerProduct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	f.offer(t, product.ID, f.farmer, f.distributor)

	_, err := f.svc.CreateTransfer(ctx, f.farmer.ID, CreateInput{ProductID: product.ID, ToUserID: f.retailer.ID})
	assert.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))

	_, err = f.svc.RequestProduct(ctx, f.retailer.ID, product.ID, "", "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))
}

func TestReacceptIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	tr := f.offer(t, product.ID, f.farmer, f.distributor)

	first, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
	require.NoError(t, err)

	again, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, map[string]any{"quantity": 1}, "")
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	require.NotNil(t, again.Block)
	assert.Equal(t, first.Block.BlockHash, again.Block.BlockHash)

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)

	stored, err := f.cat.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.Quantity)
}

func TestRejectionIsTerminalAndLedgerNeutral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	tr := f.offer(t, product.ID, f.farmer, f.distributor)

	_, err := f.svc.RejectTransfer(ctx, f.farmer.ID, tr.ID)
	assert.True(t, ledgererr.Is(err, ledgererr.KindUnauthorized))

	rejected, err := f.svc.RejectTransfer(ctx, f.distributor.ID, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TransferRejected, rejected.Status)
	assert.Contains(t, notificationKinds(t, f.cat, f.farmer.ID), types.NotifyTransferRejected)

	_, err = f.svc.RejectTransfer(ctx, f.distributor.ID, tr.ID)
	assert.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))

	_, err = f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)

	stored, err := f.cat.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, f.farmer.ID, stored.OwnerID)

	// the product is free for a new transfer
	f.offer(t, product.ID, f.farmer, f.retailer)
}

func TestAcceptUnknownTransfer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.AcceptTransfer(context.Background(), f.distributor.ID, "missing", nil, "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindNotFound))

	_, err = f.svc.RejectTransfer(context.Background(), f.distributor.ID, "missing")
	assert.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}

func TestAcceptRejectsBadFormWithoutWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	tr := f.offer(t, product.ID, f.farmer, f.distributor)

	for _, form := range []map[string]any{
		{"quantity": "plenty"},
		{"price": "NaN"},
		{"quantity": "Inf"},
	} {
		_, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, form, "")
		assert.True(t, ledgererr.Is(err, ledgererr.KindValidation), "%v: %v", form, err)
	}

	current, err := f.svc.GetTransfer(ctx, tr.ID)
	require.NoError(t, err)
	assert.True(t, current.IsPending())

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 1)
}

func TestAcceptFailsWhenHolderChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	tr := f.offer(t, product.ID, f.farmer, f.distributor)

	stored, err := f.cat.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	stored.OwnerID = f.retailer.ID
	b := f.db.NewBatch()
	require.NoError(t, f.cat.StageProduct(b, stored))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	_, err = f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
	assert.True(t, ledgererr.Is(err, ledgererr.KindInvalidState))
}

func TestAcceptRefusesTamperedChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)

	tr := f.offer(t, product.ID, f.farmer, f.distributor)
	_, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
	require.NoError(t, err)

	chain, err := f.ledger.GetChain(ctx, product.ID)
	require.NoError(t, err)
	forged := chain[1]
	h := "forged"
	forged.PreviousBlockHash = &h
	data, err := blockutil.MarshalBlock(&forged)
	require.NoError(t, err)
	require.NoError(t, f.db.Set([]byte(fmt.Sprintf("block/%s/%020d", product.ID, forged.BlockNumber)), data))

	next := f.offer(t, product.ID, f.distributor, f.retailer)
	_, err = f.svc.AcceptTransfer(ctx, f.retailer.ID, next.ID, nil, "")
	require.Error(t, err)
	assert.True(t, ledgererr.Is(err, ledgererr.KindIntegrity))
	defects := ledgererr.Defects(err)
	require.NotEmpty(t, defects)
	assert.Equal(t, uint64(2), defects[0].BlockNumber)

	current, err := f.svc.GetTransfer(ctx, next.ID)
	require.NoError(t, err)
	assert.True(t, current.IsPending())

	chain, err = f.ledger.GetChain(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestConcurrentAcceptsProduceOneBlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	tr := f.offer(t, product.ID, f.farmer, f.distributor)

	const workers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fresh    int
		repeated int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.AcceptTransfer(ctx, f.distributor.ID, tr.ID, nil, "")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if result.AlreadyCompleted {
				repeated++
			} else {
				fresh++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
	assert.Equal(t, workers-1, repeated)

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestFullSupplyChainHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	product := f.register(t)
	consumer := f.user(t, "consumer-c", types.RoleConsumer)

	hops := []struct{ from, to *types.User }{
		{f.farmer, f.distributor},
		{f.distributor, f.retailer},
		{f.retailer, consumer},
	}
	for _, hop := range hops {
		tr := f.offer(t, product.ID, hop.from, hop.to)
		_, err := f.svc.AcceptTransfer(ctx, hop.to.ID, tr.ID, nil, "")
		require.NoError(t, err)
	}

	chain, err := f.svc.GetChain(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, chain, 4)
	for i := 1; i < len(chain); i++ {
		assert.Equal(t, chain[i-1].BlockHash, *chain[i].PreviousBlockHash)
		assert.Equal(t, chain[i-1].BlockNumber+1, chain[i].BlockNumber)
	}

	history, err := f.svc.GetOwnershipHistory(ctx, f.distributor.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Tomatoes", history[0].ProductName)
	assert.Equal(t, uint64(2), history[0].Records[0].BlockNumber)

	_, err = f.svc.GetOwnershipHistory(ctx, "ghost")
	assert.True(t, ledgererr.Is(err, ledgererr.KindNotFound))
}
