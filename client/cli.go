package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/node"
	"github.com/ddr4869/agrichain/transfer"
	"github.com/pkg/errors"
)

// Handlers back the ledgerctl commands
type Handlers struct {
	client *LedgerClient
	out    io.Writer
}

func NewHandlers(c *LedgerClient, out io.Writer) *Handlers {
	return &Handlers{client: c, out: out}
}

func (h *Handlers) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to render response")
	}
	_, err = fmt.Fprintln(h.out, string(data))
	return err
}

// ProductFlags mirror transfer.ProductInput with command line friendly types
type ProductFlags struct {
	Name           string
	Category       string
	Description    string
	Quantity       float64
	Unit           string
	FarmName       string
	Location       string
	HarvestDate    string
	Certifications []string
	Price          float64
	HasPrice       bool
}

func (f *ProductFlags) input() (transfer.ProductInput, error) {
	in := transfer.ProductInput{
		Name:           f.Name,
		Category:       f.Category,
		Description:    f.Description,
		Quantity:       f.Quantity,
		Unit:           f.Unit,
		FarmName:       f.FarmName,
		Location:       f.Location,
		Certifications: f.Certifications,
	}
	if f.HarvestDate != "" {
		harvest, err := time.Parse("2006-01-02", f.HarvestDate)
		if err != nil {
			return in, errors.Wrapf(err, "invalid harvest date %q, want YYYY-MM-DD", f.HarvestDate)
		}
		in.HarvestDate = &harvest
	}
	if f.HasPrice {
		price := f.Price
		in.Price = &price
	}
	return in, nil
}

func (h *Handlers) HandleRegisterProduct(ctx context.Context, f *ProductFlags) error {
	in, err := f.input()
	if err != nil {
		return err
	}
	resp, err := h.client.RegisterProduct(ctx, in)
	if err != nil {
		return err
	}
	logger.Infof("Product %s registered with batch %s", resp.Product.ID, resp.Product.BatchID)
	return h.print(resp)
}

func (h *Handlers) HandleCreateTransfer(ctx context.Context, in transfer.CreateInput) error {
	t, err := h.client.CreateTransfer(ctx, in)
	if err != nil {
		return err
	}
	logger.Infof("Transfer %s opened (%s)", t.ID, t.Direction)
	return h.print(t)
}

func (h *Handlers) HandleRequestProduct(ctx context.Context, productID, transferType, notes string) error {
	t, err := h.client.RequestProduct(ctx, productID, transferType, notes)
	if err != nil {
		return err
	}
	logger.Infof("Requested product %s from %s", productID, t.FromUserID)
	return h.print(t)
}

// HandleAcceptTransfer reads form fields as a JSON object and attaches the
// proof file when a path is given
func (h *Handlers) HandleAcceptTransfer(ctx context.Context, transferID, fieldsJSON, proofPath string) error {
	req := &node.AcceptTransferRequest{TransferID: transferID}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &req.Fields); err != nil {
			return errors.Wrap(err, "fields must be a JSON object")
		}
	}
	if proofPath != "" {
		data, err := os.ReadFile(proofPath)
		if err != nil {
			return errors.Wrapf(err, "failed to read proof file %s", proofPath)
		}
		req.Proof = data
		req.ProofFilename = filepath.Base(proofPath)
	}

	result, err := h.client.AcceptTransfer(ctx, req)
	if err != nil {
		return err
	}
	if result.AlreadyCompleted {
		logger.Infof("Transfer %s was already completed", transferID)
	} else {
		logger.Infof("Transfer %s accepted, block %d appended", transferID, result.Block.BlockNumber)
	}
	return h.print(result)
}

func (h *Handlers) HandleRejectTransfer(ctx context.Context, transferID string) error {
	t, err := h.client.RejectTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	logger.Infof("Transfer %s rejected", t.ID)
	return h.print(t)
}

func (h *Handlers) HandlePendingTransfers(ctx context.Context) error {
	transfers, err := h.client.PendingTransfers(ctx)
	if err != nil {
		return err
	}
	if len(transfers) == 0 {
		logger.Info("No pending transfers")
	}
	return h.print(transfers)
}

func (h *Handlers) HandleOwnedProducts(ctx context.Context) error {
	products, err := h.client.OwnedProducts(ctx)
	if err != nil {
		return err
	}
	return h.print(products)
}

func (h *Handlers) HandleProductTransfers(ctx context.Context, productID string) error {
	transfers, err := h.client.ProductTransfers(ctx, productID)
	if err != nil {
		return err
	}
	return h.print(transfers)
}

// HandlePaymentProof writes the proof of an accepted transfer to outPath
func (h *Handlers) HandlePaymentProof(ctx context.Context, transferID, outPath string) error {
	proof, err := h.client.PaymentProof(ctx, transferID)
	if err != nil {
		return err
	}
	if outPath == "" {
		outPath = filepath.Base(proof.URL)
	}
	if err := os.WriteFile(outPath, proof.Content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write payment proof to %s", outPath)
	}
	logger.Infof("Payment proof of transfer %s saved to %s (%d bytes)", transferID, outPath, len(proof.Content))
	return nil
}

func (h *Handlers) HandleChainShow(ctx context.Context, productID string) error {
	chain, err := h.client.GetChain(ctx, productID)
	if err != nil {
		return err
	}
	return h.print(chain)
}

func (h *Handlers) HandleChainVerify(ctx context.Context, productID string) error {
	result, err := h.client.VerifyChain(ctx, productID)
	if err != nil {
		return err
	}
	if result.Valid {
		logger.Infof("Chain of %s is intact (%d blocks)", productID, result.Length)
	} else {
		logger.Warnf("Chain of %s failed verification with %d defects", productID, len(result.Errors))
	}
	return h.print(result)
}

func (h *Handlers) HandleHistory(ctx context.Context, userID string) error {
	history, err := h.client.History(ctx, userID)
	if err != nil {
		return err
	}
	return h.print(history)
}

func (h *Handlers) HandleHasOwned(ctx context.Context, productID, userID string) error {
	check, err := h.client.HasEverOwned(ctx, productID, userID)
	if err != nil {
		return err
	}
	return h.print(check)
}

func (h *Handlers) HandleNotifications(ctx context.Context, markRead string) error {
	if markRead != "" {
		if err := h.client.MarkRead(ctx, markRead); err != nil {
			return err
		}
		logger.Infof("Notification %s marked as read", markRead)
	}
	list, err := h.client.Notifications(ctx)
	if err != nil {
		return err
	}
	return h.print(list)
}

func (h *Handlers) HandleEvents(ctx context.Context, productID string) error {
	events, err := h.client.ProductEvents(ctx, productID)
	if err != nil {
		return err
	}
	return h.print(events)
}

func (h *Handlers) HandleHealth(ctx context.Context) error {
	st, err := h.client.Health(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(h.out, st.String())
	return err
}
