package main

import (
	"os"

	"github.com/ddr4869/agrichain/client"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/config"
	"github.com/ddr4869/agrichain/transfer"
	"github.com/spf13/cobra"
)

var (
	configPath string
	address    string
	userID     string

	ledgerClient *client.LedgerClient
	cliHandlers  *client.Handlers
)

var rootCmd = &cobra.Command{
	Use:               "ledgerctl",
	Short:             "Ownership ledger client",
	Long:              `ledgerctl registers products, moves their ownership and inspects their chains on a ledger node.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeClient,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if ledgerClient != nil {
			ledgerClient.Close()
		}
	},
}

func productCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Product registration"}

	var f client.ProductFlags
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a product and open its ownership chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.HasPrice = cmd.Flags().Changed("price")
			return cliHandlers.HandleRegisterProduct(cmd.Context(), &f)
		},
	}
	register.Flags().StringVar(&f.Name, "name", "", "Product name")
	register.Flags().StringVar(&f.Category, "category", "", "Category")
	register.Flags().StringVar(&f.Description, "description", "", "Description")
	register.Flags().Float64Var(&f.Quantity, "quantity", 0, "Quantity")
	register.Flags().StringVar(&f.Unit, "unit", "kg", "Unit of the quantity")
	register.Flags().StringVar(&f.FarmName, "farm", "", "Farm name")
	register.Flags().StringVar(&f.Location, "location", "", "Location")
	register.Flags().StringVar(&f.HarvestDate, "harvest-date", "", "Harvest date, YYYY-MM-DD")
	register.Flags().StringSliceVar(&f.Certifications, "certification", nil, "Certification, repeatable")
	register.Flags().Float64Var(&f.Price, "price", 0, "Price")

	owned := &cobra.Command{
		Use:   "owned",
		Short: "List the products you currently own",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleOwnedProducts(cmd.Context())
		},
	}

	cmd.AddCommand(register, owned)
	return cmd
}

func transferCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "transfer", Short: "Ownership transfers"}

	var in transfer.CreateInput
	create := &cobra.Command{
		Use:   "create [product-id]",
		Short: "Offer a product you own, or request one you do not",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.ProductID = args[0]
			return cliHandlers.HandleCreateTransfer(cmd.Context(), in)
		},
	}
	create.Flags().StringVar(&in.ToUserID, "to", "", "Recipient user id, for offers")
	create.Flags().StringVar(&in.TransferType, "type", "", "Transfer type")
	create.Flags().StringVar(&in.Notes, "notes", "", "Notes")

	var reqType, reqNotes string
	request := &cobra.Command{
		Use:   "request [product-id]",
		Short: "Request a product from its current owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleRequestProduct(cmd.Context(), args[0], reqType, reqNotes)
		},
	}
	request.Flags().StringVar(&reqType, "type", "", "Transfer type")
	request.Flags().StringVar(&reqNotes, "notes", "", "Notes")

	var fields, proof string
	accept := &cobra.Command{
		Use:   "accept [transfer-id]",
		Short: "Accept a transfer addressed to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleAcceptTransfer(cmd.Context(), args[0], fields, proof)
		},
	}
	accept.Flags().StringVar(&fields, "fields", "", `Registration form as JSON, e.g. '{"storeName":"Corner Shop"}'`)
	accept.Flags().StringVar(&proof, "proof", "", "Payment proof file to attach")

	reject := &cobra.Command{
		Use:   "reject [transfer-id]",
		Short: "Reject a transfer addressed to you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleRejectTransfer(cmd.Context(), args[0])
		},
	}

	pending := &cobra.Command{
		Use:   "pending",
		Short: "List transfers waiting on your decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandlePendingTransfers(cmd.Context())
		},
	}

	var proofOut string
	proofCmd := &cobra.Command{
		Use:   "proof [transfer-id]",
		Short: "Download the payment proof of an accepted transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandlePaymentProof(cmd.Context(), args[0], proofOut)
		},
	}
	proofCmd.Flags().StringVarP(&proofOut, "out", "o", "", "Output file, defaults to the stored file name")

	list := &cobra.Command{
		Use:   "list [product-id]",
		Short: "List your transfers on a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleProductTransfers(cmd.Context(), args[0])
		},
	}

	cmd.AddCommand(create, request, accept, reject, pending, list, proofCmd)
	return cmd
}

func chainCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chain", Short: "Ownership chains"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show [product-id]",
			Short: "Print the ownership chain of a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cliHandlers.HandleChainShow(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "verify [product-id]",
			Short: "Verify the hash links of a product chain",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cliHandlers.HandleChainVerify(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "events [product-id]",
			Short: "Print the audit log of a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return cliHandlers.HandleEvents(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func queryCmds() []*cobra.Command {
	var historyUser, ownedUser, markRead string

	history := &cobra.Command{
		Use:   "history",
		Short: "Products a user has owned",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleHistory(cmd.Context(), historyUser)
		},
	}
	history.Flags().StringVar(&historyUser, "user", "", "User id, defaults to yourself")

	hasOwned := &cobra.Command{
		Use:   "has-owned [product-id]",
		Short: "Check whether a user ever owned a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleHasOwned(cmd.Context(), args[0], ownedUser)
		},
	}
	hasOwned.Flags().StringVar(&ownedUser, "user", "", "User id, defaults to yourself")

	notifications := &cobra.Command{
		Use:   "notifications",
		Short: "List your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleNotifications(cmd.Context(), markRead)
		},
	}
	notifications.Flags().StringVar(&markRead, "mark-read", "", "Notification id to mark as read first")

	health := &cobra.Command{
		Use:   "health",
		Short: "Check the ledger node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliHandlers.HandleHealth(cmd.Context())
		},
	}
	return []*cobra.Command{history, hasOwned, notifications, health}
}

func init() {
	if err := logger.InitializeDevelopment(); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&address, "address", "", "Ledger node address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&userID, "user-id", "", "Acting user id (overrides config)")

	rootCmd.AddCommand(productCmd(), transferCmd(), chainCmd())
	rootCmd.AddCommand(queryCmds()...)
}

// initializeClient dials the node before any command runs
func initializeClient(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if address == "" {
		address = cfg.Client.Address
	}
	if userID == "" {
		userID = cfg.Client.UserID
	}

	ledgerClient, err = client.Dial(address, client.Options{
		UserID:     userID,
		TLS:        cfg.Client.TLSEnabled,
		RootCAFile: cfg.Client.TLSRootCAFile,
	})
	if err != nil {
		return err
	}
	cliHandlers = client.NewHandlers(ledgerClient, cmd.OutOrStdout())
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Command execution failed (%s): %v", client.KindFromStatus(err), err)
		for _, d := range client.DefectsFromStatus(err) {
			logger.Errorf("  block %d: %s", d.BlockNumber, d.Reason)
		}
		os.Exit(1)
	}
}
