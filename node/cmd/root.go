package cmd

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"github.com/ddr4869/agrichain/catalog"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/config"
	"github.com/ddr4869/agrichain/ledger"
	"github.com/ddr4869/agrichain/node"
	"github.com/ddr4869/agrichain/proofs"
	"github.com/ddr4869/agrichain/storage"
	"github.com/ddr4869/agrichain/transfer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

var (
	configPath string
	address    string
	dataDir    string
	inMemory   bool
)

// RootCmd runs the ledger node
var RootCmd = &cobra.Command{
	Use:   "ledgerd",
	Short: "Farm-to-shelf ownership ledger node",
	Long: `ledgerd keeps the append-only ownership ledger of every registered product
and serves transfers, chain verification and ownership history over gRPC.`,
	SilenceUsage: true,
	RunE:         runNode,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Ledger data directory (overrides config)")
	RootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "Keep the ledger in memory only")
	RootCmd.Flags().StringVar(&address, "address", "", "Listen address (overrides config)")

	RootCmd.AddCommand(seedUserCmd(), genTLSCmd())
}

// loadConfig applies command line overrides on top of file and environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if address != "" {
		cfg.Node.Address = address
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if inMemory {
		cfg.Storage.InMemory = true
	}
	if err := logger.Initialize(cfg.Log); err != nil {
		return nil, errors.Wrap(err, "failed to initialize logger")
	}
	return cfg, nil
}

func openStorage(cfg *config.StorageConfig) (*storage.Storage, error) {
	if cfg.InMemory {
		return storage.NewInMemory()
	}
	opts := storage.DefaultOptions()
	if cfg.CacheSizeMB > 0 {
		opts.CacheSize = cfg.CacheSizeMB << 20
	}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize << 20
	}
	return storage.New(cfg.DataDir, opts)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	cfg.PrintConfig()

	db, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("Failed to close storage: %v", err)
		}
	}()

	proofStore, err := proofs.NewStore(cfg.Uploads.Dir, cfg.Uploads.MaxSize)
	if err != nil {
		return logger.LogIfError(err, "Failed to prepare uploads directory %s", cfg.Uploads.Dir)
	}

	cat := catalog.New(db)
	store := ledger.NewStore(db, ledger.WithProductNamer(cat))
	svc := transfer.NewService(store, transfer.Deps{
		Identity:  cat,
		Products:  cat,
		Transfers: cat,
		Notifier:  cat,
		Events:    cat,
	})

	// proofs travel inline with the acceptance
	opts := []grpc.ServerOption{grpc.MaxRecvMsgSize(int(cfg.Uploads.MaxSize) + (1 << 20))}
	if cfg.Node.TLSEnabled {
		creds, err := node.ServerCredentials(cfg.Node.TLSCertFile, cfg.Node.TLSKeyFile)
		if err != nil {
			return err
		}
		opts = append(opts, creds)
	}
	srv := node.New(svc, cat, proofStore, opts...)

	lis, err := net.Listen("tcp", cfg.Node.Address)
	if err != nil {
		return logger.WrapErrorf(err, "failed to listen on %s", cfg.Node.Address)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, srv, lis)
}

// serve runs the node until ctx is cancelled or serving fails
func serve(ctx context.Context, srv *node.Server, lis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Received shutdown signal, stopping ledger node...")
		srv.Stop()
		return nil
	})
	return g.Wait()
}
