package cmd

import (
	"fmt"
	"time"

	"github.com/ddr4869/agrichain/common/crypto"
	"github.com/spf13/cobra"
)

// genTLSCmd writes a self-signed key pair for tls_cert_file/tls_key_file.
// The certificate doubles as the client's root CA.
func genTLSCmd() *cobra.Command {
	var (
		dir      string
		hosts    []string
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gen-tls",
		Short: "Generate a self-signed TLS key pair for the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cert, key, err := crypto.GenerateNodeCert("ledgerd", hosts, validFor)
			if err != nil {
				return err
			}
			certFile, keyFile, err := crypto.WriteKeyPair(dir, cert, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "certificate: %s\nkey: %s\n", certFile, keyFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "tls", "Output directory")
	cmd.Flags().StringSliceVar(&hosts, "host", []string{"localhost", "127.0.0.1"}, "Host names and IPs the certificate is valid for")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "Certificate lifetime")
	return cmd
}
