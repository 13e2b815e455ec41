package cmd

import (
	"fmt"

	"github.com/ddr4869/agrichain/catalog"
	"github.com/ddr4869/agrichain/common/logger"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var validRoles = map[types.Role]bool{
	types.RoleFarmer:      true,
	types.RoleDistributor: true,
	types.RoleRetailer:    true,
	types.RoleConsumer:    true,
}

// seedUserCmd registers an identity directly in the ledger storage. The node
// must not be running, since it holds the storage lock.
func seedUserCmd() *cobra.Command {
	var user types.User
	var role string

	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Register a user identity in the ledger storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user.Role = types.Role(role)
			if !validRoles[user.Role] {
				return errors.Errorf("unknown role %q", role)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.InMemory {
				return errors.New("seed-user needs persistent storage")
			}

			db, err := openStorage(cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := catalog.New(db).SaveUser(cmd.Context(), &user); err != nil {
				return err
			}
			logger.Infof("Registered %s %s", user.Role, user.DisplayName())
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&user.ID, "id", "", "User id (generated when empty)")
	cmd.Flags().StringVar(&user.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&user.Username, "username", "", "Username")
	cmd.Flags().StringVar(&user.Email, "email", "", "Email")
	cmd.Flags().StringVar(&role, "role", string(types.RoleFarmer), "farmer, distributor, retailer or consumer")
	cmd.MarkFlagRequired("name")
	return cmd
}
