package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/logging"
	"github.com/iliyamo/storefront/internal/service"
)

func seedAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the default admin account if no admin exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)
			ctx := contextOrBackground(cmd.Context())

			users, closeStore, err := openUserStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			created, err := service.NewAuthService(users, service.AuthConfigFrom(cfg), log).SeedDefaultAdmin(ctx)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", cfg.AdminEmail)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "admin already present")
			}
			return nil
		},
	}
}
