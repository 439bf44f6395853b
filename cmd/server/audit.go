package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/logging"
	"github.com/iliyamo/storefront/internal/queue"
)

func auditConsumerCmd() *cobra.Command {
	var logPath string
	cmd := &cobra.Command{
		Use:   "audit-consumer",
		Short: "Append checkout.created events to an audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.RabbitURL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = queue.NewConsumer(cfg.RabbitURL, logPath, log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logPath, "log", queue.DefaultAuditLog, "audit log file")
	return cmd
}
