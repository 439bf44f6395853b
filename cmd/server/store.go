package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/storefront/internal/config"
	"github.com/iliyamo/storefront/internal/database"
	"github.com/iliyamo/storefront/internal/repository"
	"github.com/iliyamo/storefront/internal/service"
)

// openUserStore connects the credential store named by STORE_DRIVER.  The
// returned func releases the connection.
func openUserStore(ctx context.Context, cfg config.Config, log *slog.Logger) (service.UserStore, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewUserMongoRepo(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, fmt.Errorf("create indexes: %w", err)
		}
		log.Info("credential store ready", slog.String("driver", config.DriverMongo), slog.String("db", cfg.MongoDB))
		return repo, func() { _ = db.Client().Disconnect(context.Background()) }, nil

	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("credential store ready", slog.String("driver", config.DriverMySQL), slog.String("db", cfg.DBName))
		return repository.NewUserRepo(db), func() { _ = db.Close() }, nil
	}
}
