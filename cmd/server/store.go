package main

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/adapter/storage/memory"
	"github.com/seu-repo/parkflow/internal/adapter/storage/postgres"
	"github.com/seu-repo/parkflow/internal/ports"
	"github.com/seu-repo/parkflow/pkg/config"
)

// repositories is the storage side of the composition root
type repositories struct {
	slots         ports.SlotRepository
	bookings      ports.BookingRepository
	ledger        ports.LedgerRepository
	subscriptions ports.SubscriptionRepository
	vehicles      ports.VehicleRepository
	users         ports.UserRepository
	notifications ports.NotificationRepository

	// sqlDB is nil for the memory driver
	sqlDB *sql.DB
}

func (r *repositories) Close() error {
	if r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}

func openRepositories(cfg config.DatabaseConfig, logger *zap.Logger) (*repositories, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using the in-memory store; state is lost on restart and not shared between instances")
		store := memory.NewStore()
		return &repositories{
			slots:         store.Slots(),
			bookings:      store.Bookings(),
			ledger:        store.Ledger(),
			subscriptions: store.Subscriptions(),
			vehicles:      store.Vehicles(),
			users:         store.Users(),
			notifications: store.Notifications(),
		}, nil
	}

	db, err := postgres.NewConnection(cfg.URL, postgres.PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		LogLevel:        cfg.LogLevel,
	}, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(db); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	store := postgres.NewStore(db, logger)
	return &repositories{
		slots:         store.Slots(),
		bookings:      store.Bookings(),
		ledger:        store.Ledger(),
		subscriptions: store.Subscriptions(),
		vehicles:      store.Vehicles(),
		users:         store.Users(),
		notifications: store.Notifications(),
		sqlDB:         sqlDB,
	}, nil
}
