// Package app opens the storage backends selected by configuration. The
// API server and remindctl share it so both see the same data.
package app

import (
	"fmt"
	"log"

	deviceRepo "lifebook-backend/internal/device/repository"
	"lifebook-backend/internal/permission"
	reminderRepo "lifebook-backend/internal/reminder/repository"
	"lifebook-backend/pkg/config"
	"lifebook-backend/pkg/database"
	"lifebook-backend/pkg/kv"
)

type Stores struct {
	Cache       kv.Store
	Permissions permission.Store
	Devices     deviceRepo.DeviceRepository
	// Reminders is nil when there is no reminders database; clients then
	// push their reminders through the worker message endpoint.
	Reminders reminderRepo.ReminderRepository

	close func() error
}

func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func OpenStores(cfg *config.Config) (*Stores, error) {
	owner := cfg.Reminder.OwnerID

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := database.NewPostgresConnection(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		cache, err := kv.NewGorm(db)
		if err != nil {
			return nil, fmt.Errorf("failed to init kv store: %w", err)
		}
		perms, err := permission.NewGormStore(db)
		if err != nil {
			return nil, fmt.Errorf("failed to init permission store: %w", err)
		}
		devices, err := deviceRepo.NewGormDeviceRepository(db, owner)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		return &Stores{
			Cache:       cache,
			Permissions: perms,
			Devices:     devices,
			Reminders:   reminderRepo.NewGormReminderRepository(db, owner),
			close:       sqlDB.Close,
		}, nil

	case config.DriverSQLite:
		cache, err := kv.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("[Store] Using sqlite cache at %s", cfg.Store.SQLitePath)
		return &Stores{
			Cache:       cache,
			Permissions: permission.NewKVStore(cache),
			Devices:     deviceRepo.NewMemoryDeviceRepository(owner),
			close:       cache.Close,
		}, nil

	case config.DriverMemory:
		log.Println("[Store] Using in-memory stores, nothing survives a restart")
		cache := kv.NewMemory()
		return &Stores{
			Cache:       cache,
			Permissions: permission.NewKVStore(cache),
			Devices:     deviceRepo.NewMemoryDeviceRepository(owner),
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
}
