package main

import (
	"context"
	"fmt"

	"github.com/susu3304/bidgame/internal/config"
	"github.com/susu3304/bidgame/internal/db"
	"github.com/susu3304/bidgame/internal/guess"
	"github.com/susu3304/bidgame/internal/sqlite"
)

// openStore connects the configured backend and applies its migrations.
func openStore(ctx context.Context, c *config.Config) (guess.Store, func(), error) {
	switch c.StoreDriver {
	case config.DriverMemory:
		return guess.NewMemoryStore(), func() {}, nil
	case config.DriverPostgres:
		database, err := db.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.RunMigrations(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return database, database.Close, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
}

func newService(store guess.Store, c *config.Config) (*guess.Service, error) {
	return guess.NewService(store, guess.WithWindows(c.Windows()))
}
