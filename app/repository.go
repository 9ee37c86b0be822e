package main

import (
	"context"
	"fmt"

	"cleanrate/app/config"
	"cleanrate/app/services"
	"cleanrate/app/storage/graph"
	"cleanrate/app/storage/memory"
	"cleanrate/app/storage/sqlite"

	"github.com/rs/zerolog/log"
)

// openRepository connects the configured storage backend. The returned func releases it.
func openRepository(ctx context.Context, storage config.StorageConfig) (services.Repository, func(), error) {
	switch storage.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory storage; data is lost on exit")
		return memory.New(), func() {}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(storage.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewStore(db), func() { _ = db.Close() }, nil
	case config.DriverNeo4j:
		driver, err := config.InitNeo4j(ctx, storage.Neo4j)
		if err != nil {
			return nil, nil, err
		}
		store := graph.NewStore(driver, storage.Neo4j.Database)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = driver.Close(ctx)
			return nil, nil, err
		}
		return store, func() { _ = driver.Close(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", storage.Driver)
}

func retryPolicy(p config.PropagationConfig) services.RetryPolicy {
	return services.RetryPolicy{
		MaxAttempts:     p.MaxAttempts,
		InitialInterval: p.InitialBackoff,
		MaxInterval:     p.MaxBackoff,
	}
}
