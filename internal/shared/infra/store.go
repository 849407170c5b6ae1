package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pocketfiler/internal/shared/storage"
	"pocketfiler/internal/shared/storage/dbutil"
	"pocketfiler/internal/shared/storage/driver/postgres"
	"pocketfiler/internal/shared/storage/driver/sqlite"
	"pocketfiler/internal/shared/storage/mongostore"
	"pocketfiler/internal/shared/storage/repository"
)

// OpenStore 按驱动类型打开存储
//
// driver: "mongodb"、"postgres" 或 "sqlite"；dbName 仅 MongoDB 使用。
// SQL 驱动在启动时自动建表。
func OpenStore(ctx context.Context, driver, databaseURL, dbName string) (storage.Store, error) {
	start := time.Now()
	switch driver {
	case "mongodb", "":
		s, err := mongostore.NewStore(databaseURL, dbName)
		if err != nil {
			return nil, err
		}
		log.Info("store ready", "driver", "mongodb", "db", dbName, "elapsed", time.Since(start))
		return s, nil

	case "postgres":
		db, err := postgres.Open(databaseURL)
		if err != nil {
			return nil, err
		}
		return openSQL(ctx, db, postgres.NewDialect(), start)

	case "sqlite":
		db, err := sqlite.Open(databaseURL)
		if err != nil {
			return nil, err
		}
		return openSQL(ctx, db, sqlite.NewDialect(), start)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQL(ctx context.Context, db *sql.DB, dialect dbutil.Dialect, start time.Time) (storage.Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping failed: %w", dialect.DriverType(), err)
	}
	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: migrate failed: %w", dialect.DriverType(), err)
	}
	log.Info("store ready", "driver", string(dialect.DriverType()), "elapsed", time.Since(start))
	return repository.NewStore(db, dialect), nil
}
