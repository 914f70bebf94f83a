package store

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-ref-sync/internal/config"
	"github.com/MKhiriev/go-ref-sync/internal/logger"
)

// ClientStorages groups the client storage layer.
type ClientStorages struct {
	LocalStore LocalStore
	db         *DB
}

// NewClientStorages opens the SQLite file from cfg, runs the migrations and
// wires the local store.
func NewClientStorages(ctx context.Context, cfg config.ClientStorage, logger *logger.Logger) (*ClientStorages, error) {
	logger.Info().Str("dsn", cfg.DB.DSN).Msg("opening local storage...")

	db, err := NewConnectSQLite(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("sqlite connection error: %w", err)
	}

	if err = db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &ClientStorages{
		LocalStore: NewLocalStore(db, logger),
		db:         db,
	}, nil
}

// Close releases the database connection.
func (c *ClientStorages) Close() error {
	return c.db.Close()
}
