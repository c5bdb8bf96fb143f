package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the key/value table backing the postgres ledger
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	if _, err := db.ExecContext(ctx, createLedgerStateTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createLedgerStateTable = `
CREATE TABLE IF NOT EXISTS ledger_state (
    key BYTEA PRIMARY KEY,
    value BYTEA NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);`
