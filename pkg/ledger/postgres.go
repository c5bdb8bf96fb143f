package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medrex/record-registry/pkg/database"
	"github.com/medrex/record-registry/pkg/logger"
)

const (
	selectStateQuery = `SELECT value FROM ledger_state WHERE key = $1`
	upsertStateQuery = `INSERT INTO ledger_state (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// Postgres is a ledger stored in the ledger_state table. Keys are stored as
// bytea since registry keys contain NUL, which text columns reject.
type Postgres struct {
	db     *database.DB
	logger *logger.Logger
}

// NewPostgres creates a postgres ledger over an open connection
func NewPostgres(db *database.DB, log *logger.Logger) *Postgres {
	return &Postgres{db: db, logger: log}
}

func (p *Postgres) GetState(key string) ([]byte, error) {
	ctx := context.Background()
	start := time.Now()

	var value []byte
	err := p.db.QueryRowContext(ctx, selectStateQuery, []byte(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		p.logger.DatabaseOperation(ctx, "select", "ledger_state", time.Since(start).Milliseconds(), 0, false, nil)
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return value, nil
}

func (p *Postgres) PutState(key string, value []byte) error {
	return p.WriteBatch([]Write{{Key: key, Value: value}})
}

// WriteBatch upserts every write inside one SQL transaction
func (p *Postgres) WriteBatch(writes []Write) error {
	ctx := context.Background()
	start := time.Now()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range writes {
		if _, err := tx.ExecContext(ctx, upsertStateQuery, []byte(w.Key), w.Value); err != nil {
			p.logger.DatabaseOperation(ctx, "upsert", "ledger_state", time.Since(start).Milliseconds(), 0, false,
				map[string]interface{}{"error": err.Error()})
			return fmt.Errorf("failed to write key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.DatabaseOperation(ctx, "upsert", "ledger_state", time.Since(start).Milliseconds(), int64(len(writes)), true, nil)
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
