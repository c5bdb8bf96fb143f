// Package ledger defines the key/value state the record registry runs over
// and provides the backends the registry service can be deployed on.
package ledger

import (
	"context"
	"fmt"

	"github.com/medrex/record-registry/pkg/config"
	"github.com/medrex/record-registry/pkg/database"
	"github.com/medrex/record-registry/pkg/logger"
)

// Ledger is the key/value world state. A nil value from GetState means the
// key is absent. The chaincode stub satisfies this interface directly.
type Ledger interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
}

// Write is one buffered key/value assignment
type Write struct {
	Key   string
	Value []byte
}

// BatchWriter is implemented by backends that can apply several writes
// atomically. Backends without it get one PutState per write.
type BatchWriter interface {
	WriteBatch(writes []Write) error
}

// EventEmitter is implemented by backends that publish named events
// alongside committed state.
type EventEmitter interface {
	SetEvent(name string, payload []byte) error
}

// Store is a ledger owned by the process that can be health checked and
// closed.
type Store interface {
	Ledger
	BatchWriter
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the backend selected by cfg
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerMemory, "":
		log.Info("Using in-memory ledger")
		return NewMemory(), nil
	case config.LedgerLevelDB:
		log.WithField("path", cfg.Ledger.Path).Info("Opening leveldb ledger")
		return OpenLevelDB(cfg.Ledger.Path)
	case config.LedgerPostgres:
		db, err := database.NewConnection(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := db.CreateSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewPostgres(db, log), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend: %q", cfg.Ledger.Backend)
	}
}
