package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB is a ledger persisted in an embedded leveldb database
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates the database at path
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// OpenLevelDBStorage opens a database on an explicit storage, such as
// storage.NewMemStorage()
func OpenLevelDBStorage(stor storage.Storage) (*LevelDB, error) {
	db, err := leveldb.Open(stor, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) GetState(key string) ([]byte, error) {
	value, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	return value, nil
}

func (l *LevelDB) PutState(key string, value []byte) error {
	if err := l.db.Put([]byte(key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

// WriteBatch commits all writes in one leveldb batch
func (l *LevelDB) WriteBatch(writes []Write) error {
	batch := new(leveldb.Batch)
	for _, w := range writes {
		batch.Put([]byte(w.Key), w.Value)
	}
	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// Ping reads a database property to confirm the database is open
func (l *LevelDB) Ping(ctx context.Context) error {
	if _, err := l.db.GetProperty("leveldb.stats"); err != nil {
		return fmt.Errorf("leveldb unavailable: %w", err)
	}
	return nil
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
