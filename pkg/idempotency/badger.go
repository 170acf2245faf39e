package idempotency

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/filehorizon/filehorizon/internal/logger"
	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

// BadgerStore persists markers in a local Badger database with native TTL
// entries. Markers survive restarts but are not shared across replicas, so
// this backend fits single-node installs only.
type BadgerStore struct {
	db *badger.DB
}

// errAlreadyMarked signals a lost claim inside the update transaction.
var errAlreadyMarked = errors.New("already marked")

// NewBadgerStore opens (or creates) the database at path. An empty path opens
// an in-memory database, which is only useful in tests.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fherrors.Wrap(fherrors.KindIdempotency, fherrors.CodeStoreFailed,
			"idempotency.NewBadgerStore", err)
	}
	return &BadgerStore{db: db}, nil
}

// TryMarkProcessed claims the key inside one read-modify-write transaction.
// A conflicting concurrent transaction or any store error returns false.
func (s *BadgerStore) TryMarkProcessed(ctx context.Context, key string, ttl time.Duration) bool {
	if key == "" || ctx.Err() != nil {
		return false
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == nil {
			return errAlreadyMarked
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		entry := badger.NewEntry([]byte(key), []byte("1")).WithTTL(clampTTL(ttl))
		return txn.SetEntry(entry)
	})
	if errors.Is(err, errAlreadyMarked) {
		return false
	}
	if err != nil {
		logger.Warn("idempotency claim failed, treating as already processed",
			logger.KeyIdentityKey, key,
			logger.KeyError, err.Error())
		return false
	}
	return true
}

// Close flushes and closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
