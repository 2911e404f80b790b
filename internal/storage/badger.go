package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/illarion/eris/internal/crypto"
	"go.uber.org/zap"
)

// Badger stores blocks in a badger directory. The vault uses it as a
// self-contained bundle that can be shipped elsewhere and imported.
type Badger struct {
	db  *badger.DB
	dir string
}

// OpenBadger opens or creates a badger block store in dir.
// Badger's internal logging is routed to logger when it is not nil.
func OpenBadger(dir string, logger *zap.Logger) (*Badger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	if logger != nil {
		opts.Logger = badgerLogger{logger.Named("badger").Sugar()}
	}
	opts.ValueLogFileSize = 1024 * 1024 * 100
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store %s: %w", dir, err)
	}
	return &Badger{db: db, dir: dir}, nil
}

func (b *Badger) String() string {
	return "badger:" + b.dir
}

// Close closes the underlying database
func (b *Badger) Close() error {
	return b.db.Close()
}

// Get retrieves the block stored under ref
func (b *Badger) Get(ctx context.Context, ref crypto.Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var block []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ref[:])
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get %s: %w", ref, ErrNotFound)
		}
		if err != nil {
			return err
		}
		block, err = item.ValueCopy(nil)
		return err
	})
	return block, err
}

// Put stores a block under ref unless it is already present
func (b *Badger) Put(ctx context.Context, ref crypto.Reference, block []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(ref[:])
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(ref[:], block)
	})
}

// Len returns the number of stored blocks
func (b *Badger) Len() (int, error) {
	n := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// badgerLogger adapts a zap SugaredLogger to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
