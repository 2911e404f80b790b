package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"go.uber.org/zap"
)

// Instrument wraps store so that every Get and Put is logged at debug level.
func Instrument(logger *zap.Logger, store Store) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &instrumentedStore{
		store: store,
		logs:  logger.With(zap.String("store", describe(store))),
	}
}

type instrumentedStore struct {
	store Store
	logs  *zap.Logger
}

func describe(store Store) string {
	if s, ok := store.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", store)
}

func (i *instrumentedStore) String() string {
	return describe(i.store)
}

func (i *instrumentedStore) Get(ctx context.Context, ref crypto.Reference) ([]byte, error) {
	start := time.Now()
	block, err := i.store.Get(ctx, ref)
	if err != nil {
		i.logs.Debug("storage get failed", zap.Stringer("ref", ref), zap.Error(err))
		return nil, err
	}
	i.logs.Debug("storage get",
		zap.Stringer("ref", ref),
		zap.Int("size", len(block)),
		zap.Duration("elapsed", time.Since(start)))
	return block, nil
}

func (i *instrumentedStore) Put(ctx context.Context, ref crypto.Reference, block []byte) error {
	start := time.Now()
	if err := i.store.Put(ctx, ref, block); err != nil {
		i.logs.Debug("storage put failed", zap.Stringer("ref", ref), zap.Error(err))
		return err
	}
	i.logs.Debug("storage put",
		zap.Stringer("ref", ref),
		zap.Int("size", len(block)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
