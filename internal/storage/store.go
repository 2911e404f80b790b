package storage

import (
	"context"
	"errors"

	"github.com/illarion/eris/internal/crypto"
)

// ErrNotFound is returned by Get when no block is stored under the reference.
var ErrNotFound = errors.New("block not found")

// Store is a content-addressed block store.
//
// Put for a reference that is already present must leave the stored block
// unchanged; since the reference is the hash of the block, both copies are
// identical anyway. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, ref crypto.Reference) ([]byte, error)
	Put(ctx context.Context, ref crypto.Reference, block []byte) error
}
