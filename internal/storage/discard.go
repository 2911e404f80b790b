package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/illarion/eris/internal/crypto"
)

// Discard drops every block it is given.
// It is useful to compute a capability, or the size of an encoding,
// without persisting anything.
type Discard struct {
	blocks atomic.Int64
	bytes  atomic.Int64
}

func (d *Discard) String() string {
	return "discard"
}

// Get always fails with ErrNotFound
func (d *Discard) Get(_ context.Context, ref crypto.Reference) ([]byte, error) {
	return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
}

// Put counts the block and forgets it
func (d *Discard) Put(ctx context.Context, _ crypto.Reference, block []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.blocks.Add(1)
	d.bytes.Add(int64(len(block)))
	return nil
}

// Blocks returns the number of Put calls
func (d *Discard) Blocks() int64 {
	return d.blocks.Load()
}

// Bytes returns the total size of all blocks passed to Put
func (d *Discard) Bytes() int64 {
	return d.bytes.Load()
}
