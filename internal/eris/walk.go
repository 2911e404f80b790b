package eris

import (
	"context"
	"sync"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
)

// WalkFunc is called with the verified ciphertext of each block of a tree.
type WalkFunc func(ref crypto.Reference, level int, ciphertext []byte) error

// Walk visits every block reachable from the capability, root level first and
// left to right within a level. Blocks are checked against their references
// before fn sees them.
func Walk(ctx context.Context, capability ReadCapability, store storage.Store, fn WalkFunc) (Stats, error) {
	return walk(ctx, capability, store, DecodeOptions{Concurrency: 1}, fn)
}

// Verify checks every block of the tree and the final padding without
// keeping the content.
func Verify(ctx context.Context, capability ReadCapability, store storage.Store, opts DecodeOptions) (Stats, error) {
	stats, err := walk(ctx, capability, store, opts, nil)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Copy stores every block of the tree from src into dst.
func Copy(ctx context.Context, capability ReadCapability, src, dst storage.Store) (Stats, error) {
	return walk(ctx, capability, src, DecodeOptions{}, func(ref crypto.Reference, _ int, ciphertext []byte) error {
		return dst.Put(ctx, ref, ciphertext)
	})
}

func walk(ctx context.Context, capability ReadCapability, store storage.Store, opts DecodeOptions, fn WalkFunc) (Stats, error) {
	d, err := newDecoder(capability, store, opts)
	if err != nil {
		return Stats{}, err
	}

	var visit visitFunc
	if fn != nil {
		var mu sync.Mutex
		visit = func(ref crypto.Reference, level int, ciphertext []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return fn(ref, level, ciphertext)
		}
	}

	leaves, nodes, err := d.leafPairs(ctx, visit)
	if err != nil {
		return Stats{}, err
	}

	last := len(leaves) - 1
	tail := make([]byte, d.blockSize)
	err = d.forEach(ctx, leaves, func(ctx context.Context, i int, p Pair) error {
		var dst []byte
		if i == last {
			dst = tail
		}
		ciphertext, err := d.fetch(ctx, p, 0, dst)
		if err != nil {
			return err
		}
		if visit != nil {
			return visit(p.Reference, 0, ciphertext)
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	content, err := unpad(tail)
	if err != nil {
		return Stats{}, &BlockError{Reference: leaves[last].Reference, Level: 0, Err: err}
	}

	return Stats{
		BlockSize:   d.blockSize,
		Level:       int(capability.Level),
		LeafBlocks:  len(leaves),
		NodeBlocks:  nodes,
		ContentSize: int64(last*d.blockSize + len(content)),
	}, nil
}
