package eris

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DecodeOptions configures decoding, verification and copying.
type DecodeOptions struct {
	// Concurrency bounds in-flight store operations. Zero means runtime.NumCPU().
	Concurrency int
	Logger      *zap.Logger
}

type decoder struct {
	store       storage.Store
	capability  ReadCapability
	blockSize   int
	concurrency int
	logger      *zap.Logger
}

func newDecoder(capability ReadCapability, store storage.Store, opts DecodeOptions) (*decoder, error) {
	if err := CheckBlockSizeExponent(capability.BlockSizeExponent); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCapability, err)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &decoder{
		store:       store,
		capability:  capability,
		blockSize:   capability.BlockSize(),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Decode fetches, verifies and decrypts every block reachable from the
// capability and returns the original content. On error no content is returned.
func Decode(ctx context.Context, capability ReadCapability, store storage.Store, opts DecodeOptions) ([]byte, error) {
	d, err := newDecoder(capability, store, opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	leaves, _, err := d.leafPairs(ctx, nil)
	if err != nil {
		return nil, err
	}

	bs := d.blockSize
	out := make([]byte, len(leaves)*bs)
	err = d.forEach(ctx, leaves, func(ctx context.Context, i int, p Pair) error {
		_, err := d.fetch(ctx, p, 0, out[i*bs:(i+1)*bs])
		return err
	})
	if err != nil {
		return nil, err
	}

	last := (len(leaves) - 1) * bs
	tail, err := unpad(out[last:])
	if err != nil {
		return nil, &BlockError{Reference: leaves[len(leaves)-1].Reference, Level: 0, Err: err}
	}
	content := out[:last+len(tail)]

	d.logger.Debug("decoded",
		zap.Int("size", len(content)),
		zap.Int("level", int(capability.Level)),
		zap.Int("leaves", len(leaves)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

// visitFunc receives the ciphertext of every node block while the tree is expanded.
type visitFunc func(ref crypto.Reference, level int, ciphertext []byte) error

// leafPairs expands the node levels top-down and returns the ordered leaf pairs
// together with the number of node blocks seen.
func (d *decoder) leafPairs(ctx context.Context, visit visitFunc) ([]Pair, int, error) {
	pairs := []Pair{d.capability.Root()}
	nodes := 0
	for level := int(d.capability.Level); level > 0; level-- {
		children := make([][]Pair, len(pairs))
		err := d.forEach(ctx, pairs, func(ctx context.Context, i int, p Pair) error {
			block := make([]byte, d.blockSize)
			ciphertext, err := d.fetch(ctx, p, level, block)
			if err != nil {
				return err
			}
			if visit != nil {
				if err := visit(p.Reference, level, ciphertext); err != nil {
					return err
				}
			}
			children[i], err = parsePairs(block)
			if err != nil {
				return &BlockError{Reference: p.Reference, Level: level, Err: err}
			}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}

		nodes += len(pairs)
		next := make([]Pair, 0, len(pairs)*(d.blockSize/PairSize))
		for _, c := range children {
			next = append(next, c...)
		}
		pairs = next
	}
	return pairs, nodes, nil
}

// forEach runs fn for every pair with at most d.concurrency calls in flight.
func (d *decoder) forEach(ctx context.Context, pairs []Pair, fn func(ctx context.Context, i int, p Pair) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, p := range pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i, p)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// fetch gets the block addressed by p, checks its size and integrity, and
// decrypts it into dst unless dst is nil. It returns the ciphertext.
func (d *decoder) fetch(ctx context.Context, p Pair, level int, dst []byte) ([]byte, error) {
	ciphertext, err := d.store.Get(ctx, p.Reference)
	if err != nil {
		return nil, &BlockError{Reference: p.Reference, Level: level, Err: err}
	}
	if len(ciphertext) != d.blockSize {
		return nil, &BlockError{
			Reference: p.Reference,
			Level:     level,
			Err:       fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedBlock, len(ciphertext), d.blockSize),
		}
	}
	if crypto.DeriveReference(ciphertext) != p.Reference {
		return nil, &BlockError{Reference: p.Reference, Level: level, Err: ErrIntegrity}
	}
	if dst != nil {
		if err := crypto.XORKeyStream(dst, ciphertext, p.Key); err != nil {
			return nil, &BlockError{Reference: p.Reference, Level: level, Err: err}
		}
	}
	return ciphertext, nil
}

// parsePairs splits a decrypted node block into pairs. The pairs end at the
// first all-zero pair and everything after it must be zero too.
func parsePairs(block []byte) ([]Pair, error) {
	if len(block)%PairSize != 0 {
		return nil, fmt.Errorf("%w: node size %d is not a multiple of %d", ErrMalformedBlock, len(block), PairSize)
	}
	var pairs []Pair
	off := 0
	for ; off < len(block); off += PairSize {
		var p Pair
		copy(p.Reference[:], block[off:])
		copy(p.Key[:], block[off+crypto.ReferenceSize:])
		if p.isZero() {
			break
		}
		pairs = append(pairs, p)
	}
	for _, b := range block[off:] {
		if b != 0 {
			return nil, fmt.Errorf("%w: data after the last reference", ErrMalformedBlock)
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: node holds no references", ErrMalformedBlock)
	}
	return pairs, nil
}
