package eris

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures an encoding.
type Options struct {
	BlockSizeExponent uint8
	// ConvergenceSecret keys every block key. Nil means the null secret.
	ConvergenceSecret []byte
	// Concurrency bounds in-flight store operations. Zero means runtime.NumCPU().
	Concurrency int
	Logger      *zap.Logger
}

// DefaultOptions encodes with 32 KiB blocks and the null convergence secret.
func DefaultOptions() Options {
	return Options{BlockSizeExponent: BlockSize32K}
}

// Stats describes the shape of an encoded tree.
type Stats struct {
	BlockSize   int
	Level       int
	LeafBlocks  int
	NodeBlocks  int
	ContentSize int64
}

// Blocks is the total number of blocks in the tree.
func (s Stats) Blocks() int {
	return s.LeafBlocks + s.NodeBlocks
}

// Encoder encodes the content written to it and stores every block as soon
// as it is complete. Close finishes the tree and returns its capability.
type Encoder struct {
	ctx       context.Context
	store     storage.Store
	secret    []byte
	exp       uint8
	blockSize int
	arity     int
	logger    *zap.Logger

	group *errgroup.Group
	gctx  context.Context

	leaf   []byte
	fill   int
	levels [][]Pair
	stats  Stats
	start  time.Time

	closed     bool
	err        error
	capability ReadCapability
}

// NewEncoder prepares an encoding into store.
func NewEncoder(ctx context.Context, store storage.Store, opts Options) (*Encoder, error) {
	if err := CheckBlockSizeExponent(opts.BlockSizeExponent); err != nil {
		return nil, err
	}
	secret := opts.ConvergenceSecret
	if secret == nil {
		secret = crypto.NullConvergenceSecret()
	}
	if len(secret) != crypto.SecretSize {
		return nil, fmt.Errorf("%w: convergence secret must be %d bytes, got %d", crypto.ErrInvalidArgument, crypto.SecretSize, len(secret))
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	blockSize := 1 << opts.BlockSizeExponent
	return &Encoder{
		ctx:       ctx,
		store:     store,
		secret:    bytes.Clone(secret),
		exp:       opts.BlockSizeExponent,
		blockSize: blockSize,
		arity:     blockSize / PairSize,
		logger:    logger,
		group:     group,
		gctx:      gctx,
		leaf:      make([]byte, blockSize),
		stats:     Stats{BlockSize: blockSize},
		start:     time.Now(),
	}, nil
}

// Write buffers p into leaf blocks, storing each one when it fills.
func (e *Encoder) Write(p []byte) (int, error) {
	if e.closed {
		return 0, ErrEncoderClosed
	}
	n := 0
	for len(p) > 0 {
		if err := e.failure(); err != nil {
			return n, err
		}
		k := copy(e.leaf[e.fill:], p)
		e.fill += k
		n += k
		p = p[k:]
		e.stats.ContentSize += int64(k)

		if e.fill == e.blockSize {
			e.fill = 0
			if err := e.storeLeaf(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close pads the last leaf, folds the pending levels into a single root and
// waits for every store operation. It is safe to call more than once.
func (e *Encoder) Close() (ReadCapability, error) {
	if e.closed {
		return e.capability, e.err
	}
	e.closed = true

	if err := e.failure(); err != nil {
		return ReadCapability{}, e.abort(err)
	}

	pad(e.leaf, e.fill)
	if err := e.storeLeaf(); err != nil {
		return ReadCapability{}, e.abort(err)
	}
	root, level, err := e.fold()
	if err != nil {
		return ReadCapability{}, e.abort(err)
	}
	if err := e.group.Wait(); err != nil {
		e.err = err
		return ReadCapability{}, err
	}

	e.stats.Level = level
	e.capability = ReadCapability{
		BlockSizeExponent: e.exp,
		Level:             uint8(level),
		Reference:         root.Reference,
		Key:               root.Key,
	}
	crypto.ClearBytes(e.secret)

	e.logger.Debug("encoded",
		zap.Int64("size", e.stats.ContentSize),
		zap.Int("block_size", e.blockSize),
		zap.Int("level", level),
		zap.Int("blocks", e.stats.Blocks()),
		zap.Duration("elapsed", time.Since(e.start)),
	)
	return e.capability, nil
}

// Abort discards the encoding and waits for the stores already in flight.
// Blocks stored so far are left in the store.
func (e *Encoder) Abort() {
	if !e.closed {
		e.abort(ErrEncoderClosed)
	}
}

// Stats reports what has been encoded so far.
func (e *Encoder) Stats() Stats {
	return e.stats
}

// failure returns the first error of a store operation or the context.
func (e *Encoder) failure() error {
	if e.err != nil {
		return e.err
	}
	if e.gctx.Err() == nil {
		return nil
	}
	err := e.group.Wait()
	if err == nil {
		err = e.ctx.Err()
	}
	e.err = err
	return err
}

func (e *Encoder) abort(err error) error {
	e.closed = true
	if werr := e.group.Wait(); werr != nil {
		err = werr
	}
	e.err = err
	return err
}

func (e *Encoder) storeLeaf() error {
	pair, err := e.storeBlock(e.leaf, 0)
	if err != nil {
		return err
	}
	e.stats.LeafBlocks++
	return e.push(pair, 0)
}

// push appends a pair to a level and emits a node block one level up once
// the level holds arity pairs.
func (e *Encoder) push(p Pair, level int) error {
	for len(e.levels) <= level {
		e.levels = append(e.levels, make([]Pair, 0, e.arity))
	}
	e.levels[level] = append(e.levels[level], p)
	if len(e.levels[level]) < e.arity {
		return nil
	}
	return e.emitNode(level)
}

func (e *Encoder) emitNode(level int) error {
	pairs := e.levels[level]
	node := make([]byte, e.blockSize)
	for i, p := range pairs {
		off := i * PairSize
		copy(node[off:], p.Reference[:])
		copy(node[off+crypto.ReferenceSize:], p.Key[:])
	}
	e.levels[level] = pairs[:0]

	pair, err := e.storeBlock(node, level+1)
	if err != nil {
		return err
	}
	e.stats.NodeBlocks++
	return e.push(pair, level+1)
}

// fold packs the partial levels bottom-up until one pair is left on top.
func (e *Encoder) fold() (Pair, int, error) {
	for level := 0; ; level++ {
		pending := e.levels[level]
		if level == len(e.levels)-1 && len(pending) == 1 {
			return pending[0], level, nil
		}
		if len(pending) == 0 {
			continue
		}
		if err := e.emitNode(level); err != nil {
			return Pair{}, 0, err
		}
	}
}

// storeBlock encrypts plaintext and hands the ciphertext to the store in
// the background. plaintext may be reused once it returns.
func (e *Encoder) storeBlock(plaintext []byte, level int) (Pair, error) {
	key, err := crypto.DeriveKey(plaintext, e.secret)
	if err != nil {
		return Pair{}, err
	}
	ciphertext := make([]byte, len(plaintext))
	if err := crypto.XORKeyStream(ciphertext, plaintext, key); err != nil {
		return Pair{}, err
	}
	ref := crypto.DeriveReference(ciphertext)

	e.group.Go(func() error {
		if err := e.store.Put(e.gctx, ref, ciphertext); err != nil {
			return &BlockError{Reference: ref, Level: level, Err: err}
		}
		return nil
	})
	return Pair{Reference: ref, Key: key}, nil
}

// Encode reads r to EOF and encodes it into store.
func Encode(ctx context.Context, r io.Reader, store storage.Store, opts Options) (ReadCapability, error) {
	enc, err := NewEncoder(ctx, store, opts)
	if err != nil {
		return ReadCapability{}, err
	}
	if _, err := io.Copy(enc, r); err != nil {
		return ReadCapability{}, enc.abort(err)
	}
	return enc.Close()
}

// EncodeBytes encodes content into store.
func EncodeBytes(ctx context.Context, content []byte, store storage.Store, opts Options) (ReadCapability, error) {
	return Encode(ctx, bytes.NewReader(content), store, opts)
}
