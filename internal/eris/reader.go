package eris

import (
	"context"
	"io"

	"github.com/illarion/eris/internal/storage"
)

type frame struct {
	level int
	pairs []Pair
	next  int
}

// Reader decodes content lazily, one leaf at a time, walking the tree depth
// first. Only the path from the root to the current leaf is held in memory.
type Reader struct {
	ctx        context.Context
	capability ReadCapability
	store      storage.Store

	d       *decoder
	stack   []frame
	buf     []byte
	pending []byte
	err     error
}

// NewReader returns a Reader for the content behind capability. Errors,
// including a malformed capability, surface from Read.
func NewReader(ctx context.Context, capability ReadCapability, store storage.Store) *Reader {
	return &Reader{ctx: ctx, capability: capability, store: store}
}

func (r *Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.pending, r.err = r.nextLeaf()
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// nextLeaf descends to the next leaf and returns its content, unpadded when
// it is the last one. It returns io.EOF after the last leaf.
func (r *Reader) nextLeaf() ([]byte, error) {
	if r.d == nil {
		d, err := newDecoder(r.capability, r.store, DecodeOptions{Concurrency: 1})
		if err != nil {
			return nil, err
		}
		r.d = d
		r.buf = make([]byte, d.blockSize)
		r.stack = []frame{{level: int(r.capability.Level), pairs: []Pair{r.capability.Root()}}}
	}

	for len(r.stack) > 0 {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		top := &r.stack[len(r.stack)-1]
		if top.next == len(top.pairs) {
			r.stack = r.stack[:len(r.stack)-1]
			continue
		}
		p := top.pairs[top.next]
		top.next++
		level := top.level

		if level == 0 {
			if _, err := r.d.fetch(r.ctx, p, 0, r.buf); err != nil {
				return nil, err
			}
			if !r.exhausted() {
				return r.buf, nil
			}
			content, err := unpad(r.buf)
			if err != nil {
				return nil, &BlockError{Reference: p.Reference, Level: 0, Err: err}
			}
			return content, nil
		}

		node := make([]byte, r.d.blockSize)
		if _, err := r.d.fetch(r.ctx, p, level, node); err != nil {
			return nil, err
		}
		children, err := parsePairs(node)
		if err != nil {
			return nil, &BlockError{Reference: p.Reference, Level: level, Err: err}
		}
		r.stack = append(r.stack, frame{level: level - 1, pairs: children})
	}
	return nil, io.EOF
}

// exhausted reports whether no frame has pairs left to visit.
func (r *Reader) exhausted() bool {
	for _, f := range r.stack {
		if f.next < len(f.pairs) {
			return false
		}
	}
	return true
}
