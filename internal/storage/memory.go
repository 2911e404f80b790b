package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/illarion/eris/internal/crypto"
)

// Memory keeps blocks in a map.
// The zero value is not usable; create one with NewMemory.
type Memory struct {
	mu     sync.RWMutex
	blocks map[crypto.Reference][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{blocks: make(map[crypto.Reference][]byte)}
}

func (m *Memory) String() string {
	return "memory"
}

// Get returns a copy of the block stored under ref
func (m *Memory) Get(ctx context.Context, ref crypto.Reference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	block, ok := m.blocks[ref]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get %s: %w", ref, ErrNotFound)
	}
	return append([]byte(nil), block...), nil
}

// Put stores a copy of block under ref
func (m *Memory) Put(ctx context.Context, ref crypto.Reference, block []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[ref]; ok {
		return nil
	}
	m.blocks[ref] = append([]byte(nil), block...)
	return nil
}

// Delete removes a block, reporting whether it was present
func (m *Memory) Delete(ref crypto.Reference) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blocks[ref]
	delete(m.blocks, ref)
	return ok
}

// Len returns the number of stored blocks
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Refs returns the references of all stored blocks in no particular order
func (m *Memory) Refs() []crypto.Reference {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs := make([]crypto.Reference, 0, len(m.blocks))
	for ref := range m.blocks {
		refs = append(refs, ref)
	}
	return refs
}
