package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/illarion/eris/internal/crypto"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

// testStores returns every Store implementation that keeps blocks.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	bolt, _ := openTestBolt(t)
	t.Cleanup(func() { bolt.Close() })

	bdg, err := OpenBadger(filepath.Join(t.TempDir(), "bundle"), nil)
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	t.Cleanup(func() { bdg.Close() })

	return map[string]Store{
		"memory":       NewMemory(),
		"bolt":         bolt,
		"badger":       bdg,
		"instrumented": Instrument(zap.NewNop(), NewMemory()),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			block := []byte("block for " + name)
			ref := crypto.DeriveReference(block)

			if _, err := store.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get before Put: got %v, want ErrNotFound", err)
			}
			if err := store.Put(ctx, ref, block); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := store.Put(ctx, ref, block); err != nil {
				t.Fatalf("Idempotent Put failed: %v", err)
			}
			got, err := store.Get(ctx, ref)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != string(block) {
				t.Errorf("Get = %q, want %q", got, block)
			}

			// Returned blocks must not alias store memory
			got[0] ^= 0xff
			again, err := store.Get(ctx, ref)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(again) != string(block) {
				t.Error("Mutating a returned block changed the stored block")
			}
		})
	}
}

func TestStoreConcurrentPut(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			refs := make([]crypto.Reference, 64)
			for i := range refs {
				block := []byte(fmt.Sprintf("block %d", i))
				refs[i] = crypto.DeriveReference(block)
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := store.Put(ctx, refs[i], block); err != nil {
						t.Errorf("Put %d failed: %v", i, err)
					}
				}()
			}
			wg.Wait()
			for i, ref := range refs {
				if _, err := store.Get(ctx, ref); err != nil {
					t.Errorf("Get %d failed: %v", i, err)
				}
			}
		})
	}
}

func TestStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var ref crypto.Reference
			if err := store.Put(ctx, ref, []byte("x")); !errors.Is(err, context.Canceled) {
				t.Errorf("Put with cancelled context: got %v", err)
			}
		})
	}
}

func TestMemoryDeleteAndRefs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	block := []byte("x")
	ref := crypto.DeriveReference(block)
	if err := m.Put(ctx, ref, block); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if m.Len() != 1 || len(m.Refs()) != 1 || m.Refs()[0] != ref {
		t.Fatalf("Unexpected contents: len=%d refs=%v", m.Len(), m.Refs())
	}
	if !m.Delete(ref) {
		t.Error("Delete should report the block existed")
	}
	if m.Delete(ref) {
		t.Error("Second Delete should report nothing removed")
	}
	if _, err := m.Get(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: got %v, want ErrNotFound", err)
	}
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	var d Discard
	for i := 0; i < 3; i++ {
		block := make([]byte, 1024)
		if err := d.Put(ctx, crypto.DeriveReference(block), block); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if d.Blocks() != 3 || d.Bytes() != 3*1024 {
		t.Errorf("Discard counted %d blocks / %d bytes; want 3 / 3072", d.Blocks(), d.Bytes())
	}
	if _, err := d.Get(ctx, crypto.Reference{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: got %v, want ErrNotFound", err)
	}
}

func TestBadgerLen(t *testing.T) {
	ctx := context.Background()
	bdg, err := OpenBadger(filepath.Join(t.TempDir(), "bundle"), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	defer bdg.Close()

	for i := 0; i < 5; i++ {
		block := []byte{byte(i)}
		if err := bdg.Put(ctx, crypto.DeriveReference(block), block); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	n, err := bdg.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Len = %d, want 5", n)
	}
}

func TestInstrumentLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := Instrument(zap.New(core), NewMemory())
	ctx := context.Background()

	block := []byte("logged")
	ref := crypto.DeriveReference(block)
	if err := store.Put(ctx, ref, block); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(ctx, ref); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := store.Get(ctx, crypto.Reference{}); err == nil {
		t.Fatal("Expected error for missing block")
	}

	want := []string{"storage put", "storage get", "storage get failed"}
	entries := logs.AllUntimed()
	if len(entries) != len(want) {
		t.Fatalf("Got %d log entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("Log %d = %q, want %q", i, e.Message, want[i])
		}
		if e.ContextMap()["store"] != "memory" {
			t.Errorf("Log %d missing store field: %v", i, e.ContextMap())
		}
	}
}
