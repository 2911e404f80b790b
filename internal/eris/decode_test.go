package eris

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/illarion/eris/internal/crypto"
	"github.com/illarion/eris/internal/storage"
	"go.uber.org/goleak"
)

// leafRefs returns the references of the level 0 blocks of a tree.
func leafRefs(t *testing.T, c ReadCapability, store storage.Store) []crypto.Reference {
	t.Helper()
	var refs []crypto.Reference
	_, err := Walk(context.Background(), c, store, func(ref crypto.Reference, level int, _ []byte) error {
		if level == 0 {
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	return refs
}

// storeBlock encrypts plaintext with the null secret and stores it.
func storeBlock(t *testing.T, store storage.Store, plaintext []byte) Pair {
	t.Helper()
	key, err := crypto.DeriveKey(plaintext, crypto.NullConvergenceSecret())
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	ciphertext := make([]byte, len(plaintext))
	if err := crypto.XORKeyStream(ciphertext, plaintext, key); err != nil {
		t.Fatalf("XORKeyStream failed: %v", err)
	}
	ref := crypto.DeriveReference(ciphertext)
	if err := store.Put(context.Background(), ref, ciphertext); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return Pair{Reference: ref, Key: key}
}

// decodeBoth runs Decode and the streaming Reader, checks that both fail
// with target and returns the Decode error.
func decodeBoth(t *testing.T, c ReadCapability, store storage.Store, target error) error {
	t.Helper()
	got, err := Decode(context.Background(), c, store, DecodeOptions{})
	if got != nil {
		t.Errorf("Decode returned %d bytes alongside error %v", len(got), err)
	}
	if !errors.Is(err, target) {
		t.Errorf("Decode: got %v, want %v", err, target)
	}
	_, rerr := io.ReadAll(NewReader(context.Background(), c, store))
	if !errors.Is(rerr, target) {
		t.Errorf("Reader: got %v, want %v", rerr, target)
	}
	return err
}

func TestDecodeMissingBlock(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	c, store := encodeMemory(t, randomContent(1000, 11), Options{BlockSizeExponent: MinBlockSizeExponent})
	leaves := leafRefs(t, c, store)
	missing := leaves[3]
	store.Delete(missing)

	err := decodeBoth(t, c, store, ErrNotFound)
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("got %T, want *BlockError", err)
	}
	if be.Reference != missing || be.Level != 0 {
		t.Errorf("BlockError names %s at level %d, want %s at level 0", be.Reference, be.Level, missing)
	}
}

func TestDecodeMissingRoot(t *testing.T) {
	c, store := encodeMemory(t, randomContent(1000, 12), Options{BlockSizeExponent: MinBlockSizeExponent})
	store.Delete(c.Reference)

	err := decodeBoth(t, c, store, ErrNotFound)
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("got %T, want *BlockError", err)
	}
	if be.Reference != c.Reference || be.Level != int(c.Level) {
		t.Errorf("BlockError names %s at level %d, want the root", be.Reference, be.Level)
	}
}

func TestDecodeCorruptBlock(t *testing.T) {
	c, store := encodeMemory(t, randomContent(1000, 13), Options{BlockSizeExponent: MinBlockSizeExponent})
	ctx := context.Background()

	for _, ref := range []crypto.Reference{c.Reference, leafRefs(t, c, store)[0]} {
		block, err := store.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		block[5] ^= 0xff
		store.Delete(ref)
		if err := store.Put(ctx, ref, block); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		decodeBoth(t, c, store, ErrIntegrity)
		block[5] ^= 0xff
		store.Delete(ref)
		if err := store.Put(ctx, ref, block); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if _, err := Verify(ctx, c, store, DecodeOptions{}); err != nil {
		t.Errorf("Verify after repair failed: %v", err)
	}
}

func TestDecodeWrongBlockSize(t *testing.T) {
	c, store := encodeMemory(t, []byte("short"), Options{BlockSizeExponent: MinBlockSizeExponent})
	block, _ := store.Get(context.Background(), c.Reference)
	store.Delete(c.Reference)
	_ = store.Put(context.Background(), c.Reference, block[:100])

	decodeBoth(t, c, store, ErrMalformedBlock)
}

func TestDecodeBadPadding(t *testing.T) {
	tests := map[string][]byte{
		"all zero":     make([]byte, 128),
		"no marker":    append(bytes.Repeat([]byte{1}, 100), make([]byte, 28)...),
		"wrong marker": append(append(bytes.Repeat([]byte{1}, 100), 0x81), make([]byte, 27)...),
		"marker first": append([]byte{0x80}, bytes.Repeat([]byte{1}, 127)...),
	}
	for name, plaintext := range tests {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemory()
			p := storeBlock(t, store, plaintext)
			c := ReadCapability{BlockSizeExponent: MinBlockSizeExponent, Reference: p.Reference, Key: p.Key}

			decodeBoth(t, c, store, ErrMalformedBlock)
		})
	}
}

func TestDecodeBadPaddingLastLeaf(t *testing.T) {
	store := storage.NewMemory()
	first := make([]byte, 128)
	copy(first, "abc")
	first[3] = 0x80
	fp := storeBlock(t, store, first)
	lp := storeBlock(t, store, make([]byte, 128))

	node := make([]byte, 128)
	copy(node, fp.Reference[:])
	copy(node[32:], fp.Key[:])
	copy(node[64:], lp.Reference[:])
	copy(node[96:], lp.Key[:])
	root := storeBlock(t, store, node)
	c := ReadCapability{BlockSizeExponent: MinBlockSizeExponent, Level: 1, Reference: root.Reference, Key: root.Key}

	err := decodeBoth(t, c, store, ErrMalformedBlock)
	var be *BlockError
	if !errors.As(err, &be) || be.Reference != lp.Reference || be.Level != 0 {
		t.Errorf("Decode error %v, want BlockError for the last leaf", err)
	}
	if _, err := Verify(context.Background(), c, store, DecodeOptions{}); !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("Verify: got %v, want %v", err, ErrMalformedBlock)
	}
}

func TestDecodeMalformedNode(t *testing.T) {
	store := storage.NewMemory()
	leaf := make([]byte, 128)
	leaf[0] = 0x80
	lp := storeBlock(t, store, leaf)

	trailing := make([]byte, 128)
	copy(trailing, lp.Reference[:])
	copy(trailing[32:], lp.Key[:])
	trailing[127] = 1

	for name, node := range map[string][]byte{"empty": make([]byte, 128), "trailing data": trailing} {
		t.Run(name, func(t *testing.T) {
			p := storeBlock(t, store, node)
			c := ReadCapability{BlockSizeExponent: MinBlockSizeExponent, Level: 1, Reference: p.Reference, Key: p.Key}
			err := decodeBoth(t, c, store, ErrMalformedBlock)
			var be *BlockError
			if errors.As(err, &be) && be.Level != 1 {
				t.Errorf("BlockError level %d, want 1", be.Level)
			}
		})
	}
}

func TestDecodeMalformedCapability(t *testing.T) {
	c := ReadCapability{BlockSizeExponent: 3}
	_, err := Decode(context.Background(), c, storage.NewMemory(), DecodeOptions{})
	if !errors.Is(err, ErrMalformedCapability) || !errors.Is(err, ErrInvalidBlockSize) {
		t.Errorf("got %v, want ErrMalformedCapability wrapping ErrInvalidBlockSize", err)
	}
	_, err = io.ReadAll(NewReader(context.Background(), c, storage.NewMemory()))
	if !errors.Is(err, ErrMalformedCapability) {
		t.Errorf("Reader: got %v, want ErrMalformedCapability", err)
	}
}

func TestDecodeCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	c, store := encodeMemory(t, randomContent(1000, 14), Options{BlockSizeExponent: MinBlockSizeExponent})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Decode(ctx, c, store, DecodeOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Decode: got %v, want context.Canceled", err)
	}
	if _, err := io.ReadAll(NewReader(ctx, c, store)); !errors.Is(err, context.Canceled) {
		t.Errorf("Reader: got %v, want context.Canceled", err)
	}
}

func TestDecodeConcurrencyLimits(t *testing.T) {
	content := randomContent(50000, 15)
	c, store := encodeMemory(t, content, Options{BlockSizeExponent: MinBlockSizeExponent, Concurrency: 1})
	for _, n := range []int{1, 2, 64} {
		got, err := Decode(context.Background(), c, store, DecodeOptions{Concurrency: n})
		if err != nil {
			t.Fatalf("Decode with concurrency %d failed: %v", n, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("Decode with concurrency %d: content mismatch", n)
		}
	}
}

func TestReader(t *testing.T) {
	for _, size := range []int{0, 1, 127, 128, 129, 1000, 9000} {
		content := randomContent(size, uint64(size)+100)
		c, store := encodeMemory(t, content, Options{BlockSizeExponent: MinBlockSizeExponent})

		if err := iotest.TestReader(NewReader(context.Background(), c, store), content); err != nil {
			t.Errorf("size %d: %v", size, err)
		}
		got, err := io.ReadAll(iotest.OneByteReader(NewReader(context.Background(), c, store)))
		if err != nil {
			t.Fatalf("size %d: ReadAll failed: %v", size, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("size %d: one-byte reads returned different content", size)
		}
	}
}

func TestWalkOrder(t *testing.T) {
	c, store := encodeMemory(t, randomContent(3000, 16), Options{BlockSizeExponent: MinBlockSizeExponent})

	var levels []int
	first := crypto.Reference{}
	stats, err := Walk(context.Background(), c, store, func(ref crypto.Reference, level int, ciphertext []byte) error {
		if len(levels) == 0 {
			first = ref
		}
		if crypto.DeriveReference(ciphertext) != ref {
			t.Errorf("Walk passed a block that does not match %s", ref)
		}
		levels = append(levels, level)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if first != c.Reference {
		t.Error("Walk should start at the root")
	}
	if len(levels) != stats.Blocks() || len(levels) != store.Len() {
		t.Errorf("Walk visited %d blocks, stats say %d, store holds %d", len(levels), stats.Blocks(), store.Len())
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] > levels[i-1] {
			t.Fatalf("Walk went from level %d up to %d", levels[i-1], levels[i])
		}
	}
}

func TestWalkStops(t *testing.T) {
	c, store := encodeMemory(t, randomContent(3000, 17), Options{BlockSizeExponent: MinBlockSizeExponent})
	stop := errors.New("stop")
	calls := 0
	_, err := Walk(context.Background(), c, store, func(crypto.Reference, int, []byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("got %v, want the callback error", err)
	}
	if calls != 1 {
		t.Errorf("Callback ran %d times after failing", calls)
	}
}

func TestCopy(t *testing.T) {
	content := randomContent(20000, 18)
	c, src := encodeMemory(t, content, Options{BlockSizeExponent: BlockSize1K})
	dst := storage.NewMemory()

	stats, err := Copy(context.Background(), c, src, dst)
	if err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if dst.Len() != src.Len() || stats.Blocks() != dst.Len() {
		t.Errorf("Copied %d of %d blocks, stats say %d", dst.Len(), src.Len(), stats.Blocks())
	}
	if stats.ContentSize != int64(len(content)) {
		t.Errorf("ContentSize: got %d, want %d", stats.ContentSize, len(content))
	}

	got, err := Decode(context.Background(), c, dst, DecodeOptions{})
	if err != nil {
		t.Fatalf("Decode from copy failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("Copied content mismatch")
	}
}

func TestRoundTripPersistentStores(t *testing.T) {
	content := randomContent(40000, 19)
	dir := t.TempDir()

	bolt, err := storage.Open(filepath.Join(dir, "vault.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer bolt.Close()
	if err := bolt.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	badger, err := storage.OpenBadger(filepath.Join(dir, "badger"), nil)
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	defer badger.Close()

	want, _ := encodeMemory(t, content, Options{BlockSizeExponent: BlockSize1K})
	for _, store := range []storage.Store{bolt, badger} {
		c, err := EncodeBytes(context.Background(), content, store, Options{BlockSizeExponent: BlockSize1K})
		if err != nil {
			t.Fatalf("%s: EncodeBytes failed: %v", store, err)
		}
		if diff := cmp.Diff(want, c); diff != "" {
			t.Errorf("%s: capability mismatch (-memory +store):\n%s", store, diff)
		}
		got, err := Decode(context.Background(), c, store, DecodeOptions{})
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", store, err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("%s: content mismatch", store)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	content := randomContent(1<<20, 20)
	store := storage.NewMemory()
	c, err := EncodeBytes(context.Background(), content, store, Options{BlockSizeExponent: BlockSize32K})
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(content)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(context.Background(), c, store, DecodeOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
