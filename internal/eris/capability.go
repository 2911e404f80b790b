package eris

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"
	"github.com/illarion/eris/internal/base32"
	"github.com/illarion/eris/internal/crypto"
)

const (
	BlockSize1K  uint8 = 10 // 1 KiB blocks, for small content
	BlockSize32K uint8 = 15 // 32 KiB blocks, the default

	MinBlockSizeExponent uint8 = 7
	MaxBlockSizeExponent uint8 = 20

	// PairSize is the size of one reference-key pair inside a node block.
	PairSize = crypto.ReferenceSize + crypto.KeySize

	// CapabilitySize is the size of the binary capability.
	CapabilitySize = 3 + PairSize

	URNPrefix = "urn:eris:"

	capabilityVersion = 0x00
)

// CheckBlockSizeExponent fails with ErrInvalidBlockSize when exp is out of range.
func CheckBlockSizeExponent(exp uint8) error {
	if exp < MinBlockSizeExponent || exp > MaxBlockSizeExponent {
		return fmt.Errorf("%w: exponent %d not in [%d, %d]", ErrInvalidBlockSize, exp, MinBlockSizeExponent, MaxBlockSizeExponent)
	}
	return nil
}

// ParseBlockSize accepts a size with an optional binary unit ("1k", "32KiB",
// "1M", "4096") that is a supported power of two, or a bare exponent ("10").
func ParseBlockSize(s string) (uint8, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBlockSize, s)
	}
	if n <= int64(MaxBlockSizeExponent) {
		exp := uint8(n)
		return exp, CheckBlockSizeExponent(exp)
	}
	for exp := MinBlockSizeExponent; exp <= MaxBlockSizeExponent; exp++ {
		if int64(1)<<exp == n {
			return exp, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not a supported power of two", ErrInvalidBlockSize, units.BytesSize(float64(n)))
}

// Pair addresses one block and holds the key that decrypts it.
type Pair struct {
	Reference crypto.Reference
	Key       crypto.Key
}

func (p Pair) isZero() bool {
	return p.Reference.IsZero() && p.Key.IsZero()
}

// ReadCapability is everything needed to fetch and decrypt encoded content.
type ReadCapability struct {
	BlockSizeExponent uint8
	Level             uint8
	Reference         crypto.Reference
	Key               crypto.Key
}

// ParseCapability parses the URN form of a capability.
func ParseCapability(s string) (ReadCapability, error) {
	var c ReadCapability
	err := c.UnmarshalText([]byte(s))
	return c, err
}

// BlockSize is the size in bytes of every block of the encoding.
func (c ReadCapability) BlockSize() int {
	return 1 << c.BlockSizeExponent
}

// Arity is the number of pairs a node block holds.
func (c ReadCapability) Arity() int {
	return c.BlockSize() / PairSize
}

// Root is the pair of the root block.
func (c ReadCapability) Root() Pair {
	return Pair{Reference: c.Reference, Key: c.Key}
}

func (c ReadCapability) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, CapabilitySize)
	b = append(b, capabilityVersion, c.BlockSizeExponent, c.Level)
	b = append(b, c.Reference[:]...)
	b = append(b, c.Key[:]...)
	return b, nil
}

func (c *ReadCapability) UnmarshalBinary(data []byte) error {
	if len(data) != CapabilitySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedCapability, len(data), CapabilitySize)
	}
	if data[0] != capabilityVersion {
		return fmt.Errorf("%w: unknown version %#x", ErrMalformedCapability, data[0])
	}
	if err := CheckBlockSizeExponent(data[1]); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCapability, err)
	}
	c.BlockSizeExponent = data[1]
	c.Level = data[2]
	copy(c.Reference[:], data[3:3+crypto.ReferenceSize])
	copy(c.Key[:], data[3+crypto.ReferenceSize:])
	return nil
}

func (c ReadCapability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ReadCapability) UnmarshalText(text []byte) error {
	s, ok := strings.CutPrefix(string(text), URNPrefix)
	if !ok {
		return fmt.Errorf("%w: missing %q prefix", ErrMalformedCapability, URNPrefix)
	}
	b, err := base32.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedCapability, err)
	}
	return c.UnmarshalBinary(b)
}

// String returns the URN form, "urn:eris:" followed by unpadded base32.
func (c ReadCapability) String() string {
	b, _ := c.MarshalBinary()
	return URNPrefix + base32.EncodeToString(b)
}
